// Package idsource provides the process-wide identifier generator, as an
// explicit collaborator handle injected into every component that mints
// fresh identifiers, rather than a package-level global.
package idsource

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Source mints new identifiers. Implementations must be safe for
// concurrent use.
type Source interface {
	NewID() string
}

// UUIDSource generates random (v4) UUIDs via google/uuid, which is itself
// safe for concurrent callers.
type UUIDSource struct{}

func NewUUIDSource() *UUIDSource { return &UUIDSource{} }

func (UUIDSource) NewID() string {
	return uuid.NewString()
}

// Deterministic produces predictable sequential ids for tests, so golden
// output doesn't depend on random UUIDs.
type Deterministic struct {
	prefix string
	next   atomic.Uint64
}

func NewDeterministic(prefix string) *Deterministic {
	return &Deterministic{prefix: prefix}
}

func (d *Deterministic) NewID() string {
	n := d.next.Add(1)
	return d.prefix + "-" + itoa(n)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
