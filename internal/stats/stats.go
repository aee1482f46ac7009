// Package stats implements the read-only stats subcommand: counting
// features per type and per LoD, appearances per theme, and CRSs seen,
// without writing any output.
package stats

import (
	"citygml-tools/internal/model"
)

// Report tallies the contents of every feature and appearance passed to
// it, across as many files as the caller feeds in.
type Report struct {
	ObjectsByType map[string]int
	LoDCounts     map[int]int
	AppearancesByTheme map[string]int
	CRSSeen       map[string]int
	TotalObjects  int
}

func NewReport() *Report {
	return &Report{
		ObjectsByType:      map[string]int{},
		LoDCounts:          map[int]int{},
		AppearancesByTheme: map[string]int{},
		CRSSeen:            map[string]int{},
	}
}

// Observe folds one top-level feature's subtree into the report.
func (r *Report) Observe(f *model.Feature) {
	f.Walk(func(ft *model.Feature) bool {
		r.ObjectsByType[ft.Type]++
		r.TotalObjects++
		for _, gp := range ft.Geometries {
			r.LoDCounts[gp.LoD]++
			if gp.Geometry != nil {
				observeCRS(r, gp.Geometry)
			}
		}
		for _, app := range ft.Appearances {
			r.AppearancesByTheme[app.Theme]++
		}
		return true
	})
}

// ObserveGlobalAppearance folds a collection-global appearance into the
// report (features carry their own local appearances via Observe).
func (r *Report) ObserveGlobalAppearance(a *model.Appearance) {
	r.AppearancesByTheme[a.Theme]++
}

func observeCRS(r *Report, g *model.Geometry) {
	g.Walk(func(n *model.Geometry) bool {
		if n.SRSName != "" {
			r.CRSSeen[n.SRSName]++
		}
		return true
	})
}
