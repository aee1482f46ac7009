// Package merge implements the merge subcommand: combining several
// CityGML files into one document, prefixing identifiers per source file
// to avoid collisions and unioning each file's envelope into the merged
// collection's bounded-by. BucketedResourceDir names the
// merged_library_objects/, merged_point_files/ and merged_timeseries/
// folders, but Merge itself copies no referenced external files and does
// not apply Options.Buckets.
package merge

import (
	"fmt"

	"citygml-tools/internal/citygml"
	"citygml-tools/internal/idsource"
	"citygml-tools/internal/model"
	"citygml-tools/internal/refrewrite"
	"citygml-tools/internal/resource"
)

// Options configures a merge run.
type Options struct {
	PrefixIDs bool // apply a per-source-file id prefix (src0, src1, ... in input order) to avoid collisions
	Buckets   int  // bucket count for merged_library_objects/merged_point_files/merged_timeseries; not read by Merge
}

// Result tallies what a merge run did.
type Result struct {
	MergedFiles   int
	MergedObjects int
	BoundedBy     *model.Envelope
}

// Merge reads every file in paths via citygml.Open, renaming ids through
// a per-file refrewrite.Rewriter when Options.PrefixIDs is set, and
// streams every top-level feature plus global group/appearance through
// to w. It does not close w.
func Merge(paths []string, opts Options, w *citygml.Writer, ids idsource.Source) (Result, error) {
	var result Result
	var bounded *model.Envelope

	for _, path := range paths {
		reg, err := citygml.Scan(path, citygml.Appearances|citygml.Groups|citygml.Templates)
		if err != nil {
			return result, err
		}

		r, err := citygml.Open(path, "")
		if err != nil {
			return result, err
		}

		rewriter := refrewrite.New(refrewrite.KeepAll)
		if opts.PrefixIDs {
			rewriter.WithPrefix(prefixFor(path, result.MergedFiles))
		}
		r.WithSkipFilter(map[string]bool{"appearanceMember": true, "cityObjectGroupMember": true})

		for {
			f, err := r.Next()
			if err != nil {
				r.Close()
				return result, err
			}
			if f == nil {
				break
			}
			renameIDs(f, rewriter)
			rewriter.ResolveInFeature(f)
			if err := w.WriteFeature(f); err != nil {
				r.Close()
				return result, err
			}
			result.MergedObjects++
		}
		r.Close()

		for _, g := range reg.Groups {
			renameGroupIDs(g, rewriter)
			rewriter.ResolveGroup(g)
			if err := w.WriteGroup(g); err != nil {
				return result, err
			}
		}
		for _, a := range reg.Appearances {
			rewriter.ResolveAppearance(a)
			if err := w.WriteGlobalAppearance(a); err != nil {
				return result, err
			}
		}

		if m := r.Model(); m != nil {
			bounded = bounded.Union(m.BoundedBy)
		}
		result.MergedFiles++
	}

	result.BoundedBy = bounded
	if bounded != nil {
		if err := w.WriteBoundedBy(bounded); err != nil {
			return result, err
		}
	}
	return result, nil
}

func prefixFor(path string, index int) string {
	return fmt.Sprintf("src%d", index)
}

// renameIDs assigns every feature and geometry in f's subtree a
// prefixed id and registers the old->new mapping so later references
// resolve.
func renameIDs(f *model.Feature, rewriter *refrewrite.Rewriter) {
	f.Walk(func(ft *model.Feature) bool {
		if ft.ID != "" {
			newID := rewriter.PrefixedID(ft.ID)
			rewriter.Register(ft.ID, newID)
			ft.ID = newID
		}
		for _, gp := range ft.Geometries {
			if gp.Geometry != nil {
				renameGeometryIDs(gp.Geometry, rewriter)
			}
		}
		return true
	})
}

func renameGeometryIDs(g *model.Geometry, rewriter *refrewrite.Rewriter) {
	g.Walk(func(n *model.Geometry) bool {
		if n.ID != "" {
			newID := rewriter.PrefixedID(n.ID)
			rewriter.Register(n.ID, newID)
			n.ID = newID
		}
		return true
	})
}

func renameGroupIDs(g *model.CityObjectGroup, rewriter *refrewrite.Rewriter) {
	if g.ID != "" {
		newID := rewriter.PrefixedID(g.ID)
		rewriter.Register(g.ID, newID)
		g.ID = newID
	}
}

// BucketedResourceDir picks which of the three merge-specific output
// subdirectories a resource of the given type lands under.
func BucketedResourceDir(t resource.Type) string {
	switch t {
	case resource.LibraryObject:
		return "merged_library_objects"
	case resource.PointFile:
		return "merged_point_files"
	case resource.TimeSeriesFile:
		return "merged_timeseries"
	default:
		return "merged_resources"
	}
}
