// Package validate implements the validate subcommand: re-running the
// same geometry-id bookkeeping the upgrader and reference rewriter use
// internally, but read-only, to surface dangling cross-references as
// warnings instead of repairing them. Only geometry-property hrefs are
// checked; appearance target URIs are not.
package validate

import "citygml-tools/internal/model"

// Finding is one validation warning.
type Finding struct {
	Feature string // id of the feature carrying the bad reference
	URI     string
}

// Report collects every finding from a single file's pass.
type Report struct {
	Findings []Finding
}

func (r *Report) Empty() bool { return len(r.Findings) == 0 }

// Run walks every feature in features, verifying that every geometry
// property's href resolves to a geometry that exists by value somewhere
// in the same document (the same ownership notion the upgrader's
// pre-scan builds, kept read-only here).
func Run(features []*model.Feature) Report {
	byID := map[string]bool{}
	for _, top := range features {
		top.Walk(func(f *model.Feature) bool {
			for _, gp := range f.Geometries {
				if gp.Geometry == nil {
					continue
				}
				gp.Geometry.Walk(func(g *model.Geometry) bool {
					if g.ID != "" {
						byID[g.ID] = true
					}
					return true
				})
			}
			return true
		})
	}

	var report Report
	for _, top := range features {
		top.Walk(func(f *model.Feature) bool {
			for _, gp := range f.Geometries {
				if gp.Href == "" {
					continue
				}
				if !byID[fragmentOf(gp.Href)] {
					report.Findings = append(report.Findings, Finding{Feature: f.ID, URI: gp.Href})
				}
			}
			return true
		})
	}
	return report
}

func fragmentOf(uri string) string {
	for i := len(uri) - 1; i >= 0; i-- {
		if uri[i] == '#' {
			return uri[i+1:]
		}
	}
	return uri
}
