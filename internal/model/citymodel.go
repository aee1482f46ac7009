package model

// CityModel is the collection envelope: the ordered container around the
// feature stream plus the three kinds of collection-global object
// (appearances, groups, templates). The feature stream itself is never
// buffered here — see internal/citygml.Reader — this struct only carries
// the header/trailer state and the pre-scanned globals.
type CityModel struct {
	Version    CityGMLVersion
	Namespaces map[string]string // prefix -> URI
	Name       string

	BoundedBy *Envelope

	GlobalAppearances []*Appearance
	Groups            []*CityObjectGroup
	Templates         []*ImplicitTemplate

	// SchemaLocations mirrors the xsi:schemaLocation pairs on the root
	// element as read. The citygml Writer does not write them out.
	SchemaLocations []string
}

// TemplateByID looks up a registered implicit-geometry template.
func (m *CityModel) TemplateByID(id string) *ImplicitTemplate {
	for _, t := range m.Templates {
		if t.ID == id {
			return t
		}
	}
	return nil
}
