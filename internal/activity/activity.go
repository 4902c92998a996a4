// Package activity projects a parsed iati-activity element into flat,
// codelist-labelled records.
package activity

import (
	"fmt"

	"github.com/dshills/iati3w/internal/codelist"
	"github.com/dshills/iati3w/internal/schema"
	"github.com/dshills/iati3w/internal/xmlnode"
	"github.com/dshills/iati3w/internal/xpath"
)

// DefaultSectorVocabulary keys sectors that omit @vocabulary (OECD DAC
// 5-digit purpose codes).
const DefaultSectorVocabulary = "1"

// Projector wraps activity elements for projection. It holds only the
// read-only codelist table and may be shared across goroutines.
type Projector struct {
	codes *codelist.Table
}

// NewProjector returns a Projector labelling codes from the given table, or
// the built-in one when codes is nil. It fails if the table lacks any
// codelist the accessors resolve.
func NewProjector(codes *codelist.Table) (*Projector, error) {
	if codes == nil {
		codes = codelist.Default()
	}
	err := codes.Require(
		codelist.OrganisationType,
		codelist.OrganisationRole,
		codelist.ActivityStatus,
		codelist.LocationClass,
	)
	if err != nil {
		return nil, fmt.Errorf("activity projector: %w", err)
	}
	return &Projector{codes: codes}, nil
}

// Wrap returns the accessor view of one iati-activity element.
func (p *Projector) Wrap(el *xmlnode.Element) *Activity {
	return &Activity{el: el, codes: p.codes}
}

// Project builds the full record for one iati-activity element.
func (p *Projector) Project(el *xmlnode.Element) schema.Activity {
	return p.Wrap(el).Record()
}

// Activity is a read-only view over one iati-activity element. Every
// accessor is a pure function of the element.
type Activity struct {
	el    *xmlnode.Element
	codes *codelist.Table
}

// Element returns the wrapped element.
func (a *Activity) Element() *xmlnode.Element { return a.el }

// Lang returns the activity's default language, or "".
func (a *Activity) Lang() string {
	if l, ok := a.el.Attr(xmlnode.LangAttr); ok {
		return l.Value
	}
	return ""
}

// Humanitarian reports whether the activity declares @humanitarian as
// "1" or "true".
func (a *Activity) Humanitarian() bool {
	v := a.Value("@humanitarian", nil)
	return v != nil && (*v == "1" || *v == "true")
}

// IATIIdentifier returns the text of the first iati-identifier.
func (a *Activity) IATIIdentifier() *string {
	return a.Value("iati-identifier", nil)
}

// ReportingOrg describes the reporting-org. Fields are nil when the
// element or its attributes are missing.
func (a *Activity) ReportingOrg() schema.Org {
	return schema.Org{
		Ref:       a.Value("reporting-org/@ref", nil),
		Type:      a.Value("reporting-org/@type", nil),
		TypeLabel: a.Label(codelist.OrganisationType, "reporting-org/@type", nil),
		Narrative: a.Narrative("reporting-org", nil),
	}
}

// ParticipatingOrgs returns every participating-org in document order.
func (a *Activity) ParticipatingOrgs() []schema.ParticipatingOrg {
	nodes := a.Elements("participating-org", nil)
	orgs := make([]schema.ParticipatingOrg, 0, len(nodes))
	for _, node := range nodes {
		orgs = append(orgs, schema.ParticipatingOrg{
			Org: schema.Org{
				Ref:       a.Value("@ref", node),
				Type:      a.Value("@type", node),
				TypeLabel: a.Label(codelist.OrganisationType, "@type", node),
				Narrative: a.Narrative(".", node),
			},
			Role:      a.Value("@role", node),
			RoleLabel: a.Label(codelist.OrganisationRole, "@role", node),
		})
	}
	return orgs
}

// ActivityStatus returns the status code and its label.
func (a *Activity) ActivityStatus() schema.Status {
	return schema.Status{
		Code:  a.Value("activity-status/@code", nil),
		Label: a.Label(codelist.ActivityStatus, "activity-status/@code", nil),
	}
}

// Title returns the title narratives, or nil when there is no title.
func (a *Activity) Title() schema.Narrative {
	return a.Narrative("title", nil)
}

// Description returns the first description's narratives, or nil.
func (a *Activity) Description() schema.Narrative {
	return a.Narrative("description", nil)
}

// Activity dates are raw iso-date strings, selected by activity-date/@type.
func (a *Activity) StartDatePlanned() *string {
	return a.Value("activity-date[@type=1]/@iso-date", nil)
}

func (a *Activity) StartDateActual() *string {
	return a.Value("activity-date[@type=2]/@iso-date", nil)
}

func (a *Activity) EndDatePlanned() *string {
	return a.Value("activity-date[@type=3]/@iso-date", nil)
}

func (a *Activity) EndDateActual() *string {
	return a.Value("activity-date[@type=4]/@iso-date", nil)
}

// Sectors keys every sector by vocabulary, then code. A later sector with
// the same vocabulary and code replaces an earlier one.
func (a *Activity) Sectors() schema.Sectors {
	sectors := schema.Sectors{}
	for _, node := range a.Elements("sector", nil) {
		vocabulary := DefaultSectorVocabulary
		if v := a.Value("@vocabulary", node); v != nil && *v != "" {
			vocabulary = *v
		}
		var code string
		if c := a.Value("@code", node); c != nil {
			code = *c
		}
		if sectors[vocabulary] == nil {
			sectors[vocabulary] = map[string]schema.Sector{}
		}
		sectors[vocabulary][code] = schema.Sector{
			Percentage: a.Value("@percentage", node),
			Narrative:  a.Narrative(".", node),
		}
	}
	return sectors
}

// Locations returns every location in document order.
func (a *Activity) Locations() []schema.Location {
	nodes := a.Elements("location", nil)
	locations := make([]schema.Location, 0, len(nodes))
	for _, node := range nodes {
		loc := schema.Location{
			Ref:                a.Value("@ref", node),
			LocationClass:      a.Value("location-class/@code", node),
			LocationClassLabel: a.Label(codelist.LocationClass, "location-class/@code", node),
			FeatureDesignation: a.Value("feature-designation/@code", node),
		}
		if name := a.Narrative("name", node); name != nil {
			loc.Narrative = &name
		}
		locations = append(locations, loc)
	}
	return locations
}

// Record collects every accessor into one record.
func (a *Activity) Record() schema.Activity {
	return schema.Activity{
		IATIIdentifier:    a.IATIIdentifier(),
		Lang:              a.Lang(),
		Humanitarian:      a.Humanitarian(),
		ReportingOrg:      a.ReportingOrg(),
		ParticipatingOrgs: a.ParticipatingOrgs(),
		ActivityStatus:    a.ActivityStatus(),
		Title:             a.Title(),
		Description:       a.Description(),
		StartDatePlanned:  a.StartDatePlanned(),
		StartDateActual:   a.StartDateActual(),
		EndDatePlanned:    a.EndDatePlanned(),
		EndDateActual:     a.EndDateActual(),
		Sectors:           a.Sectors(),
		Locations:         a.Locations(),
	}
}

//
// Lookup primitives. A nil base means the activity element itself.
//

// Nodes returns every node expr selects under base.
func (a *Activity) Nodes(expr string, base *xmlnode.Element) []xmlnode.Ref {
	if base == nil {
		base = a.el
	}
	return xpath.Find(expr, base)
}

// Node returns the first node expr selects under base, or nil.
func (a *Activity) Node(expr string, base *xmlnode.Element) xmlnode.Ref {
	if base == nil {
		base = a.el
	}
	return xpath.FindOne(expr, base)
}

// Value returns the text of the first node expr selects, or nil.
func (a *Activity) Value(expr string, base *xmlnode.Element) *string {
	if base == nil {
		base = a.el
	}
	return xpath.ValueOf(expr, base)
}

// Elements is Nodes for expressions that select elements.
func (a *Activity) Elements(expr string, base *xmlnode.Element) []*xmlnode.Element {
	refs := a.Nodes(expr, base)
	out := make([]*xmlnode.Element, 0, len(refs))
	for _, ref := range refs {
		el, ok := ref.(*xmlnode.Element)
		if !ok {
			panic(fmt.Sprintf("activity: path %q selects attributes, not elements", expr))
		}
		out = append(out, el)
	}
	return out
}

// Label resolves the code expr selects against the named codelist. It is
// nil when no code is present.
func (a *Activity) Label(list, expr string, base *xmlnode.Element) *string {
	return a.codes.Resolve(list, a.Value(expr, base))
}

// Narrative resolves the narratives of the element expr selects, or
// returns nil when nothing matches.
func (a *Activity) Narrative(expr string, base *xmlnode.Element) schema.Narrative {
	el, ok := a.Node(expr, base).(*xmlnode.Element)
	if !ok {
		return nil
	}
	return Narratives(el, el.Lang())
}
