package render

import (
	"sort"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/language"

	"github.com/dshills/iati3w/internal/schema"
)

// Separator joins multi-valued fields in flattened output.
const Separator = " | "

const implementingRole = "4"

// Row is one activity flattened to single-valued text columns.
type Row struct {
	Identifier            string
	ReportingOrgRef       string
	ReportingOrgType      string
	ReportingOrgTypeLabel string
	ReportingOrg          string
	ImplementingOrgs      string
	ParticipatingOrgs     string
	Status                string
	StatusLabel           string
	Title                 string
	Description           string
	StartDatePlanned      string
	StartDateActual       string
	EndDatePlanned        string
	EndDateActual         string
	Humanitarian          bool
	Sectors               string
	SectorNames           string
	Locations             string
	LocationRefs          string
}

// Header lists the CSV column names, in Row.Values order.
var Header = []string{
	"iati-identifier",
	"reporting-org-ref",
	"reporting-org-type",
	"reporting-org-type-label",
	"reporting-org",
	"implementing-orgs",
	"participating-orgs",
	"activity-status",
	"activity-status-label",
	"title",
	"description",
	"start-date-planned",
	"start-date-actual",
	"end-date-planned",
	"end-date-actual",
	"humanitarian",
	"sectors",
	"sector-names",
	"locations",
	"location-refs",
}

// Values returns the row's columns in Header order.
func (r Row) Values() []string {
	humanitarian := "0"
	if r.Humanitarian {
		humanitarian = "1"
	}
	return []string{
		r.Identifier,
		r.ReportingOrgRef,
		r.ReportingOrgType,
		r.ReportingOrgTypeLabel,
		r.ReportingOrg,
		r.ImplementingOrgs,
		r.ParticipatingOrgs,
		r.Status,
		r.StatusLabel,
		r.Title,
		r.Description,
		r.StartDatePlanned,
		r.StartDateActual,
		r.EndDatePlanned,
		r.EndDateActual,
		humanitarian,
		r.Sectors,
		r.SectorNames,
		r.Locations,
		r.LocationRefs,
	}
}

// Flatten converts one activity into a Row, choosing narrative text in the
// language closest to lang.
func Flatten(a schema.Activity, lang language.Tag) Row {
	orgName := func(o schema.ParticipatingOrg, _ int) string { return Pick(o.Narrative, lang) }
	implementing := lo.Filter(a.ParticipatingOrgs, func(o schema.ParticipatingOrg, _ int) bool {
		return o.Role != nil && *o.Role == implementingRole
	})

	var sectorKeys, sectorNames []string
	for _, vocab := range sortedKeys(a.Sectors) {
		codes := a.Sectors[vocab]
		for _, code := range sortedKeys(codes) {
			sectorKeys = append(sectorKeys, vocab+":"+code)
			sectorNames = append(sectorNames, Pick(codes[code].Narrative, lang))
		}
	}

	locationNames := lo.Map(a.Locations, func(l schema.Location, _ int) string {
		if l.Narrative == nil {
			return ""
		}
		return Pick(*l.Narrative, lang)
	})
	locationRefs := lo.Map(a.Locations, func(l schema.Location, _ int) string { return deref(l.Ref) })

	return Row{
		Identifier:            deref(a.IATIIdentifier),
		ReportingOrgRef:       deref(a.ReportingOrg.Ref),
		ReportingOrgType:      deref(a.ReportingOrg.Type),
		ReportingOrgTypeLabel: deref(a.ReportingOrg.TypeLabel),
		ReportingOrg:          Pick(a.ReportingOrg.Narrative, lang),
		ImplementingOrgs:      join(lo.Map(implementing, orgName)),
		ParticipatingOrgs:     join(lo.Map(a.ParticipatingOrgs, orgName)),
		Status:                deref(a.ActivityStatus.Code),
		StatusLabel:           deref(a.ActivityStatus.Label),
		Title:                 Pick(a.Title, lang),
		Description:           Pick(a.Description, lang),
		StartDatePlanned:      deref(a.StartDatePlanned),
		StartDateActual:       deref(a.StartDateActual),
		EndDatePlanned:        deref(a.EndDatePlanned),
		EndDateActual:         deref(a.EndDateActual),
		Humanitarian:          a.Humanitarian,
		Sectors:               join(sectorKeys),
		SectorNames:           join(sectorNames),
		Locations:             join(locationNames),
		LocationRefs:          join(locationRefs),
	}
}

// Pick returns the narrative text whose language best matches lang. With
// no usable match it falls back to the lowest language key, so untagged
// text ("") wins over other languages.
func Pick(n schema.Narrative, lang language.Tag) string {
	if len(n) == 0 {
		return ""
	}
	if text, ok := n[lang.String()]; ok {
		return text
	}

	keys := sortedKeys(n)
	var tags []language.Tag
	var tagKeys []string
	for _, k := range keys {
		if k == "" {
			continue
		}
		t, err := language.Parse(k)
		if err != nil {
			continue
		}
		tags = append(tags, t)
		tagKeys = append(tagKeys, k)
	}
	if len(tags) > 0 {
		_, idx, conf := language.NewMatcher(tags).Match(lang)
		if conf != language.No {
			return n[tagKeys[idx]]
		}
	}
	return n[keys[0]]
}

// join drops empty values and joins the rest with Separator.
func join(values []string) string {
	return strings.Join(lo.Compact(values), Separator)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
