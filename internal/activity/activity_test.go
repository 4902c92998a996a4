package activity

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/iati3w/internal/codelist"
	"github.com/dshills/iati3w/internal/schema"
	"github.com/dshills/iati3w/internal/xmlnode"
)

const fullActivity = `<iati-activity xml:lang="en" humanitarian="1">
  <iati-identifier>XM-DAC-41114-SOM-001</iati-identifier>
  <reporting-org ref="XM-DAC-41114" type="40">
    <narrative>United Nations Development Programme</narrative>
    <narrative xml:lang="fr">Programme des Nations Unies pour le développement</narrative>
  </reporting-org>
  <title><narrative>Food Aid</narrative></title>
  <description type="1"><narrative>General food distribution.</narrative></description>
  <description type="2"><narrative>Second description.</narrative></description>
  <participating-org ref="GB-GOV-1" type="10" role="1"><narrative>FCDO</narrative></participating-org>
  <participating-org type="22" role="4"><narrative>Local Partner</narrative></participating-org>
  <participating-org ref="XX-99"/>
  <activity-status code="2"/>
  <activity-date type="1" iso-date="2021-01-01"/>
  <activity-date type="2" iso-date="2021-02-01"/>
  <activity-date type="3" iso-date="2021-12-31"/>
  <activity-date type="4" iso-date="2022-01-31"/>
  <sector vocabulary="1" code="72040" percentage="60"><narrative>Emergency food assistance</narrative></sector>
  <sector vocabulary="1" code="72010" percentage="40"/>
  <sector vocabulary="10" code="1"><narrative>Food Security</narrative></sector>
  <location ref="SO-BN">
    <name><narrative>Banaadir</narrative></name>
    <location-class code="1"/>
    <feature-designation code="ADM1"/>
  </location>
  <location ref="SO-MOG"/>
</iati-activity>`

func project(t *testing.T, src string) *Activity {
	t.Helper()
	root, err := xmlnode.Parse(strings.NewReader(src))
	require.NoError(t, err)
	p, err := NewProjector(nil)
	require.NoError(t, err)
	return p.Wrap(root)
}

func TestNewProjector_MissingCodelist(t *testing.T) {
	partial, err := codelist.Parse([]byte("organisation-type:\n  \"10\": Government\n"))
	require.NoError(t, err)

	_, err = NewProjector(partial)
	require.Error(t, err)
	assert.ErrorIs(t, err, codelist.ErrUnrecognizedCodelist)
}

func TestIdentifierAndLang(t *testing.T) {
	a := project(t, fullActivity)
	require.NotNil(t, a.IATIIdentifier())
	assert.Equal(t, "XM-DAC-41114-SOM-001", *a.IATIIdentifier())
	assert.Equal(t, "en", a.Lang())

	bare := project(t, `<iati-activity/>`)
	assert.Nil(t, bare.IATIIdentifier())
	assert.Equal(t, "", bare.Lang())
}

func TestHumanitarian(t *testing.T) {
	assert.True(t, project(t, fullActivity).Humanitarian())
	assert.True(t, project(t, `<iati-activity humanitarian="true"/>`).Humanitarian())
	assert.False(t, project(t, `<iati-activity humanitarian="0"/>`).Humanitarian())
	assert.False(t, project(t, `<iati-activity/>`).Humanitarian())
}

func TestTitle_InheritsDefaultLanguage(t *testing.T) {
	a := project(t, `<iati-activity xml:lang="en"><title><narrative>Food Aid</narrative></title></iati-activity>`)
	assert.Equal(t, schema.Narrative{"en": "Food Aid"}, a.Title())
}

func TestNarratives_MultiLanguage(t *testing.T) {
	for _, src := range []string{
		`<iati-activity><title><narrative xml:lang="en">Food</narrative><narrative xml:lang="fr">Nourriture</narrative></title></iati-activity>`,
		`<iati-activity><title><narrative xml:lang="fr">Nourriture</narrative><narrative xml:lang="en">Food</narrative></title></iati-activity>`,
	} {
		a := project(t, src)
		assert.Equal(t, schema.Narrative{"en": "Food", "fr": "Nourriture"}, a.Title())
	}
}

func TestNarratives_LastDuplicateWins(t *testing.T) {
	a := project(t, `<iati-activity xml:lang="en"><title><narrative>First</narrative><narrative xml:lang="en">Second</narrative></title></iati-activity>`)
	assert.Equal(t, schema.Narrative{"en": "Second"}, a.Title())
}

func TestNarratives_NearestEnclosingLanguage(t *testing.T) {
	a := project(t, `<iati-activity xml:lang="en"><title xml:lang="es"><narrative>Ayuda</narrative></title></iati-activity>`)
	assert.Equal(t, schema.Narrative{"es": "Ayuda"}, a.Title())
}

func TestNarratives_NoLanguageAnywhere(t *testing.T) {
	a := project(t, `<iati-activity><title><narrative>Untagged</narrative></title></iati-activity>`)
	assert.Equal(t, schema.Narrative{"": "Untagged"}, a.Title())
}

func TestNarratives_NestedMarkupSkipped(t *testing.T) {
	a := project(t, `<iati-activity xml:lang="en"><title><narrative>Food <em>and</em> Aid</narrative></title></iati-activity>`)
	assert.Equal(t, schema.Narrative{"en": "Food  Aid"}, a.Title())
}

func TestTitleDescription_AbsentVersusEmpty(t *testing.T) {
	a := project(t, `<iati-activity><title/></iati-activity>`)
	assert.NotNil(t, a.Title())
	assert.Empty(t, a.Title())
	assert.Nil(t, a.Description())
}

func TestDescription_FirstElement(t *testing.T) {
	a := project(t, fullActivity)
	assert.Equal(t, schema.Narrative{"en": "General food distribution."}, a.Description())
}

func TestReportingOrg(t *testing.T) {
	org := project(t, fullActivity).ReportingOrg()
	assert.Equal(t, "XM-DAC-41114", *org.Ref)
	assert.Equal(t, "40", *org.Type)
	assert.Equal(t, "Multilateral", *org.TypeLabel)
	assert.Equal(t, schema.Narrative{
		"en": "United Nations Development Programme",
		"fr": "Programme des Nations Unies pour le développement",
	}, org.Narrative)
}

func TestReportingOrg_Missing(t *testing.T) {
	org := project(t, `<iati-activity/>`).ReportingOrg()
	assert.Nil(t, org.Ref)
	assert.Nil(t, org.Type)
	assert.Nil(t, org.TypeLabel)
	assert.Nil(t, org.Narrative)
}

func TestReportingOrg_UnknownType(t *testing.T) {
	org := project(t, `<iati-activity><reporting-org ref="X" type="99"/></iati-activity>`).ReportingOrg()
	assert.Equal(t, "99", *org.Type)
	assert.Equal(t, codelist.Unknown, *org.TypeLabel)
}

func TestParticipatingOrgs(t *testing.T) {
	orgs := project(t, fullActivity).ParticipatingOrgs()
	require.Len(t, orgs, 3)

	assert.Equal(t, "GB-GOV-1", *orgs[0].Ref)
	assert.Equal(t, "Government", *orgs[0].TypeLabel)
	assert.Equal(t, "1", *orgs[0].Role)
	assert.Equal(t, "Funding", *orgs[0].RoleLabel)
	assert.Equal(t, schema.Narrative{"en": "FCDO"}, orgs[0].Narrative)

	assert.Nil(t, orgs[1].Ref)
	assert.Equal(t, "National NGO", *orgs[1].TypeLabel)
	assert.Equal(t, "Implementing", *orgs[1].RoleLabel)

	assert.Nil(t, orgs[2].Type)
	assert.Nil(t, orgs[2].TypeLabel)
	assert.Nil(t, orgs[2].Role)
	assert.Nil(t, orgs[2].RoleLabel)
	assert.Empty(t, orgs[2].Narrative)
}

func TestParticipatingOrgs_NoneIsEmpty(t *testing.T) {
	orgs := project(t, `<iati-activity/>`).ParticipatingOrgs()
	assert.NotNil(t, orgs)
	assert.Empty(t, orgs)
}

func TestActivityStatus(t *testing.T) {
	st := project(t, fullActivity).ActivityStatus()
	assert.Equal(t, "2", *st.Code)
	assert.Equal(t, "Implementation", *st.Label)

	missing := project(t, `<iati-activity/>`).ActivityStatus()
	assert.Nil(t, missing.Code)
	assert.Nil(t, missing.Label)
}

func TestDates(t *testing.T) {
	a := project(t, fullActivity)
	assert.Equal(t, "2021-01-01", *a.StartDatePlanned())
	assert.Equal(t, "2021-02-01", *a.StartDateActual())
	assert.Equal(t, "2021-12-31", *a.EndDatePlanned())
	assert.Equal(t, "2022-01-31", *a.EndDateActual())
}

func TestDates_Independent(t *testing.T) {
	a := project(t, `<iati-activity><activity-date type="2" iso-date="2021-03-04"/></iati-activity>`)
	require.NotNil(t, a.StartDateActual())
	assert.Equal(t, "2021-03-04", *a.StartDateActual())
	assert.Nil(t, a.StartDatePlanned())
	assert.Nil(t, a.EndDatePlanned())
	assert.Nil(t, a.EndDateActual())
}

func TestDates_FirstMatchWins(t *testing.T) {
	a := project(t, `<iati-activity>
  <activity-date type="1" iso-date="2020-01-01"/>
  <activity-date type="1" iso-date="2020-06-01"/>
</iati-activity>`)
	assert.Equal(t, "2020-01-01", *a.StartDatePlanned())
}

func TestSectors_TwoLevelKeying(t *testing.T) {
	sectors := project(t, fullActivity).Sectors()
	require.Len(t, sectors, 2)
	require.Len(t, sectors["1"], 2)
	require.Len(t, sectors["10"], 1)

	food := sectors["1"]["72040"]
	assert.Equal(t, "60", *food.Percentage)
	assert.Equal(t, schema.Narrative{"en": "Emergency food assistance"}, food.Narrative)

	assert.Equal(t, "40", *sectors["1"]["72010"].Percentage)
	assert.Empty(t, sectors["1"]["72010"].Narrative)

	cluster := sectors["10"]["1"]
	assert.Nil(t, cluster.Percentage)
	assert.Equal(t, schema.Narrative{"en": "Food Security"}, cluster.Narrative)
}

func TestSectors_DuplicateOverwrites(t *testing.T) {
	sectors := project(t, `<iati-activity xml:lang="en">
  <sector vocabulary="1" code="72040" percentage="30"><narrative>First</narrative></sector>
  <sector vocabulary="1" code="72040" percentage="70"><narrative>Second</narrative></sector>
</iati-activity>`).Sectors()
	require.Len(t, sectors["1"], 1)
	assert.Equal(t, "70", *sectors["1"]["72040"].Percentage)
	assert.Equal(t, schema.Narrative{"en": "Second"}, sectors["1"]["72040"].Narrative)
}

func TestSectors_DefaultVocabulary(t *testing.T) {
	sectors := project(t, `<iati-activity><sector code="12220"/></iati-activity>`).Sectors()
	require.Contains(t, sectors, DefaultSectorVocabulary)
	assert.Contains(t, sectors[DefaultSectorVocabulary], "12220")
}

func TestLocations(t *testing.T) {
	locs := project(t, fullActivity).Locations()
	require.Len(t, locs, 2)

	full := locs[0]
	assert.Equal(t, "SO-BN", *full.Ref)
	require.NotNil(t, full.Narrative)
	assert.Equal(t, schema.Narrative{"en": "Banaadir"}, *full.Narrative)
	assert.Equal(t, "1", *full.LocationClass)
	assert.Equal(t, "Administrative Region", *full.LocationClassLabel)
	assert.Equal(t, "ADM1", *full.FeatureDesignation)

	bare := locs[1]
	assert.Equal(t, "SO-MOG", *bare.Ref)
	assert.Nil(t, bare.Narrative)
	assert.Nil(t, bare.LocationClass)
	assert.Nil(t, bare.LocationClassLabel)
	assert.Nil(t, bare.FeatureDesignation)
}

func TestLocations_MissingFieldsOmittedFromJSON(t *testing.T) {
	locs := project(t, fullActivity).Locations()
	data, err := json.Marshal(locs[1])
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, map[string]any{"ref": "SO-MOG"}, decoded)
	assert.NotContains(t, decoded, "location-class")
	assert.NotContains(t, decoded, "location-class-label")
}

func TestLocations_FeatureDesignationIsPerLocation(t *testing.T) {
	locs := project(t, `<iati-activity>
  <location ref="A"/>
  <location ref="B"><feature-designation code="PPL"/></location>
</iati-activity>`).Locations()
	require.Len(t, locs, 2)
	assert.Nil(t, locs[0].FeatureDesignation)
	assert.Equal(t, "PPL", *locs[1].FeatureDesignation)
}

func TestRecord(t *testing.T) {
	root, err := xmlnode.Parse(strings.NewReader(fullActivity))
	require.NoError(t, err)
	p, err := NewProjector(codelist.Default())
	require.NoError(t, err)

	rec := p.Project(root)
	assert.Equal(t, "XM-DAC-41114-SOM-001", rec.Identifier())
	assert.Equal(t, "en", rec.Lang)
	assert.True(t, rec.Humanitarian)
	assert.Len(t, rec.ParticipatingOrgs, 3)
	assert.Len(t, rec.Locations, 2)
	assert.Equal(t, schema.Narrative{"en": "Food Aid"}, rec.Title)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "start_date_planned")
	assert.Contains(t, decoded, "participating-orgs")
}

func TestElements_PanicsOnAttributePath(t *testing.T) {
	a := project(t, fullActivity)
	assert.Panics(t, func() { a.Elements("sector/@code", nil) })
}
