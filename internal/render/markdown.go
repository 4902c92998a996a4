package render

import (
	"bytes"
	"fmt"
	"text/template"

	"golang.org/x/text/language"

	"github.com/dshills/iati3w/internal/schema"
)

type markdownRenderer struct {
	lang language.Tag
}

type markdownView struct {
	*schema.Report
	Rows []Row
}

var mdTemplate = template.Must(template.New("report").Parse(`# IATI 3W Report

**Activities:** {{ .Summary.ActivityCount }}
**Source:** {{ .Input.Source }}{{ if .Input.Endpoint }} ({{ .Input.Endpoint }}){{ end }}{{ if .Input.File }} {{ .Input.File }}{{ end }}
{{ with .Input.Query }}**Query:** country={{ or .CountryCode "any" }} humanitarian={{ .Humanitarian }}{{ if .YearMin }} from={{ .YearMin }}{{ end }}{{ if .YearMax }} to={{ .YearMax }}{{ end }}{{ if .StatusCode }} status={{ .StatusCode }}{{ end }}
{{ end }}
## By status
{{ range $label, $n := .Summary.ByStatus }}
- {{ $label }}: {{ $n }}{{ end }}

## By reporting organisation type
{{ range $label, $n := .Summary.ByReportingType }}
- {{ $label }}: {{ $n }}{{ end }}
{{ if .Rows }}
---

## Activities
{{ range .Rows }}
### {{ or .Identifier "(no identifier)" }}
**{{ or .Title "(untitled)" }}**
{{ if .Description }}
{{ .Description }}
{{ end }}
- **Who:** {{ or .ReportingOrg .ReportingOrgRef "not reported" }}{{ if .ReportingOrgTypeLabel }} ({{ .ReportingOrgTypeLabel }}){{ end }}{{ if .ImplementingOrgs }}; implementing: {{ .ImplementingOrgs }}{{ end }}
- **What:** {{ or .SectorNames .Sectors "not reported" }}
- **Where:** {{ or .Locations .LocationRefs "not reported" }}
- **Status:** {{ or .StatusLabel "not reported" }}
- **Dates:** {{ or .StartDateActual .StartDatePlanned "?" }} to {{ or .EndDateActual .EndDatePlanned "?" }}
{{ end }}{{ end }}
---
*Run: {{ .RunID }} | {{ .Tool }} {{ .Version }}*
`))

func (r *markdownRenderer) Render(report *schema.Report) ([]byte, error) {
	view := markdownView{Report: report, Rows: make([]Row, 0, len(report.Activities))}
	for _, a := range report.Activities {
		view.Rows = append(view.Rows, Flatten(a, r.lang))
	}
	var buf bytes.Buffer
	if err := mdTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.Bytes(), nil
}
