package schema

// ToolName is written to Report.Tool and checked when a report is read back.
const ToolName = "iati3w"

// Input sources.
const (
	SourceDPortal = "d-portal"
	SourceFile    = "file"
)

// Report is the top-level output structure written by the json renderer.
type Report struct {
	Tool       string     `json:"tool"`
	Version    string     `json:"version"`
	RunID      string     `json:"run_id"`
	Input      Input      `json:"input"`
	Summary    Summary    `json:"summary"`
	Activities []Activity `json:"activities"`
}

// Input captures where the activities came from.
type Input struct {
	Source   string `json:"source"` // SourceDPortal or SourceFile
	Endpoint string `json:"endpoint,omitempty"`
	Query    *Query `json:"query,omitempty"`
	File     string `json:"file,omitempty"`
	FileHash string `json:"file_hash,omitempty"` // "sha256:<hex>"
}

// Query records the d-portal filters used for a fetch.
type Query struct {
	CountryCode  string `json:"country_code,omitempty"`
	Humanitarian bool   `json:"humanitarian"`
	YearMin      int    `json:"year_min,omitempty"`
	YearMax      int    `json:"year_max,omitempty"`
	StatusCode   string `json:"status_code,omitempty"`
	PageSize     int    `json:"page_size"`
}

// Summary holds activity counts. Counts keyed by label use the codelist
// label, or "Unknown"/"Not reported" for missing codes.
type Summary struct {
	ActivityCount   int            `json:"activity_count"`
	ByStatus        map[string]int `json:"by_status"`
	ByReportingType map[string]int `json:"by_reporting_org_type"`
}

// Narrative maps a language code to text. A nil Narrative means the
// element carrying it was not reported; an empty one means it was reported
// with no narrative children.
type Narrative map[string]string

// Org describes an organisation. A field is nil when the corresponding
// attribute or element is missing.
type Org struct {
	Ref       *string   `json:"ref"`
	Type      *string   `json:"type"`
	TypeLabel *string   `json:"type_label"`
	Narrative Narrative `json:"narrative"`
}

// ParticipatingOrg is an Org with the role it plays in the activity.
type ParticipatingOrg struct {
	Org
	Role      *string `json:"role"`
	RoleLabel *string `json:"role_label"`
}

// Status is a coded activity status with its label.
type Status struct {
	Code  *string `json:"code"`
	Label *string `json:"label"`
}

// Sector is one sector entry within a vocabulary.
type Sector struct {
	Percentage *string   `json:"percentage"`
	Narrative  Narrative `json:"narrative"`
}

// Sectors is keyed by vocabulary code, then by sector code.
type Sectors map[string]map[string]Sector

// Location is one reported location. Fields whose source is missing are
// left out of the JSON entirely.
type Location struct {
	Ref                *string    `json:"ref,omitempty"`
	Narrative          *Narrative `json:"narrative,omitempty"`
	LocationClass      *string    `json:"location-class,omitempty"`
	LocationClassLabel *string    `json:"location-class-label,omitempty"`
	FeatureDesignation *string    `json:"feature-designation,omitempty"`
}

// Activity is the flat projection of one iati-activity element.
type Activity struct {
	IATIIdentifier    *string            `json:"iati-identifier"`
	Lang              string             `json:"lang,omitempty"`
	Humanitarian      bool               `json:"humanitarian"`
	ReportingOrg      Org                `json:"reporting-org"`
	ParticipatingOrgs []ParticipatingOrg `json:"participating-orgs"`
	ActivityStatus    Status             `json:"activity-status"`
	Title             Narrative          `json:"title"`
	Description       Narrative          `json:"description"`
	StartDatePlanned  *string            `json:"start_date_planned"`
	StartDateActual   *string            `json:"start_date_actual"`
	EndDatePlanned    *string            `json:"end_date_planned"`
	EndDateActual     *string            `json:"end_date_actual"`
	Sectors           Sectors            `json:"sectors"`
	Locations         []Location         `json:"locations"`
}

// Identifier returns the activity's IATI identifier, or "" when missing.
func (a *Activity) Identifier() string {
	if a.IATIIdentifier == nil {
		return ""
	}
	return *a.IATIIdentifier
}
