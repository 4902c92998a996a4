package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/iati3w/internal/schema"
)

// Parse unmarshals a JSON report written by the json renderer and checks
// that it is structurally consistent.
func Parse(raw []byte) (*schema.Report, error) {
	var report schema.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("JSON parse failed: %w", err)
	}

	if err := validateReport(&report); err != nil {
		return nil, err
	}

	return &report, nil
}

func validateReport(r *schema.Report) error {
	if r.Tool != schema.ToolName {
		return fmt.Errorf("tool %q is not %s", r.Tool, schema.ToolName)
	}
	if err := validateInput(r.Input); err != nil {
		return err
	}
	if r.Summary.ActivityCount != len(r.Activities) {
		return fmt.Errorf("summary.activity_count %d does not match %d activities",
			r.Summary.ActivityCount, len(r.Activities))
	}
	for i, a := range r.Activities {
		if err := validateActivity(a, i); err != nil {
			return err
		}
	}
	return nil
}

func validateInput(in schema.Input) error {
	switch in.Source {
	case schema.SourceDPortal:
		if in.Endpoint == "" {
			return fmt.Errorf("input: endpoint is required for source %q", in.Source)
		}
	case schema.SourceFile:
		if in.File == "" {
			return fmt.Errorf("input: file is required for source %q", in.Source)
		}
		if in.FileHash != "" && !strings.HasPrefix(in.FileHash, "sha256:") {
			return fmt.Errorf("input: file_hash %q is not a sha256 digest", in.FileHash)
		}
	default:
		return fmt.Errorf("input: unknown source %q", in.Source)
	}
	return nil
}

func validateActivity(a schema.Activity, idx int) error {
	prefix := fmt.Sprintf("activity[%d]", idx)
	if a.IATIIdentifier != nil {
		prefix = fmt.Sprintf("activity[%d] %s", idx, *a.IATIIdentifier)
	}

	if a.ReportingOrg.TypeLabel != nil && a.ReportingOrg.Type == nil {
		return fmt.Errorf("%s: reporting-org type_label without type", prefix)
	}
	if a.ActivityStatus.Label != nil && a.ActivityStatus.Code == nil {
		return fmt.Errorf("%s: activity-status label without code", prefix)
	}
	for j, p := range a.ParticipatingOrgs {
		if p.RoleLabel != nil && p.Role == nil {
			return fmt.Errorf("%s.participating-orgs[%d]: role_label without role", prefix, j)
		}
		if p.TypeLabel != nil && p.Type == nil {
			return fmt.Errorf("%s.participating-orgs[%d]: type_label without type", prefix, j)
		}
	}
	for vocab, codes := range a.Sectors {
		if vocab == "" {
			return fmt.Errorf("%s.sectors: empty vocabulary key", prefix)
		}
		if len(codes) == 0 {
			return fmt.Errorf("%s.sectors[%s]: vocabulary without sectors", prefix, vocab)
		}
	}
	for j, l := range a.Locations {
		if l.LocationClassLabel != nil && l.LocationClass == nil {
			return fmt.Errorf("%s.locations[%d]: location-class-label without location-class", prefix, j)
		}
	}
	return nil
}
