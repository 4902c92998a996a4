package codelist

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Codelist names resolved by the activity projection.
const (
	OrganisationType = "organisation-type"
	OrganisationRole = "organisation-role"
	ActivityStatus   = "activity-status"
	LocationClass    = "location-class"
)

// Unknown is the label returned for a code missing from a known codelist.
const Unknown = "Unknown"

// ErrUnrecognizedCodelist is returned when a lookup names a codelist the
// table does not hold. It indicates a caller defect, not bad data.
var ErrUnrecognizedCodelist = errors.New("unrecognized codelist")

//go:embed codelists.yaml
var builtin []byte

var defaultTable = mustParse(builtin)

// Table maps codelist name to a code -> label mapping. A Table is never
// mutated after construction and is safe for concurrent reads.
type Table struct {
	lists map[string]map[string]string
}

// Default returns the table compiled into the binary.
func Default() *Table { return defaultTable }

// Parse decodes a YAML document of the form
//
//	organisation-type:
//	  "10": Government
func Parse(data []byte) (*Table, error) {
	var lists map[string]map[string]string
	if err := yaml.Unmarshal(data, &lists); err != nil {
		return nil, fmt.Errorf("parsing codelists: %w", err)
	}
	for name, codes := range lists {
		if codes == nil {
			lists[name] = map[string]string{}
		}
	}
	return &Table{lists: lists}, nil
}

// Load reads an override file and layers it over the built-in table. Lists
// present in the file replace the built-in list of the same name.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading codelist file: %w", err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Default().Merge(override), nil
}

func mustParse(data []byte) *Table {
	t, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return t
}

// Merge returns a new table holding t's lists with other's lists replacing
// any of the same name.
func (t *Table) Merge(other *Table) *Table {
	merged := make(map[string]map[string]string, len(t.lists)+len(other.lists))
	for name, codes := range t.lists {
		merged[name] = codes
	}
	for name, codes := range other.lists {
		merged[name] = codes
	}
	return &Table{lists: merged}
}

// Has reports whether the table holds a codelist with the given name.
func (t *Table) Has(name string) bool {
	_, ok := t.lists[name]
	return ok
}

// Names returns the codelist names in sorted order.
func (t *Table) Names() []string {
	names := lo.Keys(t.lists)
	sort.Strings(names)
	return names
}

// Label returns the human-readable label for code in the named codelist.
// A code the list does not define yields Unknown; a list the table does not
// define yields ErrUnrecognizedCodelist.
func (t *Table) Label(name, code string) (string, error) {
	codes, ok := t.lists[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnrecognizedCodelist, name)
	}
	if label, ok := codes[code]; ok {
		return label, nil
	}
	return Unknown, nil
}

// MustLabel is like Label but panics on an unrecognized codelist.
func (t *Table) MustLabel(name, code string) string {
	label, err := t.Label(name, code)
	if err != nil {
		panic(err)
	}
	return label
}

// Resolve labels an optional code. A nil or empty code means no code was
// reported, so the result is nil rather than Unknown.
func (t *Table) Resolve(name string, code *string) *string {
	if code == nil || *code == "" {
		return nil
	}
	label := t.MustLabel(name, *code)
	return &label
}

// Require returns an error naming every listed codelist the table lacks.
func (t *Table) Require(names ...string) error {
	missing := lo.Reject(names, func(name string, _ int) bool { return t.Has(name) })
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrUnrecognizedCodelist, missing)
	}
	return nil
}
