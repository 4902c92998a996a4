package patch

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/dshills/iati3w/internal/schema"
)

// Kind classifies how an activity differs between two reports.
type Kind string

const (
	Added   Kind = "added"
	Removed Kind = "removed"
	Changed Kind = "changed"
)

// Change is one activity that differs between two reports. Before and After
// hold the indented JSON of the activity on each side ("" when absent).
type Change struct {
	ID     string
	Kind   Kind
	Before string
	After  string
}

// Compare matches activities of prev and next by identifier and returns the
// ones that were added, removed or changed, ordered by key. Activities
// without an identifier are keyed by their position; a repeated key gets the
// first free occurrence suffix so every activity is compared.
func Compare(prev, next *schema.Report) ([]Change, error) {
	before, err := index(prev)
	if err != nil {
		return nil, fmt.Errorf("indexing old report: %w", err)
	}
	after, err := index(next)
	if err != nil {
		return nil, fmt.Errorf("indexing new report: %w", err)
	}

	keys := lo.Union(lo.Keys(before), lo.Keys(after))
	sort.Strings(keys)

	var changes []Change
	for _, k := range keys {
		b, inOld := before[k]
		a, inNew := after[k]
		switch {
		case !inOld:
			changes = append(changes, Change{ID: k, Kind: Added, After: a})
		case !inNew:
			changes = append(changes, Change{ID: k, Kind: Removed, Before: b})
		case a != b:
			changes = append(changes, Change{ID: k, Kind: Changed, Before: b, After: a})
		}
	}
	return changes, nil
}

// GenerateDiff renders changes as a series of patch hunks, one section per
// activity. Added and removed activities are diffed against empty text.
// A one-line notice per change is written to w (may be nil).
func GenerateDiff(changes []Change, w io.Writer) string {
	if len(changes) == 0 {
		return ""
	}

	dmp := diffmatchpatch.New()
	var out strings.Builder

	for _, c := range changes {
		if w != nil {
			fmt.Fprintf(w, "%s: %s\n", c.Kind, c.ID)
		}

		// Line mode keeps hunks aligned to whole JSON lines.
		src, dst, lines := dmp.DiffLinesToChars(c.Before, c.After)
		diffs := dmp.DiffCharsToLines(dmp.DiffMain(src, dst, false), lines)
		patchText := dmp.PatchToText(dmp.PatchMake(c.Before, diffs))
		if patchText == "" {
			continue
		}

		fmt.Fprintf(&out, "# %s %s\n", c.Kind, c.ID)
		out.WriteString(patchText)
		out.WriteString("\n")
	}

	return out.String()
}

// index returns each activity of r as normalized JSON text keyed by identifier.
func index(r *schema.Report) (map[string]string, error) {
	out := make(map[string]string)
	if r == nil {
		return out, nil
	}
	for i := range r.Activities {
		a := &r.Activities[i]
		base := a.Identifier()
		if base == "" {
			base = fmt.Sprintf("#%d", i+1)
		}
		key := base
		for n := 2; lo.HasKey(out, key); n++ {
			key = fmt.Sprintf("%s (%d)", base, n)
		}

		raw, err := json.MarshalIndent(a, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("activity %s: %w", key, err)
		}
		out[key] = normalize(string(raw)) + "\n"
	}
	return out, nil
}

// normalize trims trailing whitespace from each line and converts CRLF to LF.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}
