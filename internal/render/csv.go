package render

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"golang.org/x/text/language"

	"github.com/dshills/iati3w/internal/schema"
)

type csvRenderer struct {
	lang language.Tag
}

func (r *csvRenderer) Render(report *schema.Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("rendering csv: %w", err)
	}
	for _, a := range report.Activities {
		if err := w.Write(Flatten(a, r.lang).Values()); err != nil {
			return nil, fmt.Errorf("rendering csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("rendering csv: %w", err)
	}
	return buf.Bytes(), nil
}
