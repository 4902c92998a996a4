package render

import (
	"fmt"

	"golang.org/x/text/language"

	"github.com/dshills/iati3w/internal/schema"
)

// Renderer formats a Report into bytes for output.
type Renderer interface {
	Render(report *schema.Report) ([]byte, error)
}

// NewRenderer returns a Renderer for the given format string.
// Supported formats: "json" (default), "csv", "md". lang is the preferred
// narrative language for the flattened formats, as a BCP 47 tag.
func NewRenderer(format, lang string) (Renderer, error) {
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("invalid language %q: %w", lang, err)
	}
	switch format {
	case "json":
		return &jsonRenderer{}, nil
	case "csv":
		return &csvRenderer{lang: tag}, nil
	case "md":
		return &markdownRenderer{lang: tag}, nil
	default:
		return nil, fmt.Errorf("unknown format %q: supported formats are json, csv, md", format)
	}
}
