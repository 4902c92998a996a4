package source

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/dshills/iati3w/internal/xmlnode"
)

// File holds the activities read from a local IATI XML file.
type File struct {
	Path       string
	Hash       string // "sha256:<hex>"
	Activities []*xmlnode.Element
}

// LoadFile reads an IATI activity file from disk and hashes its content.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading activity file: %w", err)
	}

	acts, err := xmlnode.ReadElements(bytes.NewReader(data), ActivityElement)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	sum := sha256.Sum256(data)
	return &File{
		Path:       path,
		Hash:       fmt.Sprintf("sha256:%x", sum),
		Activities: acts,
	}, nil
}
