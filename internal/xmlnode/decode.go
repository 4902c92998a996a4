package xmlnode

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

// ErrNoRoot is returned for a payload that ends before any element starts,
// such as an empty body or plain text.
var ErrNoRoot = errors.New("no root element")

// Parse decodes a whole document and returns its root element.
func Parse(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing XML: %w", ErrNoRoot)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing XML: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return build(dec, start, nil)
		}
	}
}

// ReadElements decodes r and returns every element with the given local
// name, each detached from its ancestors. Matches are not searched for
// inside an already matched element. A document whose root holds no
// matches yields no elements; a payload with no root at all is an error.
func ReadElements(r io.Reader, name string) ([]*Element, error) {
	dec := xml.NewDecoder(r)
	var out []*Element
	sawRoot := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			if !sawRoot {
				return nil, fmt.Errorf("parsing XML: %w", ErrNoRoot)
			}
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parsing XML: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawRoot = true
		if start.Name.Local != name {
			continue
		}
		el, err := build(dec, start, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
}

// build consumes tokens up to the end of start and returns the subtree.
func build(dec *xml.Decoder, start xml.StartElement, parent *Element) (*Element, error) {
	el := &Element{Name: start.Name.Local, Parent: parent}
	for _, a := range start.Attr {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		el.Attrs = append(el.Attrs, Attr{Name: attrName(a.Name), Value: a.Value})
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("parsing XML element <%s>: %w", el.Name, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := build(dec, t, el)
			if err != nil {
				return nil, err
			}
			el.Children = append(el.Children, child)
		case xml.CharData:
			el.Runs = append(el.Runs, string(t))
		case xml.EndElement:
			return el, nil
		}
	}
}

// attrName keeps the namespace of a qualified attribute, so akvo:ref and
// ref stay distinct. The xml namespace is written as the "xml:" prefix.
func attrName(n xml.Name) string {
	switch n.Space {
	case "":
		return n.Local
	case xmlNamespace, "xml":
		return "xml:" + n.Local
	}
	return n.Space + ":" + n.Local
}
