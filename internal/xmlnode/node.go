// Package xmlnode holds the immutable element tree that activity projection
// walks, and the decoder that builds it from an XML payload.
package xmlnode

import "strings"

// LangAttr is the key under which xml:lang is stored in Attrs.
const LangAttr = "xml:lang"

// Ref is one result of a path lookup: either an *Element or an Attr.
type Ref interface {
	// Text returns the element's direct text runs, or the attribute value.
	Text() string
	ref()
}

// Attr is an attribute value selected by a path.
type Attr struct {
	Name  string
	Value string
}

func (a Attr) Text() string { return a.Value }
func (Attr) ref()           {}

// Element is one XML element with its attributes, child elements and the
// character data that appears directly inside it, in document order.
type Element struct {
	Name     string
	Attrs    []Attr
	Children []*Element
	Runs     []string
	Parent   *Element
}

func (*Element) ref() {}

// Text concatenates the element's direct text runs. Text inside nested
// elements is not included.
func (e *Element) Text() string {
	switch len(e.Runs) {
	case 0:
		return ""
	case 1:
		return e.Runs[0]
	}
	return strings.Join(e.Runs, "")
}

// Attr returns the named attribute.
func (e *Element) Attr(name string) (Attr, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attr{}, false
}

// Lang returns the element's xml:lang, or the nearest ancestor's. It is
// empty when no element in the chain declares one.
func (e *Element) Lang() string {
	for n := e; n != nil; n = n.Parent {
		if a, ok := n.Attr(LangAttr); ok && a.Value != "" {
			return a.Value
		}
	}
	return ""
}

// ChildrenNamed returns the direct children with the given local name.
func (e *Element) ChildrenNamed(name string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}
