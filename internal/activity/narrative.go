package activity

import (
	"github.com/dshills/iati3w/internal/schema"
	"github.com/dshills/iati3w/internal/xmlnode"
	"github.com/dshills/iati3w/internal/xpath"
)

var narrativePath = xpath.MustCompile("narrative")

// Narratives maps each narrative child of node to its text, keyed by the
// child's xml:lang or defaultLang when it declares none. Children are read
// in document order, so a repeated language keeps the last text.
func Narratives(node *xmlnode.Element, defaultLang string) schema.Narrative {
	out := schema.Narrative{}
	for _, ref := range narrativePath.Find(node) {
		child := ref.(*xmlnode.Element)
		lang := defaultLang
		if a, ok := child.Attr(xmlnode.LangAttr); ok && a.Value != "" {
			lang = a.Value
		}
		out[lang] = child.Text()
	}
	return out
}
