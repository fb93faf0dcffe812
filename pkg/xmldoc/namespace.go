package xmldoc

import (
	"github.com/beevik/etree"
)

// StripNamespacePrefixDeclarations removes every xmlns:* declaration below
// and including root and clears element prefixes. An element whose
// namespace differs from the default namespace in scope gets that namespace
// declared as its own default, so every element keeps its namespace URI.
// Prefixes still used by attributes are re-declared on the element that
// uses them. The tree is normalized afterwards: adjacent text nodes are
// merged and empty ones dropped.
func StripNamespacePrefixDeclarations(root *etree.Element) {
	if root == nil {
		return
	}

	// Namespaces have to be resolved against the original declarations
	// before any of them are removed.
	resolved := make(map[*etree.Element]resolution)
	resolve(root, resolved)

	strip(root, inheritedDefault(root), resolved)
	normalize(root)
}

type resolution struct {
	uri      string
	attrNS   map[string]string // attribute prefix -> namespace URI
	attrKeys []string
}

func resolve(el *etree.Element, out map[*etree.Element]resolution) {
	r := resolution{uri: el.NamespaceURI()}
	for i := range el.Attr {
		a := &el.Attr[i]
		if a.Space == "" || a.Space == "xmlns" || a.Space == "xml" {
			continue
		}
		if r.attrNS == nil {
			r.attrNS = make(map[string]string)
		}
		if _, ok := r.attrNS[a.Space]; !ok {
			r.attrKeys = append(r.attrKeys, a.Space)
		}
		r.attrNS[a.Space] = a.NamespaceURI()
	}
	out[el] = r
	for _, child := range el.ChildElements() {
		resolve(child, out)
	}
}

// inheritedDefault returns the default namespace in scope at el's parent
func inheritedDefault(el *etree.Element) string {
	for p := el.Parent(); p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			if a.Space == "" && a.Key == "xmlns" {
				return a.Value
			}
		}
	}
	return ""
}

func strip(el *etree.Element, inherited string, resolved map[*etree.Element]resolution) {
	r := resolved[el]

	var drop []string
	for _, a := range el.Attr {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			drop = append(drop, a.FullKey())
		}
	}
	for _, key := range drop {
		el.RemoveAttr(key)
	}

	el.Space = ""
	if r.uri != inherited {
		el.CreateAttr("xmlns", r.uri)
	}
	for _, prefix := range r.attrKeys {
		if uri := r.attrNS[prefix]; uri != "" {
			el.CreateAttr("xmlns:"+prefix, uri)
		}
	}

	for _, child := range el.ChildElements() {
		strip(child, r.uri, resolved)
	}
}

func normalize(el *etree.Element) {
	var prev *etree.CharData
	for i := 0; i < len(el.Child); {
		switch t := el.Child[i].(type) {
		case *etree.CharData:
			if t.Data == "" {
				el.RemoveChildAt(i)
				continue
			}
			if prev != nil && !prev.IsCData() && !t.IsCData() {
				prev.SetData(prev.Data + t.Data)
				el.RemoveChildAt(i)
				continue
			}
			prev = t
		case *etree.Element:
			normalize(t)
			prev = nil
		default:
			prev = nil
		}
		i++
	}
}

// Detach returns a copy of el that can stand on its own: namespace
// declarations in scope at el's ancestors are redeclared on the copy unless
// el declares the same prefix itself.
func Detach(el *etree.Element) *etree.Element {
	if el == nil {
		return nil
	}
	out := el.Copy()

	declared := make(map[string]bool)
	for _, a := range el.Attr {
		switch {
		case a.Space == "xmlns":
			declared[a.Key] = true
		case a.Space == "" && a.Key == "xmlns":
			declared[""] = true
		}
	}

	for p := el.Parent(); p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			var prefix string
			switch {
			case a.Space == "xmlns":
				prefix = a.Key
			case a.Space == "" && a.Key == "xmlns":
				prefix = ""
			default:
				continue
			}
			if declared[prefix] {
				continue
			}
			declared[prefix] = true
			if prefix == "" {
				if a.Value != "" {
					out.CreateAttr("xmlns", a.Value)
				}
				continue
			}
			out.CreateAttr("xmlns:"+prefix, a.Value)
		}
	}
	return out
}
