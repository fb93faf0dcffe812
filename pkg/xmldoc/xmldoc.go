package xmldoc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/codec"
)

// ErrXML is matched by every parse, serialize or transform failure
var ErrXML = errors.New("xml error")

var errNoRoot = errors.New("no root element found")

// Error reports a failed XML operation
type Error struct {
	Op  string // parse, serialize, ...
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrXML, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports ErrXML as a match
func (e *Error) Is(target error) bool { return target == ErrXML }

// Parse reads b into a tree. Documents declaring a charset other than UTF-8
// are transcoded while reading. When namespaceAware is set, every element
// and attribute prefix must be bound to a declared namespace.
func Parse(b []byte, namespaceAware bool) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = codec.NewReader
	if err := doc.ReadFromBytes(b); err != nil {
		return nil, &Error{Op: "parse", Err: err}
	}
	root := doc.Root()
	if root == nil {
		return nil, &Error{Op: "parse", Err: errNoRoot}
	}
	if namespaceAware {
		if err := checkPrefixes(root); err != nil {
			return nil, &Error{Op: "parse", Err: err}
		}
	}
	return doc, nil
}

func checkPrefixes(el *etree.Element) error {
	if el.Space != "" && el.NamespaceURI() == "" {
		return fmt.Errorf("element %s: unbound prefix %q", el.FullTag(), el.Space)
	}
	for i := range el.Attr {
		a := &el.Attr[i]
		if a.Space == "" || a.Space == "xmlns" || a.Space == "xml" {
			continue
		}
		if a.NamespaceURI() == "" {
			return fmt.Errorf("attribute %s on %s: unbound prefix %q", a.FullKey(), el.FullTag(), a.Space)
		}
	}
	for _, child := range el.ChildElements() {
		if err := checkPrefixes(child); err != nil {
			return err
		}
	}
	return nil
}

// Serialize writes the tree without an XML declaration. The input tree is
// left untouched.
func Serialize(doc *etree.Document) ([]byte, error) {
	if doc == nil || doc.Root() == nil {
		return nil, &Error{Op: "serialize", Err: errNoRoot}
	}

	out := copyDocument(doc, func(tok etree.Token) bool {
		switch t := tok.(type) {
		case *etree.ProcInst:
			return t.Target != "xml"
		case *etree.CharData:
			return false
		}
		return true
	})
	out.WriteSettings = etree.WriteSettings{
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}
	b, err := out.WriteToBytes()
	if err != nil {
		return nil, &Error{Op: "serialize", Err: err}
	}
	return b, nil
}

// Copy returns a deep copy of doc. Unlike etree's Document.Copy, the
// top-level tokens of the copy are children of the returned document.
func Copy(doc *etree.Document) *etree.Document {
	if doc == nil {
		return nil
	}
	return copyDocument(doc, func(etree.Token) bool { return true })
}

func copyDocument(doc *etree.Document, keep func(etree.Token) bool) *etree.Document {
	out := etree.NewDocument()
	out.ReadSettings = doc.ReadSettings
	out.WriteSettings = doc.WriteSettings
	for _, tok := range doc.Child {
		if !keep(tok) {
			continue
		}
		switch t := tok.(type) {
		case *etree.Element:
			out.AddChild(t.Copy())
		case *etree.ProcInst:
			out.AddChild(etree.NewProcInst(t.Target, t.Inst))
		case *etree.Comment:
			out.AddChild(etree.NewComment(t.Data))
		case *etree.Directive:
			out.AddChild(etree.NewDirective(t.Data))
		case *etree.CharData:
			if t.IsCData() {
				out.AddChild(etree.NewCData(t.Data))
			} else {
				out.AddChild(etree.NewText(t.Data))
			}
		}
	}
	return out
}

// SerializeElement serializes el as the root of its own document
func SerializeElement(el *etree.Element) ([]byte, error) {
	if el == nil {
		return nil, &Error{Op: "serialize", Err: errNoRoot}
	}
	return Serialize(etree.NewDocumentWithRoot(el.Copy()))
}

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// DetectEncoding returns the encoding named in the XML declaration of b, or
// UTF-8 when there is none. Only the declaration is read, so it works on
// documents that would fail a full parse.
func DetectEncoding(b []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(bytes.TrimPrefix(b, utf8BOM)))
	dec.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) {
		return r, nil
	}

	tok, err := dec.RawToken()
	if err != nil {
		return codec.UTF8
	}
	pi, ok := tok.(xml.ProcInst)
	if !ok || pi.Target != "xml" {
		return codec.UTF8
	}
	if enc := procInstParam(string(pi.Inst), "encoding"); enc != "" {
		return enc
	}
	return codec.UTF8
}

// procInstParam extracts a pseudo-attribute such as encoding="..." from the
// body of a processing instruction
func procInstParam(inst, param string) string {
	idx := strings.Index(inst, param)
	for idx >= 0 {
		rest := strings.TrimLeft(inst[idx+len(param):], " \t\r\n")
		if strings.HasPrefix(rest, "=") {
			rest = strings.TrimLeft(rest[1:], " \t\r\n")
			if rest == "" {
				return ""
			}
			quote := rest[0]
			if quote != '"' && quote != '\'' {
				return ""
			}
			end := strings.IndexByte(rest[1:], quote)
			if end < 0 {
				return ""
			}
			return rest[1 : end+1]
		}
		next := strings.Index(inst[idx+len(param):], param)
		if next < 0 {
			break
		}
		idx += len(param) + next
	}
	return ""
}
