package xmldoc

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/beevik/etree"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/codec"
)

type source int

const (
	fromBytes source = iota
	fromText
	fromTree
)

// Document is an immutable XML document held as raw bytes, text or a tree.
//
// The first accessor call parses and serializes the source once and caches
// the result; every later call returns the same serialized form. Tree
// returns a copy, so the cached state can never be changed by a caller.
type Document struct {
	src  source
	raw  []byte
	text string
	tree *etree.Document

	once      sync.Once
	canonical []byte
	parsed    *etree.Document
	err       error
}

// FromBytes wraps serialized XML. The charset is taken from the XML
// declaration.
func FromBytes(b []byte) *Document {
	return &Document{src: fromBytes, raw: bytes.Clone(b)}
}

// FromString wraps XML text
func FromString(s string) *Document {
	return &Document{src: fromText, text: s}
}

// FromTree wraps a parsed tree. The tree is copied.
func FromTree(doc *etree.Document) *Document {
	d := &Document{src: fromTree}
	if doc != nil {
		d.tree = Copy(doc)
	}
	return d
}

func (d *Document) materialize() {
	d.once.Do(func() {
		var parsed *etree.Document
		switch d.src {
		case fromTree:
			parsed = d.tree
		case fromText:
			b, err := codec.Encode(d.text, DetectEncoding([]byte(d.text)))
			if err != nil {
				d.err = err
				return
			}
			parsed, d.err = Parse(b, true)
		default:
			parsed, d.err = Parse(d.raw, true)
		}
		if d.err != nil {
			return
		}
		d.canonical, d.err = Serialize(parsed)
		d.parsed = parsed
	})
}

// Bytes returns the serialized document, without XML declaration
func (d *Document) Bytes() ([]byte, error) {
	d.materialize()
	if d.err != nil {
		return nil, d.err
	}
	return bytes.Clone(d.canonical), nil
}

// Text returns the serialized document decoded with the charset it
// declares
func (d *Document) Text() (string, error) {
	d.materialize()
	if d.err != nil {
		return "", d.err
	}
	return codec.Decode(d.canonical, DetectEncoding(d.canonical))
}

// Tree returns a fresh copy of the parsed document
func (d *Document) Tree() (*etree.Document, error) {
	d.materialize()
	if d.err != nil {
		return nil, d.err
	}
	return Copy(d.parsed), nil
}

// Root returns a copy of the root element
func (d *Document) Root() (*etree.Element, error) {
	tree, err := d.Tree()
	if err != nil {
		return nil, err
	}
	return tree.Root(), nil
}

// Equal reports whether both documents serialize to the same bytes.
// Documents that fail to materialize are never equal.
func (d *Document) Equal(other *Document) bool {
	if d == nil || other == nil {
		return d == other
	}
	a, err := d.Bytes()
	if err != nil {
		return false
	}
	b, err := other.Bytes()
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Sum returns the hex SHA-256 of the serialized form
func (d *Document) Sum() (string, error) {
	b, err := d.Bytes()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
