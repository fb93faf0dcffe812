package xmldoc

import (
	"errors"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSerialize_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "declaration dropped",
			input: "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<a x=\"1\"><b>text &amp; more</b><c/></a>",
			want:  `<a x="1"><b>text &amp; more</b><c/></a>`,
		},
		{
			name:  "no declaration",
			input: `<ns:a xmlns:ns="urn:x"><ns:b attr="q&quot;v">x &lt; y</ns:b></ns:a>`,
			want:  `<ns:a xmlns:ns="urn:x"><ns:b attr="q&quot;v">x &lt; y</ns:b></ns:a>`,
		},
		{
			name:  "unicode text",
			input: `<a>Hej på dig</a>`,
			want:  `<a>Hej på dig</a>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.input), true)
			require.NoError(t, err)

			out, err := Serialize(doc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))

			// Serializing does not touch the input tree
			again, err := Serialize(doc)
			require.NoError(t, err)
			assert.Equal(t, out, again)
		})
	}
}

func TestParse_Latin1(t *testing.T) {
	input := append([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?><a>p`), 0xe5, '<', '/', 'a', '>')

	doc, err := Parse(input, false)
	require.NoError(t, err)
	assert.Equal(t, "på", doc.Root().Text())
}

func TestParse_Malformed(t *testing.T) {
	for _, input := range []string{
		"",
		"<a>",
		"<a></b>",
		"not xml at all",
	} {
		_, err := Parse([]byte(input), false)
		require.Error(t, err, "input %q", input)
		assert.True(t, errors.Is(err, ErrXML))

		var xmlErr *Error
		require.True(t, errors.As(err, &xmlErr))
		assert.Equal(t, "parse", xmlErr.Op)
	}
}

func TestParse_NamespaceAware(t *testing.T) {
	input := []byte(`<p:a><b/></p:a>`)

	_, err := Parse(input, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbound prefix")

	_, err = Parse(input, false)
	assert.NoError(t, err)

	_, err = Parse([]byte(`<a q:attr="1"/>`), true)
	assert.Error(t, err)
}

func TestSerialize_NoRoot(t *testing.T) {
	_, err := Serialize(etree.NewDocument())
	assert.True(t, errors.Is(err, ErrXML))

	_, err = Serialize(nil)
	assert.Error(t, err)
}

func TestSerialize_TopLevelTokens(t *testing.T) {
	input := "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<!-- head -->\n<?app mode=\"x\"?>\n<a><b/></a>\n"
	doc, err := Parse([]byte(input), true)
	require.NoError(t, err)

	out, err := Serialize(doc)
	require.NoError(t, err)
	assert.Equal(t, `<!-- head --><?app mode="x"?><a><b/></a>`, string(out))

	// The declaration is still on the input tree
	assert.NotNil(t, doc.FindElement("/a"))
	pi, ok := doc.Child[0].(*etree.ProcInst)
	require.True(t, ok)
	assert.Equal(t, "xml", pi.Target)
}

func TestCopy(t *testing.T) {
	doc, err := Parse([]byte("<?xml version=\"1.0\"?>\n<a><b>c</b></a>"), true)
	require.NoError(t, err)

	cp := Copy(doc)
	require.Len(t, cp.Child, len(doc.Child))
	for _, tok := range cp.Child {
		assert.Same(t, &cp.Element, tok.Parent())
	}

	// Tokens can be removed from the copy by identity
	decl := cp.Child[0]
	assert.Same(t, decl, cp.RemoveChild(decl))
	assert.Len(t, doc.Child, len(cp.Child)+1)

	cp.Root().CreateElement("d")
	assert.Len(t, doc.Root().ChildElements(), 1)

	assert.Nil(t, Copy(nil))
}

func TestDetectEncoding(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"declared latin1", `<?xml version="1.0" encoding="ISO-8859-1"?><a/>`, "ISO-8859-1"},
		{"single quotes", `<?xml version='1.0' encoding='windows-1252'?><a/>`, "windows-1252"},
		{"no encoding attribute", `<?xml version="1.0"?><a/>`, "UTF-8"},
		{"no declaration", `<a/>`, "UTF-8"},
		{"empty", ``, "UTF-8"},
		{"byte order mark", "\xef\xbb\xbf<?xml version=\"1.0\" encoding=\"UTF-8\"?><a/>", "UTF-8"},
		{"malformed body", `<?xml version="1.0" encoding="ISO-8859-1"?><a><b></a>`, "ISO-8859-1"},
		{"unknown charset", `<?xml version="1.0" encoding="x-made-up"?><a/>`, "x-made-up"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectEncoding([]byte(tt.input)))
		})
	}
}

func TestStripNamespacePrefixDeclarations(t *testing.T) {
	input := `<ns2:SignedDelivery xmlns:ns2="urn:msg" xmlns:ns3="urn:other">` +
		`<ns2:Delivery><ns3:Extra>x</ns3:Extra><ns2:Item>y</ns2:Item></ns2:Delivery>` +
		`</ns2:SignedDelivery>`

	doc, err := Parse([]byte(input), true)
	require.NoError(t, err)

	StripNamespacePrefixDeclarations(doc.Root())

	out, err := Serialize(doc)
	require.NoError(t, err)
	assert.Equal(t,
		`<SignedDelivery xmlns="urn:msg">`+
			`<Delivery><Extra xmlns="urn:other">x</Extra><Item>y</Item></Delivery>`+
			`</SignedDelivery>`,
		string(out))

	// Namespaces survive a reparse
	reparsed, err := Parse(out, true)
	require.NoError(t, err)
	extra := reparsed.FindElement("//Extra")
	require.NotNil(t, extra)
	assert.Equal(t, "urn:other", extra.NamespaceURI())
	item := reparsed.FindElement("//Item")
	require.NotNil(t, item)
	assert.Equal(t, "urn:msg", item.NamespaceURI())
}

func TestStripNamespacePrefixDeclarations_DefaultNamespaceKept(t *testing.T) {
	doc, err := Parse([]byte(`<a xmlns="urn:a"><b/></a>`), true)
	require.NoError(t, err)

	StripNamespacePrefixDeclarations(doc.Root())

	out, err := Serialize(doc)
	require.NoError(t, err)
	assert.Equal(t, `<a xmlns="urn:a"><b/></a>`, string(out))
}

func TestStripNamespacePrefixDeclarations_AttributePrefix(t *testing.T) {
	doc, err := Parse([]byte(`<p:a xmlns:p="urn:a" xmlns:q="urn:q" q:flag="1"/>`), true)
	require.NoError(t, err)

	StripNamespacePrefixDeclarations(doc.Root())

	root := doc.Root()
	assert.Equal(t, "", root.Space)
	assert.Equal(t, "urn:a", root.SelectAttrValue("xmlns", ""))
	flag := root.SelectAttr("q:flag")
	require.NotNil(t, flag)
	assert.Equal(t, "urn:q", flag.NamespaceURI())
}

func TestStripNamespacePrefixDeclarations_MergesText(t *testing.T) {
	root := etree.NewElement("a")
	root.AddChild(etree.NewText("one "))
	root.AddChild(etree.NewText(""))
	root.AddChild(etree.NewText("two"))
	root.CreateElement("b")

	StripNamespacePrefixDeclarations(root)

	require.Len(t, root.Child, 2)
	cd, ok := root.Child[0].(*etree.CharData)
	require.True(t, ok)
	assert.Equal(t, "one two", cd.Data)
}

func TestStripNamespacePrefixDeclarations_Nil(t *testing.T) {
	assert.NotPanics(t, func() { StripNamespacePrefixDeclarations(nil) })
}

func TestDetach(t *testing.T) {
	doc, err := Parse([]byte(`<a xmlns="urn:a" xmlns:p="urn:p"><p:b><c/></p:b></a>`), true)
	require.NoError(t, err)

	c := doc.FindElement("//c")
	require.NotNil(t, c)

	detached := Detach(c)
	assert.Nil(t, detached.Parent())
	assert.Equal(t, "urn:a", detached.SelectAttrValue("xmlns", ""))
	assert.Equal(t, "urn:p", detached.SelectAttrValue("xmlns:p", ""))
	assert.Equal(t, "urn:a", detached.NamespaceURI())

	// The original is untouched
	assert.Empty(t, c.Attr)
	assert.Nil(t, Detach(nil))
}
