package codec

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// Well-known charset names
const (
	UTF8   = "UTF-8"
	Latin1 = "ISO-8859-1"
)

// windowSize is the number of bytes shown on each side of a bad byte
const windowSize = 3

// ErrEncoding is matched by every error returned from this package
var ErrEncoding = errors.New("encoding error")

// EncodingError describes a failed text/byte conversion
type EncodingError struct {
	Op      string // "encode" or "decode"
	Charset string
	Offset  int
	Window  string // hex dump around Offset, bad byte in brackets
	Latin1  string // best-effort ISO-8859-1 rendering of the window
	Err     error
}

func (e *EncodingError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s failed at offset %d for charset %s", ErrEncoding, e.Op, e.Offset, e.Charset)
	if e.Window != "" {
		fmt.Fprintf(&b, ": bytes %s", e.Window)
	}
	if e.Latin1 != "" {
		fmt.Fprintf(&b, " (as %s: %q)", Latin1, e.Latin1)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *EncodingError) Unwrap() error { return e.Err }

// Is reports ErrEncoding as a match
func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// Lookup resolves an IANA charset name to an encoding and its preferred
// MIME name
func Lookup(charset string) (encoding.Encoding, string, error) {
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil {
		return nil, "", fmt.Errorf("%w: unknown charset %q", ErrEncoding, charset)
	}
	if enc == nil {
		return nil, "", fmt.Errorf("%w: unsupported charset %q", ErrEncoding, charset)
	}
	name, err := ianaindex.MIME.Name(enc)
	if err != nil {
		name = strings.ToUpper(strings.TrimSpace(charset))
	}
	return enc, name, nil
}

// Encode converts text into bytes in the given charset
func Encode(text, charset string) ([]byte, error) {
	enc, name, err := Lookup(charset)
	if err != nil {
		return nil, err
	}

	if name == UTF8 {
		if !utf8.ValidString(text) {
			off := invalidUTF8Offset([]byte(text))
			return nil, newError("encode", name, []byte(text), off, encoding.ErrInvalidUTF8)
		}
		return []byte(text), nil
	}

	out, err := enc.NewEncoder().Bytes([]byte(text))
	if err == nil {
		return out, nil
	}

	// Locate the first rune the charset cannot represent
	for i, r := range text {
		if _, rerr := enc.NewEncoder().String(string(r)); rerr != nil {
			return nil, newError("encode", name, []byte(text), i, rerr)
		}
	}
	return nil, newError("encode", name, []byte(text), 0, err)
}

// Decode converts bytes in the given charset into text
func Decode(b []byte, charset string) (string, error) {
	enc, name, err := Lookup(charset)
	if err != nil {
		return "", err
	}

	if name == UTF8 {
		if off := invalidUTF8Offset(b); off >= 0 {
			return "", newError("decode", name, b, off, encoding.ErrInvalidUTF8)
		}
		return string(b), nil
	}

	if cm, ok := enc.(*charmap.Charmap); ok {
		for i, c := range b {
			if cm.DecodeByte(c) == utf8.RuneError {
				return "", newError("decode", name, b, i, errUnmappable)
			}
		}
		out, err := cm.NewDecoder().Bytes(b)
		if err != nil {
			return "", newError("decode", name, b, 0, err)
		}
		return string(out), nil
	}

	return decodeStream(enc, name, b)
}

// NewReader returns a reader producing UTF-8 from r, which is encoded in
// charset. It is suitable as an encoding/xml CharsetReader.
func NewReader(charset string, r io.Reader) (io.Reader, error) {
	enc, name, err := Lookup(charset)
	if err != nil {
		return nil, err
	}
	if name == UTF8 {
		return r, nil
	}
	return enc.NewDecoder().Reader(r), nil
}

var errUnmappable = errors.New("unmappable byte")

// decodeStream feeds the decoder the smallest window that yields output so
// that a replacement rune can be attributed to an exact offset
func decodeStream(enc encoding.Encoding, name string, b []byte) (string, error) {
	dec := enc.NewDecoder()
	var (
		out strings.Builder
		dst [16]byte
	)
	off, end := 0, 1
	for off < len(b) {
		if end > len(b) {
			end = len(b)
		}
		nDst, nSrc, err := dec.Transform(dst[:], b[off:end], end == len(b))
		if errors.Is(err, transform.ErrShortSrc) && end < len(b) {
			end++
			continue
		}
		if err != nil && !errors.Is(err, transform.ErrShortDst) {
			return "", newError("decode", name, b, off, err)
		}
		chunk := dst[:nDst]
		if nSrc == 0 {
			return "", newError("decode", name, b, off, errUnmappable)
		}
		for len(chunk) > 0 {
			r, size := utf8.DecodeRune(chunk)
			if r == utf8.RuneError {
				return "", newError("decode", name, b, off, errUnmappable)
			}
			out.WriteRune(r)
			chunk = chunk[size:]
		}
		off += nSrc
		end = off + 1
	}
	return out.String(), nil
}

func invalidUTF8Offset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}

func newError(op, charset string, b []byte, off int, cause error) *EncodingError {
	e := &EncodingError{
		Op:      op,
		Charset: charset,
		Offset:  off,
		Window:  HexWindow(b, off),
		Err:     cause,
	}
	if !strings.EqualFold(charset, Latin1) {
		e.Latin1 = latin1Window(b, off)
	}
	return e
}

// HexWindow renders the bytes around off as hex, marking b[off] with
// brackets, e.g. "61 62 63 [ff] 64 65 66"
func HexWindow(b []byte, off int) string {
	if len(b) == 0 {
		return ""
	}
	lo, hi := window(len(b), off)
	parts := make([]string, 0, hi-lo)
	for i := lo; i < hi; i++ {
		if i == off {
			parts = append(parts, fmt.Sprintf("[%02x]", b[i]))
		} else {
			parts = append(parts, fmt.Sprintf("%02x", b[i]))
		}
	}
	return strings.Join(parts, " ")
}

func latin1Window(b []byte, off int) string {
	if len(b) == 0 {
		return ""
	}
	lo, hi := window(len(b), off)
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b[lo:hi])
	if err != nil {
		return ""
	}
	return string(s)
}

func window(n, off int) (int, int) {
	lo := off - windowSize
	if lo < 0 {
		lo = 0
	}
	hi := off + windowSize + 1
	if hi > n {
		hi = n
	}
	return lo, hi
}
