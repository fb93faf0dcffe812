package message

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
)

// Envelope is a SOAP 1.1 envelope
type Envelope struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
	Header  *Header  `xml:"http://schemas.xmlsoap.org/soap/envelope/ Header,omitempty"`
	Body    Body     `xml:"http://schemas.xmlsoap.org/soap/envelope/ Body"`
}

// Header is the optional SOAP header
type Header struct {
	Content []byte `xml:",innerxml"`
}

// Body holds the operation payload or a fault
type Body struct {
	Content []byte `xml:",innerxml"`
	Fault   *Fault `xml:"http://schemas.xmlsoap.org/soap/envelope/ Fault,omitempty"`
}

// Fault is a SOAP 1.1 fault
type Fault struct {
	Code   string       `xml:"faultcode"`
	String string       `xml:"faultstring"`
	Actor  string       `xml:"faultactor,omitempty"`
	Detail *FaultDetail `xml:"detail,omitempty"`
}

// FaultDetail keeps the fault detail unparsed
type FaultDetail struct {
	Content string `xml:",innerxml"`
}

// ErrNoPayload is returned when a SOAP body carries neither payload nor fault
var ErrNoPayload = errors.New("empty SOAP body")

// MarshalEnvelope wraps payload in a SOAP 1.1 envelope. A []byte payload is
// embedded verbatim, anything else is XML-marshalled first.
func MarshalEnvelope(payload any) ([]byte, error) {
	var content []byte
	switch p := payload.(type) {
	case []byte:
		content = p
	default:
		b, err := xml.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		content = b
	}

	out, err := xml.Marshal(&Envelope{Body: Body{Content: content}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// UnmarshalEnvelope parses a SOAP 1.1 envelope. If the body carries a fault
// it is returned with a nil error; otherwise the body content is decoded
// into out.
func UnmarshalEnvelope(data []byte, out any) (*Fault, error) {
	var env Envelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse SOAP envelope: %w", err)
	}
	if env.Body.Fault != nil {
		return env.Body.Fault, nil
	}
	if len(bytes.TrimSpace(env.Body.Content)) == 0 {
		return nil, ErrNoPayload
	}
	if out == nil {
		return nil, nil
	}
	if err := xml.Unmarshal(env.Body.Content, out); err != nil {
		return nil, fmt.Errorf("failed to parse SOAP body: %w", err)
	}
	return nil, nil
}
