package delivery

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"

	"github.com/beevik/etree"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/message"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/security"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/xmldoc"
)

// State is a step of the secure delivery pipeline
type State int

// Pipeline states, in execution order
const (
	StateBuildInner State = iota
	StateSerializeInner
	StateSignInner
	StateReparseSignedInner
	StateBuildSeal
	StateSerializeSeal
	StateSignSeal
	StateReparseSignedSeal
	StateDone
)

var stateNames = [...]string{
	StateBuildInner:         "BUILD_INNER",
	StateSerializeInner:     "SERIALIZE_INNER",
	StateSignInner:          "SIGN_INNER",
	StateReparseSignedInner: "REPARSE_SIGNED_INNER",
	StateBuildSeal:          "BUILD_SEAL",
	StateSerializeSeal:      "SERIALIZE_SEAL",
	StateSignSeal:           "SIGN_SEAL",
	StateReparseSignedSeal:  "REPARSE_SIGNED_SEAL",
	StateDone:               "DONE",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

var errReleased = errors.New("marshal context already released")

// marshalContext holds the XML encoder of a single build. The inner
// delivery and the seal are written through the same encoder, with the
// buffer reset between documents. It is never shared between builds and
// must be released when the build ends.
type marshalContext struct {
	buf      bytes.Buffer
	enc      *xml.Encoder
	released bool
}

func acquireMarshalContext() *marshalContext {
	mc := &marshalContext{}
	mc.enc = xml.NewEncoder(&mc.buf)
	return mc
}

// toTree marshals v and parses the result into a tree
func (mc *marshalContext) toTree(v any) (*etree.Document, error) {
	if mc.released {
		return nil, errReleased
	}
	mc.buf.Reset()
	if err := mc.enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	return xmldoc.Parse(mc.buf.Bytes(), true)
}

// fromBytes unmarshals signed bytes into v
func (mc *marshalContext) fromBytes(b []byte, v any) error {
	if mc.released {
		return errReleased
	}
	if err := xml.NewDecoder(bytes.NewReader(b)).Decode(v); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", v, err)
	}
	return nil
}

func (mc *marshalContext) release() {
	mc.enc = nil
	mc.buf = bytes.Buffer{}
	mc.released = true
}

// pipeline carries the intermediate results of one build
type pipeline struct {
	mapper *Mapper
	req    *Request
	mc     *marshalContext
	state  State

	inner       *message.SignedDelivery
	innerTree   *etree.Document
	innerSigned *security.SignedDocument
	innerBytes  []byte
	seal        *message.RawSealedDelivery
	sealTree    *etree.Document
	sealSigned  *security.SignedDocument
	result      *SecureDelivery
}

// step runs the current state and advances to the next one. On error the
// state is left at the one that failed.
func (p *pipeline) step() error {
	var err error
	switch p.state {
	case StateBuildInner:
		p.inner, err = p.mapper.buildSignedDelivery(p.req)

	case StateSerializeInner:
		p.innerTree, err = p.mc.toTree(p.inner)

	case StateSignInner:
		p.innerSigned, err = p.mapper.signer.Sign(p.innerTree)

	case StateReparseSignedInner:
		// The seal must embed exactly what was signed
		var tree *etree.Document
		if tree, err = p.innerSigned.Tree(); err == nil {
			p.innerBytes, err = xmldoc.Serialize(tree)
		}

	case StateBuildSeal:
		p.seal = &message.RawSealedDelivery{
			SignedDelivery: p.innerBytes,
			Seal: message.Seal{
				ReceivedTime: p.mapper.clock(),
				SignaturesOK: true,
			},
		}

	case StateSerializeSeal:
		p.sealTree, err = p.mc.toTree(p.seal)

	case StateSignSeal:
		p.sealSigned, err = p.mapper.signer.Sign(p.sealTree)

	case StateReparseSignedSeal:
		var b []byte
		if b, err = p.sealSigned.Bytes(); err == nil {
			sealed := &message.SealedDelivery{}
			if err = p.mc.fromBytes(b, sealed); err == nil {
				p.result = &SecureDelivery{
					Document:       p.sealSigned,
					Sealed:         sealed,
					InnerSignature: p.innerSigned.Signature,
				}
			}
		}

	default:
		return fmt.Errorf("unexpected state %s", p.state)
	}

	if err != nil {
		return err
	}
	p.state++
	return nil
}
