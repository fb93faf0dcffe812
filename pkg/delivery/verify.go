package delivery

import (
	"fmt"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/message"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/security"
	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/xmldoc"
)

// Verification holds both signatures of a sealed delivery
type Verification struct {
	Seal  *security.Signature
	Inner *security.Signature
}

// VerifySealedDelivery checks the seal signature over the whole document
// and the signature of the embedded SignedDelivery
func VerifySealedDelivery(b []byte) (*Verification, error) {
	doc, err := xmldoc.Parse(b, true)
	if err != nil {
		return nil, err
	}
	root := doc.Root()
	if root.Tag != "SealedDelivery" || root.NamespaceURI() != message.NsMessage {
		return nil, fmt.Errorf("unexpected root element {%s}%s", root.NamespaceURI(), root.Tag)
	}

	seal, err := security.Verify(root)
	if err != nil {
		return nil, fmt.Errorf("seal signature: %w", err)
	}

	var inner *security.Signature
	for _, child := range root.ChildElements() {
		if child.Tag == "SignedDelivery" && child.NamespaceURI() == message.NsMessage {
			if inner, err = security.Verify(child); err != nil {
				return nil, fmt.Errorf("delivery signature: %w", err)
			}
			break
		}
	}
	if inner == nil {
		return nil, fmt.Errorf("no SignedDelivery in sealed delivery")
	}

	return &Verification{Seal: seal, Inner: inner}, nil
}
