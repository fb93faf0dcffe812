package message

import (
	"encoding/base64"
	"encoding/xml"
	"strings"
	"time"
)

// Namespaces of the secure digital mail schemas
const (
	NsMessage          = "http://minameddelanden.gov.se/schema/Message/v3"
	NsRecipient        = "http://minameddelanden.gov.se/schema/Recipient/v3"
	NsRecipientService = "http://minameddelanden.gov.se/Recipient/v3"
	NsService          = "http://minameddelanden.gov.se/Service/v3"
	NsSOAP11           = "http://schemas.xmlsoap.org/soap/envelope/"
)

// Body content types
const (
	ContentTypePlain = "text/plain"
	ContentTypeHTML  = "text/html"
)

// DefaultLanguage is the language code put in every message header
const DefaultLanguage = "svSE"

// Base64Binary is binary content carried as base64 text
type Base64Binary []byte

// MarshalText encodes b as standard base64
func (b Base64Binary) MarshalText() ([]byte, error) {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(b)))
	base64.StdEncoding.Encode(out, b)
	return out, nil
}

// UnmarshalText decodes standard base64, ignoring embedded whitespace
func (b *Base64Binary) UnmarshalText(text []byte) error {
	decoded, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(string(text)), ""))
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

// SignedDelivery is the sender-signed inner document
type SignedDelivery struct {
	XMLName  xml.Name `xml:"http://minameddelanden.gov.se/schema/Message/v3 SignedDelivery"`
	Delivery Delivery `xml:"Delivery"`
}

// Delivery carries one or more messages to a single recipient
type Delivery struct {
	Header  DeliveryHeader `xml:"Header"`
	Message []Message      `xml:"Message"`
}

// DeliveryHeader identifies sender and recipient of a delivery
type DeliveryHeader struct {
	Sender        Sender `xml:"Sender"`
	Recipient     string `xml:"Recipient"`
	Reference     string `xml:"Reference,omitempty"`
	CorrelationID string `xml:"Correlation,omitempty"`
}

// Sender is the organization sending the delivery
type Sender struct {
	ID   string `xml:"Id"`
	Name string `xml:"Name"`
}

// Message is a single mail item
type Message struct {
	Header     MessageHeader `xml:"Header"`
	Body       MessageBody   `xml:"Body"`
	Attachment []Attachment  `xml:"Attachment,omitempty"`
}

// MessageHeader holds the message metadata shown to the recipient
type MessageHeader struct {
	ID          string      `xml:"Id"`
	Subject     string      `xml:"Subject"`
	SupportInfo SupportInfo `xml:"Supportinfo"`
	Language    string      `xml:"Language"`
}

// SupportInfo tells the recipient where to turn with questions
type SupportInfo struct {
	Text         string `xml:"Text"`
	URL          string `xml:"URL,omitempty"`
	Telephone    string `xml:"Telephone,omitempty"`
	EmailAddress string `xml:"EmailAdress,omitempty"`
}

// MessageBody is the main content of a message
type MessageBody struct {
	ContentType string       `xml:"ContentType"`
	Body        Base64Binary `xml:"Body"`
}

// Attachment is a file sent along with a message. Checksum is the
// upper-case hex MD5 of Body.
type Attachment struct {
	ContentType string       `xml:"ContentType"`
	Body        Base64Binary `xml:"Body"`
	Checksum    string       `xml:"Checksum"`
	Filename    string       `xml:"Filename"`
}

// Seal records that the mediator checked the inner signature
type Seal struct {
	ReceivedTime time.Time `xml:"ReceivedTime"`
	SignaturesOK bool      `xml:"SignaturesOK"`
}

// SealedDelivery is the outer document as read back: the signed inner
// delivery and the seal.
type SealedDelivery struct {
	XMLName        xml.Name       `xml:"http://minameddelanden.gov.se/schema/Message/v3 SealedDelivery"`
	SignedDelivery SignedDelivery `xml:"SignedDelivery"`
	Seal           Seal           `xml:"Seal"`
}

// RawSealedDelivery builds the outer document around an already signed,
// serialized SignedDelivery. The signed bytes are written verbatim so the
// inner signature survives.
type RawSealedDelivery struct {
	XMLName        xml.Name `xml:"http://minameddelanden.gov.se/schema/Message/v3 SealedDelivery"`
	SignedDelivery []byte   `xml:",innerxml"`
	Seal           Seal     `xml:"Seal"`
}

// DeliverSecure is the payload of the deliverSecure operation. The signed
// SealedDelivery is embedded verbatim.
type DeliverSecure struct {
	XMLName        xml.Name `xml:"http://minameddelanden.gov.se/Service/v3 deliverSecure"`
	SealedDelivery []byte   `xml:",innerxml"`
}

// DeliverSecureResponse is the reply to deliverSecure
type DeliverSecureResponse struct {
	XMLName xml.Name       `xml:"deliverSecureResponse"`
	Return  DeliveryResult `xml:"return"`
}

// DeliveryResult reports the outcome of a delivery
type DeliveryResult struct {
	TransactionID string           `xml:"TransactionId"`
	Status        []DeliveryStatus `xml:"Status"`
}

// DeliveryStatus is the outcome for one recipient
type DeliveryStatus struct {
	RecipientID string `xml:"RecipientId"`
	Delivered   bool   `xml:"Delivered"`
	Pending     bool   `xml:"Pending"`
}

// IsReachable is the payload of the isReachable operation
type IsReachable struct {
	XMLName     xml.Name `xml:"http://minameddelanden.gov.se/Recipient/v3 isReachable"`
	SenderOrgNr string   `xml:"senderOrgNr"`
	RecipientID []string `xml:"recipientId"`
}

// IsReachableResponse is the reply to isReachable
type IsReachableResponse struct {
	XMLName xml.Name             `xml:"isReachableResponse"`
	Return  []ReachabilityStatus `xml:"return"`
}

// ReachabilityStatus describes one recipient's mailbox
type ReachabilityStatus struct {
	AccountStatus  AccountStatus `xml:"AccountStatus"`
	SenderAccepted bool          `xml:"SenderAccepted"`
}

// AccountStatus is the recipient's registration. ServiceSupplier is nil
// when the recipient has no mailbox.
type AccountStatus struct {
	RecipientID     string           `xml:"RecipientId"`
	Pending         bool             `xml:"Pending"`
	ServiceSupplier *ServiceSupplier `xml:"ServiceSupplier"`
}

// ServiceSupplier is the mailbox operator
type ServiceSupplier struct {
	ID             string `xml:"Id"`
	Name           string `xml:"Name"`
	ServiceAddress string `xml:"ServiceAdress"`
	UIAddress      string `xml:"UIAdress,omitempty"`
}
