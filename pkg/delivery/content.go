package delivery

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/message"
)

// BodyInfo is the body of a mail request. Content is plain text for
// text/plain and base64 for every other content type.
type BodyInfo struct {
	ContentType string `json:"contentType"`
	Content     string `json:"body"`
}

// File is an attachment of a mail request. Content is base64.
type File struct {
	ContentType string `json:"contentType"`
	Content     string `json:"body"`
	Filename    string `json:"filename"`
}

// CreateBody returns the bytes to send for body: the UTF-8 text itself for
// text/plain, the base64-decoded content otherwise.
func CreateBody(body BodyInfo) ([]byte, error) {
	if body.ContentType == message.ContentTypePlain {
		return []byte(body.Content), nil
	}
	decoded, err := decodeBase64(body.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s body: %w", body.ContentType, err)
	}
	return decoded, nil
}

// CreateMessageBody builds the message body. A nil or blank body becomes an
// empty text/plain body.
func CreateMessageBody(body *BodyInfo) (message.MessageBody, error) {
	if body == nil || strings.TrimSpace(body.Content) == "" {
		return message.MessageBody{ContentType: message.ContentTypePlain, Body: message.Base64Binary{}}, nil
	}

	info := *body
	if info.ContentType == "" {
		info.ContentType = message.ContentTypePlain
	}
	content, err := CreateBody(info)
	if err != nil {
		return message.MessageBody{}, err
	}
	return message.MessageBody{ContentType: info.ContentType, Body: content}, nil
}

// CreateAttachments decodes files and checksums their content. The order of
// files is kept.
func CreateAttachments(files []File) ([]message.Attachment, error) {
	attachments := make([]message.Attachment, 0, len(files))
	for i, f := range files {
		content, err := decodeBase64(f.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to decode attachment %d (%s): %w", i, f.Filename, err)
		}
		attachments = append(attachments, message.Attachment{
			ContentType: f.ContentType,
			Body:        content,
			Checksum:    MD5Checksum(content),
			Filename:    f.Filename,
		})
	}
	return attachments, nil
}

// MD5Checksum returns the upper-case hex MD5 of b. The schema requires MD5
// for attachment checksums.
func MD5Checksum(b []byte) string {
	sum := md5.Sum(b)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.Join(strings.Fields(s), ""))
}
