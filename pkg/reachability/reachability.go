// Package reachability decides which recipients have a mailbox the sender
// may deliver to.
package reachability

import (
	"log/slog"
	"strings"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/message"
)

// Result is the mailbox of one recipient
type Result struct {
	RecipientID    string `json:"recipientId"`
	ServiceAddress string `json:"serviceAddress,omitempty"`
	ServiceName    string `json:"serviceName,omitempty"`
	Reachable      bool   `json:"reachable"`
}

// Mapper applies the eligibility rule against a fixed list of supported
// mailbox suppliers
type Mapper struct {
	suppliers []string
	logger    *slog.Logger
}

// NewMapper creates a mapper accepting suppliers whose name contains one of
// the given tokens, ignoring case. Blank tokens are ignored.
func NewMapper(supportedSuppliers []string, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Mapper{logger: logger}
	for _, s := range supportedSuppliers {
		if s = strings.TrimSpace(s); s != "" {
			m.suppliers = append(m.suppliers, s)
		}
	}
	return m
}

// Configured reports whether any supplier is supported
func (m *Mapper) Configured() bool {
	return len(m.suppliers) > 0
}

// MailboxSettings returns the eligible mailboxes in resp. Ineligible records
// are left out.
func (m *Mapper) MailboxSettings(resp *message.IsReachableResponse) []Result {
	var results []Result
	for _, r := range m.Statuses(resp) {
		if r.Reachable {
			results = append(results, r)
		}
	}
	return results
}

// Statuses returns one result per record in resp, with Reachable telling
// whether the record passed the eligibility rule
func (m *Mapper) Statuses(resp *message.IsReachableResponse) []Result {
	if resp == nil {
		return nil
	}
	results := make([]Result, 0, len(resp.Return))
	for _, status := range resp.Return {
		result := Result{RecipientID: status.AccountStatus.RecipientID}
		if supplier := status.AccountStatus.ServiceSupplier; supplier != nil {
			result.ServiceAddress = supplier.ServiceAddress
			result.ServiceName = m.shortName(supplier.Name)
		}

		if reason := m.ineligible(status); reason != "" {
			m.logger.Debug("recipient not reachable",
				"recipient", status.AccountStatus.RecipientID,
				"reason", reason)
		} else {
			result.Reachable = true
		}
		results = append(results, result)
	}
	return results
}

// Eligible reports whether a record describes a usable mailbox
func (m *Mapper) Eligible(status message.ReachabilityStatus) bool {
	return m.ineligible(status) == ""
}

// ineligible returns why status fails the eligibility rule, or "" if it
// passes
func (m *Mapper) ineligible(status message.ReachabilityStatus) string {
	supplier := status.AccountStatus.ServiceSupplier
	switch {
	case !status.SenderAccepted:
		return "sender not accepted"
	case supplier == nil:
		return "no mailbox"
	case status.AccountStatus.Pending:
		return "registration pending"
	case m.matchToken(supplier.Name) == "":
		return "supplier not supported"
	case strings.TrimSpace(supplier.ServiceAddress) == "":
		return "no service address"
	}
	return ""
}

func (m *Mapper) matchToken(name string) string {
	lower := strings.ToLower(name)
	for _, token := range m.suppliers {
		if strings.Contains(lower, strings.ToLower(token)) {
			return token
		}
	}
	return ""
}

// shortName is the lower-cased supported token found in name, or name
// itself when none is
func (m *Mapper) shortName(name string) string {
	if token := m.matchToken(name); token != "" {
		return strings.ToLower(token)
	}
	return name
}

// CreateIsReachableRequest queries the mailboxes of recipientIDs on behalf
// of the sender in one batch
func CreateIsReachableRequest(senderOrgNr string, recipientIDs []string) *message.IsReachable {
	return &message.IsReachable{
		SenderOrgNr: senderOrgNr,
		RecipientID: append([]string(nil), recipientIDs...),
	}
}
