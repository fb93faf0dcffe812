package reachability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/message"
)

func eligibleStatus() message.ReachabilityStatus {
	return message.ReachabilityStatus{
		SenderAccepted: true,
		AccountStatus: message.AccountStatus{
			RecipientID: "197001011234",
			Pending:     false,
			ServiceSupplier: &message.ServiceSupplier{
				ID:             "165568402266",
				Name:           "Kivra AB",
				ServiceAddress: "https://service.kivra.com/service",
			},
		},
	}
}

func TestMailboxSettings_AllGatesPass(t *testing.T) {
	m := NewMapper([]string{"Kivra", "Billo"}, nil)

	results := m.MailboxSettings(&message.IsReachableResponse{Return: []message.ReachabilityStatus{eligibleStatus()}})
	require.Len(t, results, 1)
	assert.Equal(t, Result{
		RecipientID:    "197001011234",
		ServiceAddress: "https://service.kivra.com/service",
		ServiceName:    "kivra",
		Reachable:      true,
	}, results[0])
}

func TestMailboxSettings_SingleGateFlips(t *testing.T) {
	m := NewMapper([]string{"kivra"}, nil)

	tests := []struct {
		name   string
		mutate func(*message.ReachabilityStatus)
	}{
		{"sender not accepted", func(s *message.ReachabilityStatus) { s.SenderAccepted = false }},
		{"no supplier", func(s *message.ReachabilityStatus) { s.AccountStatus.ServiceSupplier = nil }},
		{"pending", func(s *message.ReachabilityStatus) { s.AccountStatus.Pending = true }},
		{"unsupported supplier", func(s *message.ReachabilityStatus) { s.AccountStatus.ServiceSupplier.Name = "Min Myndighetspost" }},
		{"blank address", func(s *message.ReachabilityStatus) { s.AccountStatus.ServiceSupplier.ServiceAddress = "  " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := eligibleStatus()
			tt.mutate(&status)

			resp := &message.IsReachableResponse{Return: []message.ReachabilityStatus{status}}
			assert.Empty(t, m.MailboxSettings(resp))
			assert.False(t, m.Eligible(status))

			statuses := m.Statuses(resp)
			require.Len(t, statuses, 1)
			assert.False(t, statuses[0].Reachable)
			assert.Equal(t, "197001011234", statuses[0].RecipientID)
		})
	}
}

func TestMailboxSettings_MixedResponse(t *testing.T) {
	m := NewMapper([]string{"kivra", "fortnox"}, nil)

	second := eligibleStatus()
	second.AccountStatus.RecipientID = "197001015678"
	second.AccountStatus.ServiceSupplier = &message.ServiceSupplier{Name: "Fortnox AB", ServiceAddress: "https://fortnox.example/service"}

	dropped := eligibleStatus()
	dropped.AccountStatus.RecipientID = "197001019999"
	dropped.SenderAccepted = false

	resp := &message.IsReachableResponse{Return: []message.ReachabilityStatus{eligibleStatus(), dropped, second}}

	results := m.MailboxSettings(resp)
	require.Len(t, results, 2)
	assert.Equal(t, "197001011234", results[0].RecipientID)
	assert.Equal(t, "kivra", results[0].ServiceName)
	assert.Equal(t, "197001015678", results[1].RecipientID)
	assert.Equal(t, "fortnox", results[1].ServiceName)

	assert.Len(t, m.Statuses(resp), 3)
}

func TestShortName_Fallback(t *testing.T) {
	m := NewMapper([]string{"kivra"}, nil)
	assert.Equal(t, "kivra", m.shortName("KIVRA Service"))
	assert.Equal(t, "Min Myndighetspost", m.shortName("Min Myndighetspost"))

	// Unsupported suppliers still show their raw name for visibility
	status := eligibleStatus()
	status.AccountStatus.ServiceSupplier.Name = "Min Myndighetspost"
	statuses := m.Statuses(&message.IsReachableResponse{Return: []message.ReachabilityStatus{status}})
	assert.Equal(t, "Min Myndighetspost", statuses[0].ServiceName)
}

func TestNewMapper_Configured(t *testing.T) {
	assert.False(t, NewMapper(nil, nil).Configured())
	assert.False(t, NewMapper([]string{" ", ""}, nil).Configured())
	assert.True(t, NewMapper([]string{"kivra"}, nil).Configured())

	// Nothing is eligible without supported suppliers
	assert.Empty(t, NewMapper(nil, nil).MailboxSettings(&message.IsReachableResponse{
		Return: []message.ReachabilityStatus{eligibleStatus()},
	}))
	assert.Nil(t, NewMapper(nil, nil).Statuses(nil))
}

func TestCreateIsReachableRequest(t *testing.T) {
	ids := []string{"197001011234", "197001015678"}
	req := CreateIsReachableRequest("162120002411", ids)

	assert.Equal(t, "162120002411", req.SenderOrgNr)
	assert.Equal(t, ids, req.RecipientID)

	ids[0] = "changed"
	assert.Equal(t, "197001011234", req.RecipientID[0])
}
