package event

import (
	"testing"
	"time"

	"reconcile-service/internal/payload"

	"github.com/stretchr/testify/assert"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func validEnvelope(t *testing.T) *payload.Envelope {
	t.Helper()
	env, err := DecodeEnvelope([]byte(`{
		"event": "virtual_account.credited",
		"payload": {
			"payment": {"entity": {"id": "pay_9", "amount": 500000, "created_at": 1717236000, "description": "order 17 thanks"}},
			"virtual_account": {"entity": {"id": "va_env", "notes": {"id": "alice"}}}
		}
	}`))
	assert.NoError(t, err)
	return env
}

func TestDecodeEnvelope_InvalidJSON(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"event":`))

	var malformed *MalformedError
	assert.ErrorAs(t, err, &malformed)
}

func TestNormalize_Success(t *testing.T) {
	env := validEnvelope(t)
	detail := &payload.BankTransferDetail{
		BankReference: "UTR123456",
		VirtualAccount: payload.VirtualAccountEntity{
			ID:    "va_detail",
			Notes: map[string]string{"id": "alice", "idnumber": "EXT-1"},
		},
	}

	ev, err := Normalize(env, detail, ist)

	assert.NoError(t, err)
	assert.Equal(t, "pay_9", ev.PaymentID)
	assert.Equal(t, int64(500000), ev.AmountMinor)
	assert.Equal(t, "order 17 thanks", ev.Description)
	assert.Equal(t, "UTR123456", ev.BankReference)
	// detail's virtual account wins over the envelope's
	assert.Equal(t, "va_detail", ev.VirtualAccountID)
	assert.Equal(t, "alice", ev.PayerNotes["id"])
	assert.Equal(t, "EXT-1", ev.PayerNotes["idnumber"])

	// epoch seconds pinned to the operational time zone
	assert.Equal(t, ist, ev.CreatedAt.Location())
	assert.Equal(t, int64(1717236000), ev.CreatedAt.Unix())
}

func TestNormalize_FallsBackToEnvelopeVirtualAccount(t *testing.T) {
	env := validEnvelope(t)
	detail := &payload.BankTransferDetail{BankReference: "UTR123456"}

	ev, err := Normalize(env, detail, ist)

	assert.NoError(t, err)
	assert.Equal(t, "va_env", ev.VirtualAccountID)
	assert.Equal(t, "alice", ev.PayerNotes["id"])
}

func TestNormalize_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			name:  "NoPaymentID",
			body:  `{"event": "virtual_account.credited", "payload": {"payment": {"entity": {"amount": 1, "created_at": 1}}}}`,
			field: "payment.entity.id",
		},
		{
			name:  "NoAmount",
			body:  `{"event": "virtual_account.credited", "payload": {"payment": {"entity": {"id": "pay_1", "created_at": 1}}}}`,
			field: "payment.entity.amount",
		},
		{
			name:  "NoCreatedAt",
			body:  `{"event": "virtual_account.credited", "payload": {"payment": {"entity": {"id": "pay_1", "amount": 1}}}}`,
			field: "payment.entity.created_at",
		},
		{
			name:  "NoVirtualAccount",
			body:  `{"event": "virtual_account.credited", "payload": {"payment": {"entity": {"id": "pay_1", "amount": 1, "created_at": 1}}}}`,
			field: "virtual_account.entity.id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tt.body))
			assert.NoError(t, err)

			_, err = Normalize(env, &payload.BankTransferDetail{}, ist)

			var malformed *MalformedError
			assert.ErrorAs(t, err, &malformed)
			assert.Equal(t, tt.field, malformed.Field)
		})
	}
}
