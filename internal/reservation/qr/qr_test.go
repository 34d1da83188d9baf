package qr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateProducesPNG(t *testing.T) {
	gen := NewGenerator("test-secret")

	png, err := gen.Generate(TicketClaim{
		TicketID: "ticket-1",
		EventID:  "event-1",
		UserID:   "user-1",
		Quantity: 2,
	})
	require.NoError(t, err)
	require.NotEmpty(t, png)
	// PNG magic bytes.
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestClaimRoundTrip(t *testing.T) {
	gen := NewGenerator("test-secret")
	claim := TicketClaim{
		TicketID: "ticket-1",
		EventID:  "event-1",
		UserID:   "user-1",
		Quantity: 3,
	}

	data := []byte(`{"ticket_id":"ticket-1","event_id":"event-1","user_id":"user-1","quantity":3}`)
	encrypted, err := encryptAES(data, gen.secret)
	require.NoError(t, err)

	got, err := gen.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, claim, *got)
}

func TestDecryptWithWrongSecret(t *testing.T) {
	gen := NewGenerator("test-secret")
	other := NewGenerator("other-secret")

	encrypted, err := encryptAES([]byte(`{"ticket_id":"t"}`), gen.secret)
	require.NoError(t, err)

	_, err = other.Decrypt(encrypted)
	assert.Error(t, err, "garbled plaintext must not unmarshal")
}
