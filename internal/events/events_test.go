package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"returnbox_back_end/internal/models"
	"returnbox_back_end/internal/returns"
)

func TestChannels(t *testing.T) {
	assert.Equal(t, "returns:merchant:m1", MerchantChannel("m1"))
	assert.Equal(t, "returns:customer:client@example.com", CustomerChannel("Client@Example.com"))
	assert.Equal(t, "session:u1", SessionChannel("u1"))
}

func TestDisabledBusIsNoop(t *testing.T) {
	var b *Bus
	b.ReturnChanged(context.Background(), returns.Change{Kind: returns.ChangeSubmitted})
	b.PublishSession(context.Background(), SessionEvent{Type: SessionSignedIn, UserID: "u1"})
	assert.Nil(t, NewBus(nil).Subscribe(context.Background(), "x"))
}

func TestDecode(t *testing.T) {
	payload, err := json.Marshal(returns.Change{
		Kind:   returns.ChangeDecided,
		Return: models.ReturnRequest{ID: "r1", Status: models.ReturnStatusApproved},
	})
	require.NoError(t, err)

	v, err := Decode(&redis.Message{Channel: MerchantChannel("m1"), Payload: string(payload)})
	require.NoError(t, err)
	ch, ok := v.(returns.Change)
	require.True(t, ok)
	assert.Equal(t, models.ReturnStatusApproved, ch.Return.Status)

	v, err = Decode(&redis.Message{Channel: SessionChannel("u1"), Payload: `{"type":"signed_out","user_id":"u1"}`})
	require.NoError(t, err)
	assert.Equal(t, SessionSignedOut, v.(SessionEvent).Type)
}
