package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"returnbox_back_end/internal/models"
	"returnbox_back_end/internal/returns"
)

type SessionEventType string

const (
	SessionSignedIn  SessionEventType = "signed_in"
	SessionRefreshed SessionEventType = "refreshed"
	SessionSignedOut SessionEventType = "signed_out"
)

// SessionEvent est publié sur session:<user_id> quand la session change
type SessionEvent struct {
	Type   SessionEventType `json:"type"`
	UserID string           `json:"user_id"`
	Role   models.Role      `json:"role,omitempty"`
	At     time.Time        `json:"at"`
}

// Bus diffuse les changements via Redis pub/sub vers les websockets ouverts
type Bus struct {
	rdb *redis.Client
}

func NewBus(rdb *redis.Client) *Bus {
	return &Bus{rdb: rdb}
}

func (b *Bus) Enabled() bool { return b != nil && b.rdb != nil }

func MerchantChannel(merchantID string) string { return "returns:merchant:" + merchantID }

func CustomerChannel(email string) string { return "returns:customer:" + strings.ToLower(email) }

func SessionChannel(userID string) string { return "session:" + userID }

// ReturnChanged publie le changement au marchand et au client concernés
func (b *Bus) ReturnChanged(ctx context.Context, ch returns.Change) {
	if !b.Enabled() {
		return
	}
	payload, err := json.Marshal(ch)
	if err != nil {
		zap.S().Errorf("❌ Encodage du changement %s impossible: %v", ch.Return.ID, err)
		return
	}
	for _, channel := range []string{MerchantChannel(ch.Return.MerchantID), CustomerChannel(ch.Return.CustomerEmail)} {
		if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
			zap.S().Warnf("⚠️ Publication sur %s impossible: %v", channel, err)
		}
	}
}

func (b *Bus) PublishSession(ctx context.Context, ev SessionEvent) {
	if !b.Enabled() {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, _ := json.Marshal(ev)
	if err := b.rdb.Publish(ctx, SessionChannel(ev.UserID), payload).Err(); err != nil {
		zap.S().Warnf("⚠️ Publication de session impossible pour %s: %v", ev.UserID, err)
	}
}

// Subscribe retourne nil si Redis n'est pas configuré
func (b *Bus) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	if !b.Enabled() {
		return nil
	}
	return b.rdb.Subscribe(ctx, channels...)
}

// Decode lit un message reçu sur l'un des canaux du bus
func Decode(msg *redis.Message) (interface{}, error) {
	if strings.HasPrefix(msg.Channel, "session:") {
		var ev SessionEvent
		err := json.Unmarshal([]byte(msg.Payload), &ev)
		return ev, err
	}
	var ch returns.Change
	err := json.Unmarshal([]byte(msg.Payload), &ch)
	return ch, err
}
