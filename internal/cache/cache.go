package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"returnbox_back_end/internal/models"
	"returnbox_back_end/internal/returns"
)

const (
	ProfileCacheTTL = 5 * time.Minute
	ListCacheTTL    = 1 * time.Minute
)

// Cache : toutes les méthodes sont sans effet si Redis n'est pas configuré
type Cache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func (c *Cache) Enabled() bool { return c != nil && c.rdb != nil }

// --- Profils ---

func (c *Cache) GetProfile(ctx context.Context, userID string) (*models.Profile, bool) {
	if !c.Enabled() {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, "profile:"+userID).Bytes()
	if err != nil {
		return nil, false
	}
	var p models.Profile
	if json.Unmarshal(data, &p) != nil {
		return nil, false
	}
	return &p, true
}

func (c *Cache) SetProfile(ctx context.Context, p *models.Profile) {
	if !c.Enabled() || p == nil {
		return
	}
	data, _ := json.Marshal(p)
	c.rdb.Set(ctx, "profile:"+p.ID, data, ProfileCacheTTL)
}

func (c *Cache) InvalidateProfile(ctx context.Context, userID string) {
	if !c.Enabled() {
		return
	}
	c.rdb.Del(ctx, "profile:"+userID)
}

// --- Listes de retours ---
// La clé contient un numéro de version par marchand : chaque mutation l'incrémente
// et les anciennes listes expirent d'elles-mêmes.

func versionKey(merchantID string) string { return "returns:version:" + merchantID }

func (c *Cache) listKey(ctx context.Context, merchantID string, status models.ReturnStatus) (string, error) {
	version, err := c.rdb.Get(ctx, versionKey(merchantID)).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("returns:list:%s:v%d:%s", merchantID, version, status), nil
}

// GetReturnList retourne aussi la clé versionnée lue avant l'accès en base :
// la liste rechargée doit être rangée sous cette clé, jamais sous une version plus récente.
func (c *Cache) GetReturnList(ctx context.Context, merchantID string, status models.ReturnStatus) ([]models.ReturnRequest, string, bool) {
	if !c.Enabled() {
		return nil, "", false
	}
	key, err := c.listKey(ctx, merchantID, status)
	if err != nil {
		return nil, "", false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, key, false
	}
	var list []models.ReturnRequest
	if json.Unmarshal(data, &list) != nil {
		return nil, key, false
	}
	return list, key, true
}

// SetReturnList range la liste sous la clé obtenue par GetReturnList
func (c *Cache) SetReturnList(ctx context.Context, key string, list []models.ReturnRequest) {
	if !c.Enabled() || key == "" {
		return
	}
	data, _ := json.Marshal(list)
	c.rdb.Set(ctx, key, data, ListCacheTTL)
}

// ReturnChanged invalide les listes du marchand concerné
func (c *Cache) ReturnChanged(ctx context.Context, ch returns.Change) {
	if !c.Enabled() {
		return
	}
	if err := c.rdb.Incr(ctx, versionKey(ch.Return.MerchantID)).Err(); err != nil {
		zap.S().Warnf("⚠️ Invalidation du cache impossible pour %s: %v", ch.Return.MerchantID, err)
	}
}
