package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// --- Refresh Tokens (un par appareil, identifié par le jti) ---

func (c *Cache) StoreRefreshToken(ctx context.Context, userID, tokenID string, duration time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Set(ctx, fmt.Sprintf("refresh:%s:%s", userID, tokenID), "1", duration).Err()
}

// RefreshTokenValid : sans Redis, la révocation n'est pas suivie et tout token signé est accepté
func (c *Cache) RefreshTokenValid(ctx context.Context, userID, tokenID string) bool {
	if !c.Enabled() {
		return true
	}
	n, err := c.rdb.Exists(ctx, fmt.Sprintf("refresh:%s:%s", userID, tokenID)).Result()
	if err != nil {
		zap.S().Warnf("⚠️ Erreur vérification refresh token: %v", err)
		return false
	}
	return n > 0
}

func (c *Cache) DeleteRefreshToken(ctx context.Context, userID, tokenID string) error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Del(ctx, fmt.Sprintf("refresh:%s:%s", userID, tokenID)).Err()
}

// DeleteAllRefreshTokens déconnecte tous les appareils
func (c *Cache) DeleteAllRefreshTokens(ctx context.Context, userID string) error {
	if !c.Enabled() {
		return nil
	}
	iter := c.rdb.Scan(ctx, 0, fmt.Sprintf("refresh:%s:*", userID), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// --- Blacklist JWT (révocation avant expiration) ---

func (c *Cache) BlacklistToken(ctx context.Context, tokenID string, duration time.Duration) error {
	if !c.Enabled() || duration <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, "blacklist:"+tokenID, "revoked", duration).Err()
}

func (c *Cache) IsTokenBlacklisted(ctx context.Context, tokenID string) bool {
	if !c.Enabled() {
		return false
	}
	exists, err := c.rdb.Exists(ctx, "blacklist:"+tokenID).Result()
	if err != nil {
		zap.S().Warnf("⚠️ Erreur vérification blacklist: %v", err)
		return false
	}
	return exists > 0
}

// --- Rate limiting ---

// IncrementRateLimit incrémente le compteur et pose l'expiration à la première requête de la fenêtre
func (c *Cache) IncrementRateLimit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if !c.Enabled() {
		return 0, 0, nil
	}
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, 0, err
	}
	return incr.Val(), ttl.Val(), nil
}

func (c *Cache) ResetRateLimit(ctx context.Context, key string) {
	if !c.Enabled() {
		return
	}
	c.rdb.Del(ctx, key)
}

// RateLimitStatus lit le compteur sans l'incrémenter
func (c *Cache) RateLimitStatus(ctx context.Context, key string) (int64, time.Duration) {
	if !c.Enabled() {
		return 0, 0
	}
	n, err := c.rdb.Get(ctx, key).Int64()
	if err != nil {
		return 0, 0
	}
	return n, c.rdb.TTL(ctx, key).Val()
}
