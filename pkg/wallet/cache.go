package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

// RedisCache keeps the last successful balance per network, token and owner.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func balanceKey(network, symbol string, owner common.Address) string {
	return fmt.Sprintf("balance:%s:%s:%s", network, symbol, strings.ToLower(owner.Hex()))
}

func (c *RedisCache) Get(ctx context.Context, network, symbol string, owner common.Address) (*Balance, bool) {
	data, err := c.client.Get(ctx, balanceKey(network, symbol, owner)).Bytes()
	if err != nil {
		return nil, false
	}
	var b Balance
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, false
	}
	return &b, true
}

func (c *RedisCache) Set(ctx context.Context, network, symbol string, owner common.Address, b Balance) {
	data, err := json.Marshal(b)
	if err != nil {
		return
	}
	c.client.Set(ctx, balanceKey(network, symbol, owner), data, c.ttl)
}
