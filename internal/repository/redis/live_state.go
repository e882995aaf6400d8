package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/freeeve/botclash/internal/model"
)

// Key patterns for live dashboard state.
const (
	snapshotKey = "live:state"
)

// StoreSnapshot writes the latest live-state snapshot.
func (c *Client) StoreSnapshot(ctx context.Context, st *model.LiveState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal live state: %w", err)
	}
	return c.rdb.Set(ctx, snapshotKey, data, 0).Err()
}

// GetSnapshot reads the last stored snapshot, or nil when none exists.
func (c *Client) GetSnapshot(ctx context.Context) (*model.LiveState, error) {
	data, err := c.rdb.Get(ctx, snapshotKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get live state: %w", err)
	}
	var st model.LiveState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode live state: %w", err)
	}
	return &st, nil
}

// Clear removes the stored snapshot, e.g. before a new series starts.
func (c *Client) Clear(ctx context.Context) error {
	return c.rdb.Del(ctx, snapshotKey).Err()
}
