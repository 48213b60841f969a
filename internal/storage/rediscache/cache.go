// Package rediscache mirrors each vehicle's freshest location into Redis
// with a TTL, so sibling services can read "where is bus N right now"
// without touching the hub and stale entries expire on their own.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Asadp3406/bus-tracking/internal/state"
	"github.com/Asadp3406/bus-tracking/pkg/options"
)

// Entry is the cached location record.
type Entry struct {
	VehicleID string  `json:"vehicleId"`
	RouteID   string  `json:"routeId,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Speed     float64 `json:"speed"`
	Bearing   float64 `json:"bearing"`
	Timestamp int64   `json:"timestamp"`
	UpdatedAt int64   `json:"updatedAt"`
}

// Cache writes vehicle locations into Redis. Safe for concurrent use.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection.
func New(opts *options.RedisOptions) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Cache{client: client, ttl: opts.TTL}, nil
}

func key(vehicleID string) string {
	return fmt.Sprintf("vehicle:%s:location", vehicleID)
}

// StoreLocation writes the vehicle's location under its freshness TTL.
func (c *Cache) StoreLocation(ctx context.Context, st state.VehicleState) error {
	entry := Entry{
		VehicleID: st.VehicleID,
		RouteID:   st.RouteID,
		Latitude:  st.Latitude,
		Longitude: st.Longitude,
		Speed:     st.Speed,
		Bearing:   st.Bearing,
		Timestamp: int64(st.Timestamp),
		UpdatedAt: st.UpdatedAt.UnixMilli(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(st.VehicleID), data, c.ttl).Err()
}

// Location reads a cached location. A missing or expired key returns
// (nil, nil).
func (c *Cache) Location(ctx context.Context, vehicleID string) (*Entry, error) {
	data, err := c.client.Get(ctx, key(vehicleID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Close releases the connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}
