// Package presence tracks which users are currently connected to a project.
// Entries live in Redis under a TTL, so a client that stops heartbeating
// drops off the online list by itself.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Record describes one connected user.
type Record struct {
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Registry implements the online-user registry on Redis
type Registry struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRegistry creates a new Redis-backed presence registry
func NewRegistry(redisURL string, ttl time.Duration) (*Registry, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Registry{
		client: client,
		prefix: "presence:",
		ttl:    ttl,
	}, nil
}

// NewRegistryWithClient creates a registry from an existing Redis client
func NewRegistryWithClient(client *redis.Client, ttl time.Duration) *Registry {
	return &Registry{
		client: client,
		prefix: "presence:",
		ttl:    ttl,
	}
}

func (r *Registry) key(customerID, projectID, userID string) string {
	return r.prefix + customerID + ":" + projectID + ":" + userID
}

func (r *Registry) scanPattern(customerID, projectID string) string {
	return r.prefix + customerID + ":" + projectID + ":*"
}

// Heartbeat marks a user as connected, refreshing the TTL on repeat calls.
func (r *Registry) Heartbeat(ctx context.Context, customerID, projectID string, record Record) error {
	if record.ConnectedAt.IsZero() {
		record.ConnectedAt = time.Now().UTC()
	}

	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal presence record: %w", err)
	}

	key := r.key(customerID, projectID, record.UserID)
	if err := r.client.Set(ctx, key, jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("save presence record: %w", err)
	}

	return nil
}

// Online lists the users currently connected to a project.
func (r *Registry) Online(ctx context.Context, customerID, projectID string) ([]Record, error) {
	var records []Record
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.scanPattern(customerID, projectID), 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan presence records: %w", err)
		}
		for _, key := range keys {
			jsonData, err := r.client.Get(ctx, key).Result()
			if err == redis.Nil {
				// Expired between scan and get.
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("read presence record: %w", err)
			}
			var record Record
			if err := json.Unmarshal([]byte(jsonData), &record); err != nil {
				return nil, fmt.Errorf("unmarshal presence record: %w", err)
			}
			records = append(records, record)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return records, nil
}

// Disconnect drops a user's presence entry immediately.
func (r *Registry) Disconnect(ctx context.Context, customerID, projectID, userID string) error {
	if err := r.client.Del(ctx, r.key(customerID, projectID, userID)).Err(); err != nil {
		return fmt.Errorf("drop presence record: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (r *Registry) Close() error {
	return r.client.Close()
}

// Ping checks if Redis is reachable
func (r *Registry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
