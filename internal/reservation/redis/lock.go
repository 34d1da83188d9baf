package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis serializes status transitions per ticket: whoever holds
// ticket_lock:<id> is the only caller allowed to move that ticket through
// the state machine. Locks carry a TTL so a crashed holder cannot wedge a
// ticket forever.
type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

func lockKey(ticketID string) string {
	return "ticket_lock:" + ticketID
}

// getLockTTL returns the transition lock TTL from the environment or the
// default of 30 seconds.
func (r *Redis) getLockTTL() time.Duration {
	defaultTTL := 30 * time.Second

	ttlStr := os.Getenv("TICKET_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultTTL
	}

	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid TICKET_LOCK_TTL_SECONDS value '" + ttlStr + "', using default 30 seconds")
		return defaultTTL
	}
	return time.Duration(ttlSec) * time.Second
}

// LockTicket takes the transition lock for a ticket. Returns false when a
// concurrent transition already holds it.
func (r *Redis) LockTicket(ticketID, token string) (bool, error) {
	ok, err := r.Client.SetNX(context.Background(), lockKey(ticketID), token, r.getLockTTL()).Result()
	return ok, err
}

// UnlockTicket releases the lock, but only for the holder that took it;
// an expired-and-retaken lock is left alone.
func (r *Redis) UnlockTicket(ticketID, token string) error {
	ctx := context.Background()
	key := lockKey(ticketID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already expired
	}
	if err != nil {
		return err
	}
	if val == token {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// IsLocked reports whether a transition is in flight for the ticket.
func (r *Redis) IsLocked(ticketID string) (bool, error) {
	_, err := r.Client.Get(context.Background(), lockKey(ticketID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lock check failed for ticket %s: %w", ticketID, err)
	}
	return true, nil
}
