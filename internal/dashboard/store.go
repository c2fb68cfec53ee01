package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/userdesk/internal/shared"
	"github.com/odyssey-erp/userdesk/internal/userapi"
)

// ErrStaleState is returned by Save when a newer state is already stored.
var ErrStaleState = errors.New("dashboard: newer state already stored")

const saveAttempts = 3

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Store keeps one dashboard State per browser session in Redis.
type Store struct {
	client  *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

// NewStore constructs a Store. ttl should match the session lifetime;
// lockTTL bounds how long an abandoned submission keeps its form locked.
func NewStore(client *redis.Client, ttl, lockTTL time.Duration) *Store {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Store{client: client, ttl: ttl, lockTTL: lockTTL}
}

// Load returns the stored state and whether one existed.
func (s *Store) Load(ctx context.Context, sessionID string) (State, bool, error) {
	raw, err := s.client.Get(ctx, shared.DashboardStateKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewState(), false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("dashboard: load state: %w", err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, false, fmt.Errorf("dashboard: decode state: %w", err)
	}
	if st.Users == nil {
		st.Users = []userapi.User{}
	}
	return st, true, nil
}

// Save stores st unless a state carrying a newer response is already there.
func (s *Store) Save(ctx context.Context, sessionID string, st State) error {
	key := shared.DashboardStateKey(sessionID)
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("dashboard: encode state: %w", err)
	}
	for attempt := 0; attempt < saveAttempts; attempt++ {
		err = s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if err == nil {
				var current State
				if json.Unmarshal(raw, &current) == nil && current.Seq > st.Seq {
					return ErrStaleState
				}
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, s.ttl)
				return nil
			})
			return err
		}, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil && !errors.Is(err, ErrStaleState) {
		return fmt.Errorf("dashboard: save state: %w", err)
	}
	return err
}

// Sequencer returns a Sequencer shared by every request of sessionID.
func (s *Store) Sequencer(sessionID string) Sequencer {
	return redisSequencer{client: s.client, key: shared.DashboardSeqKey(sessionID), ttl: s.ttl}
}

// LockSubmit takes the session's submit lock. The returned func releases it.
func (s *Store) LockSubmit(ctx context.Context, sessionID string) (func(), error) {
	key := shared.DashboardSubmitLockKey(sessionID)
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, key, token, s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("dashboard: lock submit: %w", err)
	}
	if !ok {
		return nil, ErrSubmitInFlight
	}
	return func() {
		_ = releaseScript.Run(context.WithoutCancel(ctx), s.client, []string{key}, token).Err()
	}, nil
}

type redisSequencer struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func (r redisSequencer) Next(ctx context.Context) (uint64, error) {
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, r.key)
		if r.ttl > 0 {
			pipe.Expire(ctx, r.key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("dashboard: sequence: %w", err)
	}
	return uint64(incr.Val()), nil
}
