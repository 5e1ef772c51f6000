package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
	"github.com/popmap/popmap-api/internal/ports"
)

// FlowStore keeps short-lived sign-in flow state in Redis: pending role
// selections, callback processing markers, and the auto-sign-out suspension
// flag. All values are keyed so concurrent flows (separate tabs, separate
// states) never interfere. TTLs double as the freshness windows, so stale
// state evaporates without a cleanup pass.
type FlowStore struct {
	client redis.UniversalClient

	pendingRoleTTL time.Duration
	markerWindow   time.Duration
	suspendTTL     time.Duration
}

var _ ports.FlowStore = (*FlowStore)(nil)

// FlowStoreConfig tunes flow state lifetimes.
type FlowStoreConfig struct {
	// PendingRoleTTL bounds how long a requested role survives between
	// sign-in initiation and callback reconciliation.
	PendingRoleTTL time.Duration
	// MarkerWindow is how long a processing marker suppresses duplicate
	// callback runs for the same flow.
	MarkerWindow time.Duration
	// SuspendTTL caps the auto-sign-out suspension should a callback die
	// before lifting it.
	SuspendTTL time.Duration
}

// NewFlowStore creates a Redis-backed flow store.
func NewFlowStore(client redis.UniversalClient, cfg FlowStoreConfig) *FlowStore {
	if cfg.PendingRoleTTL <= 0 {
		cfg.PendingRoleTTL = 10 * time.Minute
	}
	if cfg.MarkerWindow <= 0 {
		cfg.MarkerWindow = 30 * time.Second
	}
	if cfg.SuspendTTL <= 0 {
		cfg.SuspendTTL = 2 * time.Minute
	}
	return &FlowStore{
		client:         client,
		pendingRoleTTL: cfg.PendingRoleTTL,
		markerWindow:   cfg.MarkerWindow,
		suspendTTL:     cfg.SuspendTTL,
	}
}

func pendingRoleKey(state string) string { return "authflow:role:" + state }
func markerKey(state string) string      { return "authflow:marker:" + state }

// suspendSetKey holds one member per suspending flow, scored by expiry, so
// overlapping callbacks cannot lift each other's suspension.
const suspendSetKey = "authflow:suspend"

func (s *FlowStore) SetPendingRole(ctx context.Context, state string, role domainauth.Role) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if err := s.client.Set(ctx, pendingRoleKey(state), string(role), s.pendingRoleTTL).Err(); err != nil {
		return fmt.Errorf("set pending role: %w", err)
	}
	return nil
}

// ConsumePendingRole reads and clears the pending role in one round trip
// (GETDEL), so concurrent consumers cannot both observe the value.
func (s *FlowStore) ConsumePendingRole(ctx context.Context, state string) (domainauth.Role, bool, error) {
	if state == "" {
		return "", false, nil
	}
	val, err := s.client.GetDel(ctx, pendingRoleKey(state)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("consume pending role: %w", err)
	}
	return domainauth.Role(val), true, nil
}

// TryBeginCallback claims the processing marker with SET NX. The marker TTL
// is the freshness window, so an existing key always means a fresh marker.
func (s *FlowStore) TryBeginCallback(ctx context.Context, state string) (bool, error) {
	if state == "" {
		return false, errors.New("state cannot be empty")
	}
	ok, err := s.client.SetNX(ctx, markerKey(state), time.Now().UTC().Format(time.RFC3339Nano), s.markerWindow).Result()
	if err != nil {
		return false, fmt.Errorf("claim callback marker: %w", err)
	}
	return ok, nil
}

func (s *FlowStore) ClearCallback(ctx context.Context, state string) error {
	if state == "" {
		return nil
	}
	if err := s.client.Del(ctx, markerKey(state)).Err(); err != nil {
		return fmt.Errorf("clear callback marker: %w", err)
	}
	return nil
}

func (s *FlowStore) SuspendAutoSignOut(ctx context.Context, state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	expiry := float64(time.Now().Add(s.suspendTTL).UnixMilli())
	if err := s.client.ZAdd(ctx, suspendSetKey, redis.Z{Score: expiry, Member: state}).Err(); err != nil {
		return fmt.Errorf("suspend auto sign-out: %w", err)
	}
	// The set key's own TTL tracks the newest entry so an abandoned set
	// still evaporates.
	if err := s.client.Expire(ctx, suspendSetKey, s.suspendTTL).Err(); err != nil {
		return fmt.Errorf("bound suspension set: %w", err)
	}
	return nil
}

func (s *FlowStore) ResumeAutoSignOut(ctx context.Context, state string) error {
	if state == "" {
		return nil
	}
	if err := s.client.ZRem(ctx, suspendSetKey, state).Err(); err != nil {
		return fmt.Errorf("resume auto sign-out: %w", err)
	}
	return nil
}

// AutoSignOutSuspended prunes expired entries, then reports whether any flow
// still holds a suspension.
func (s *FlowStore) AutoSignOutSuspended(ctx context.Context) (bool, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := s.client.ZRemRangeByScore(ctx, suspendSetKey, "-inf", now).Err(); err != nil {
		return false, fmt.Errorf("prune suspension set: %w", err)
	}
	n, err := s.client.ZCard(ctx, suspendSetKey).Result()
	if err != nil {
		return false, fmt.Errorf("check auto sign-out suspension: %w", err)
	}
	return n > 0, nil
}
