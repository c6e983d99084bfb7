package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

const (
	sessionPrefix   = "warden:session:"
	bindIDPrefix    = "warden:bind:id:"
	bindAddrPrefix  = "warden:bind:addr:"
	challengePrefix = "warden:challenge:"

	fieldLastFull   = "last_full"
	fieldLastWallet = "last_wallet"
)

// refreshScript advances hash fields to the given unix-milli values but
// never moves them backwards, so concurrent refreshes cannot lose the most
// recent proof. ARGV is a flat field/value list.
var refreshScript = redis.NewScript(`
for i = 1, #ARGV, 2 do
	local cur = redis.call('HGET', KEYS[1], ARGV[i])
	if (not cur) or tonumber(ARGV[i+1]) > tonumber(cur) then
		redis.call('HSET', KEYS[1], ARGV[i], ARGV[i+1])
	end
end
return 1
`)

// bindScript records both directions of a binding only when neither side is
// already bound to a different counterpart. Returns 0 on conflict.
var bindScript = redis.NewScript(`
local curWallet = redis.call('GET', KEYS[1])
local curID = redis.call('GET', KEYS[2])
if (curWallet and curWallet ~= ARGV[1]) or (curID and curID ~= ARGV[2]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2])
return 1
`)

// RedisStore backs the session, binding, and challenge stores with Redis.
type RedisStore struct {
	client *redis.Client
}

var (
	_ ports.SessionStore   = (*RedisStore)(nil)
	_ ports.BindingStore   = (*RedisStore)(nil)
	_ ports.ChallengeStore = (*RedisStore)(nil)
)

// NewRedisStore creates a new Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// GetSession returns the session for a key.
func (s *RedisStore) GetSession(ctx context.Context, key string) (core.Session, bool, error) {
	vals, err := s.client.HGetAll(ctx, sessionPrefix+key).Result()
	if err != nil {
		return core.Session{}, false, fmt.Errorf("failed to read session: %w", err)
	}
	if len(vals) == 0 {
		return core.Session{}, false, nil
	}

	sess := core.Session{Wallet: key}
	if v, ok := vals[fieldLastFull]; ok {
		sess.LastFullAuthAt = parseMilli(v)
	}
	if v, ok := vals[fieldLastWallet]; ok {
		sess.LastWalletAuthAt = parseMilli(v)
	}
	return sess, true, nil
}

// RefreshFull advances both proof timestamps.
func (s *RedisStore) RefreshFull(ctx context.Context, key string, at time.Time) error {
	ms := strconv.FormatInt(at.UnixMilli(), 10)
	err := refreshScript.Run(ctx, s.client, []string{sessionPrefix + key},
		fieldLastFull, ms, fieldLastWallet, ms).Err()
	if err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}
	return nil
}

// RefreshWallet advances only the wallet-proof timestamp.
func (s *RedisStore) RefreshWallet(ctx context.Context, key string, at time.Time) error {
	ms := strconv.FormatInt(at.UnixMilli(), 10)
	err := refreshScript.Run(ctx, s.client, []string{sessionPrefix + key},
		fieldLastWallet, ms).Err()
	if err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}
	return nil
}

// PutBinding mirrors a confirmed ledger binding locally.
func (s *RedisStore) PutBinding(ctx context.Context, b core.Binding) error {
	idKey := bindIDPrefix + b.IDHash.Hex()
	addrKey := bindAddrPrefix + core.SessionKey(b.Wallet)

	ok, err := bindScript.Run(ctx, s.client, []string{idKey, addrKey},
		core.SessionKey(b.Wallet), b.IDHash.Hex()).Int()
	if err != nil {
		return fmt.Errorf("failed to record binding: %w", err)
	}
	if ok == 0 {
		return core.ErrBindingConflict
	}
	return nil
}

// WalletByIdentity resolves the forward direction of the binding mirror.
func (s *RedisStore) WalletByIdentity(ctx context.Context, idHash common.Hash) (common.Address, bool, error) {
	val, err := s.client.Get(ctx, bindIDPrefix+idHash.Hex()).Result()
	if err == redis.Nil {
		return common.Address{}, false, nil
	}
	if err != nil {
		return common.Address{}, false, fmt.Errorf("failed to read binding: %w", err)
	}
	return common.HexToAddress(val), true, nil
}

// IdentityByWallet resolves the reverse direction of the binding mirror.
func (s *RedisStore) IdentityByWallet(ctx context.Context, wallet common.Address) (common.Hash, bool, error) {
	val, err := s.client.Get(ctx, bindAddrPrefix+core.SessionKey(wallet)).Result()
	if err == redis.Nil {
		return common.Hash{}, false, nil
	}
	if err != nil {
		return common.Hash{}, false, fmt.Errorf("failed to read binding: %w", err)
	}
	return common.HexToHash(val), true, nil
}

// PutNonce stores the pending nonce for a conversation, replacing any prior
// unconsumed one.
func (s *RedisStore) PutNonce(ctx context.Context, conversationID, nonce string, ttl time.Duration) error {
	if err := s.client.Set(ctx, challengePrefix+conversationID, nonce, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store nonce: %w", err)
	}
	return nil
}

// TakeNonce consumes the pending nonce. GETDEL makes read-and-invalidate a
// single step, so two concurrent verifications cannot both observe it.
func (s *RedisStore) TakeNonce(ctx context.Context, conversationID string) (string, bool, error) {
	val, err := s.client.GetDel(ctx, challengePrefix+conversationID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to consume nonce: %w", err)
	}
	return val, true, nil
}

func parseMilli(v string) time.Time {
	ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
