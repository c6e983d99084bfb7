package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/layer-3/warden/adapters/recovery"
	"github.com/layer-3/warden/adapters/store"
	"github.com/layer-3/warden/adapters/tokenizer"
	"github.com/layer-3/warden/core"
)

// fakeLedger emulates the registry contract: registered identities, a
// write-once secret slot, and a write-once wallet binding.
type fakeLedger struct {
	mu    sync.Mutex
	users map[common.Hash]*fakeUser

	getErr    error
	verifyErr error
	setupErr  error
	bindErr   error

	// beforeBind runs inside BindWallet ahead of its write-once guards, to
	// emulate another process binding between a caller's read and its write.
	beforeBind func()

	setupCalls int
	bindCalls  int
}

type fakeUser struct {
	secret    common.Hash
	hasSecret bool
	wallet    common.Address
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{users: make(map[common.Hash]*fakeUser)}
}

func (f *fakeLedger) register(idHash common.Hash) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[idHash] = &fakeUser{}
}

func (f *fakeLedger) GetUser(ctx context.Context, idHash common.Hash) (core.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return core.UserRecord{}, f.getErr
	}
	u, ok := f.users[idHash]
	if !ok {
		return core.UserRecord{}, nil
	}
	return core.UserRecord{Exists: true, HasSecret: u.hasSecret, BoundWallet: u.wallet}, nil
}

func (f *fakeLedger) SetSecretFirstTime(ctx context.Context, idHash, secretHash common.Hash) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.setupCalls++
	if f.setupErr != nil {
		return f.setupErr
	}
	u, ok := f.users[idHash]
	if !ok {
		return errors.New("unknown identity")
	}
	if u.hasSecret {
		return errors.New("secret already set")
	}
	u.secret = secretHash
	u.hasSecret = true
	return nil
}

func (f *fakeLedger) VerifySecret(ctx context.Context, idHash, secretHash common.Hash) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.verifyErr != nil {
		return false, f.verifyErr
	}
	u, ok := f.users[idHash]
	if !ok || !u.hasSecret {
		return false, nil
	}
	return u.secret == secretHash, nil
}

func (f *fakeLedger) BindWallet(ctx context.Context, idHash common.Hash, wallet common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.bindCalls++
	if f.beforeBind != nil {
		f.beforeBind()
	}
	if f.bindErr != nil {
		return f.bindErr
	}
	u, ok := f.users[idHash]
	if !ok {
		return errors.New("unknown identity")
	}
	if u.wallet != (common.Address{}) {
		return errors.New("identity already bound")
	}
	for _, other := range f.users {
		if other.wallet == wallet {
			return errors.New("wallet already bound")
		}
	}
	u.wallet = wallet
	return nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	bound  []string
	auths  []string
	pubErr error
}

func (p *recordingPublisher) PublishBound(ctx context.Context, idHash common.Hash, wallet common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pubErr != nil {
		return p.pubErr
	}
	p.bound = append(p.bound, wallet.Hex())
	return nil
}

func (p *recordingPublisher) PublishAuthenticated(ctx context.Context, wallet common.Address, method string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pubErr != nil {
		return p.pubErr
	}
	p.auths = append(p.auths, method)
	return nil
}

type testEnv struct {
	svc    *AuthService
	ledger *fakeLedger
	store  *store.MemoryStore
	events *recordingPublisher
	now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	env := &testEnv{
		ledger: newFakeLedger(),
		store:  store.NewMemoryStore(),
		events: &recordingPublisher{},
		now:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	logger := zap.NewNop()
	bindings := NewBindingResolver(env.store, env.ledger, logger)
	challenges := NewChallengeIssuer(env.store, 5*time.Minute)
	windows := core.Windows{WalletOnly: 350 * time.Second, FullRelogin: 900 * time.Second}

	env.svc = NewAuthService(
		env.ledger,
		env.store,
		bindings,
		challenges,
		recovery.NewEthRecovery(),
		tokenizer.NewJWTTokenizer(signKey, time.Hour),
		env.events,
		windows,
		logger,
	)
	env.svc.now = func() time.Time { return env.now }

	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}
