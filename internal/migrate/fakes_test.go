package migrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"migrator/internal/accounts"
	"migrator/internal/ledger"
	"migrator/internal/pubkey"
)

// key builds a distinct, deterministic key for tests.
func key(tag byte, n int) pubkey.Key {
	var k pubkey.Key
	k[0] = tag
	k[1] = byte(n)
	k[2] = byte(n >> 8)
	k[31] = 0x5a
	return k
}

// fakeLedger serves accounts from a map and can fail selected keys.
type fakeLedger struct {
	mu       sync.Mutex
	accounts map[pubkey.Key]*ledger.Account
	fail     map[pubkey.Key]error
	calls    map[pubkey.Key]int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		accounts: make(map[pubkey.Key]*ledger.Account),
		fail:     make(map[pubkey.Key]error),
		calls:    make(map[pubkey.Key]int),
	}
}

func (f *fakeLedger) put(k pubkey.Key, a *ledger.Account) {
	f.accounts[k] = a
}

func (f *fakeLedger) GetAccount(_ context.Context, k pubkey.Key) (*ledger.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[k]++
	if err, ok := f.fail[k]; ok {
		return nil, err
	}
	a, ok := f.accounts[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, k)
	}
	return a, nil
}

func (f *fakeLedger) GetAccountCached(ctx context.Context, k pubkey.Key) (*ledger.Account, error) {
	return f.GetAccount(ctx, k)
}

func (f *fakeLedger) callCount(k pubkey.Key) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[k]
}

// mapLocator maps an item to its token account.
type mapLocator map[pubkey.Key]pubkey.Key

func (m mapLocator) Locate(_ context.Context, mint pubkey.Key) (pubkey.Key, error) {
	tok, ok := m[mint]
	if !ok {
		return pubkey.Key{}, fmt.Errorf("%w: no holder for %s", ledger.ErrAccountNotFound, mint)
	}
	return tok, nil
}

// fakeSubmitter records requests and answers with fn.
type fakeSubmitter struct {
	mu   sync.Mutex
	reqs []SubmitRequest
	fn   func(SubmitRequest) (string, error)
}

func (s *fakeSubmitter) Submit(_ context.Context, req SubmitRequest) (string, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	if s.fn == nil {
		return "sig-" + req.ItemMint.String()[:8], nil
	}
	return s.fn(req)
}

func (s *fakeSubmitter) requests() []SubmitRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SubmitRequest(nil), s.reqs...)
}

// world wires a fake ledger with one wallet-owned token account per item.
type world struct {
	ledger  *fakeLedger
	locator mapLocator
	owner   map[pubkey.Key]pubkey.Key
}

func newWorld(items ...pubkey.Key) *world {
	w := &world{ledger: newFakeLedger(), locator: mapLocator{}, owner: map[pubkey.Key]pubkey.Key{}}
	// Wallets are owned by the system program, which is not upgradeable.
	w.ledger.put(pubkey.SystemProgramID, &ledger.Account{Owner: pubkey.MustParse("NativeLoader1111111111111111111111111111111"), Executable: true})
	for i, it := range items {
		w.addItem(it, key(0xB0, i), key(0xC0, i))
	}
	return w
}

func (w *world) addItem(item, tokenAcct, owner pubkey.Key) {
	w.locator[item] = tokenAcct
	w.owner[item] = owner
	w.ledger.put(tokenAcct, &ledger.Account{
		Owner: pubkey.TokenProgramID,
		Data:  accounts.EncodeTokenAccount(accounts.TokenAccount{Mint: item, Owner: owner, Amount: 1, State: accounts.TokenAccountInitialized}),
	})
	if _, ok := w.ledger.accounts[owner]; !ok {
		w.ledger.put(owner, &ledger.Account{Owner: pubkey.SystemProgramID})
	}
}

func (w *world) resolver(t interface{ Fatalf(string, ...any) }, s Submitter) *Resolver {
	r, err := NewResolver(w.ledger, w.locator, s)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

// gaugeResolver tracks how many Resolve calls run at once.
type gaugeResolver struct {
	inFlight atomic.Int64
	peak     atomic.Int64
	hold     time.Duration
	fn       func(pubkey.Key) Outcome
}

func (g *gaugeResolver) Resolve(ctx context.Context, item pubkey.Key, _ SharedReference) Outcome {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if g.hold > 0 {
		select {
		case <-time.After(g.hold):
		case <-ctx.Done():
			return Failed(item, ctx.Err())
		}
	}
	if g.fn != nil {
		return g.fn(item)
	}
	return Succeeded(item, "sig")
}

type resolverFunc func(ctx context.Context, item pubkey.Key, ref SharedReference) Outcome

func (f resolverFunc) Resolve(ctx context.Context, item pubkey.Key, ref SharedReference) Outcome {
	return f(ctx, item, ref)
}

type stateFunc func(ctx context.Context, collection pubkey.Key) (accounts.MigrationState, error)

func (f stateFunc) GetState(ctx context.Context, collection pubkey.Key) (accounts.MigrationState, error) {
	return f(ctx, collection)
}

var errBoom = errors.New("boom")
