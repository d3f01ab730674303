package cli

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"migrator/internal/accounts"
	"migrator/internal/config"
	"migrator/internal/pubkey"
)

func testKey(tag byte, n int) pubkey.Key {
	var k pubkey.Key
	k[0] = tag
	k[1] = byte(n)
	k[31] = 0x77
	return k
}

type chainAccount struct {
	owner pubkey.Key
	data  []byte
}

// fakeChain is a minimal JSON-RPC ledger: accounts, program account
// listings, largest holders and a genesis hash.
type fakeChain struct {
	mu       sync.Mutex
	accounts map[pubkey.Key]chainAccount
	holders  map[pubkey.Key]pubkey.Key
	genesis  string
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		accounts: map[pubkey.Key]chainAccount{},
		holders:  map[pubkey.Key]pubkey.Key{},
		genesis:  "EtWTRABZaYq6iMfeYKouRu166VU2xqa1wcaWoxPkrZBG",
	}
}

func (f *fakeChain) put(k, owner pubkey.Key, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[k] = chainAccount{owner: owner, data: data}
}

// addCollection stores a migration state for collection under program.
func (f *fakeChain) addCollection(t *testing.T, collection, program, ruleSet pubkey.Key) {
	t.Helper()
	addr, err := accounts.MigrationStateAddress(collection, program)
	if err != nil {
		t.Fatalf("MigrationStateAddress: %v", err)
	}
	f.put(addr, program, accounts.EncodeMigrationState(accounts.MigrationState{
		CollectionInfo: accounts.CollectionInfo{Mint: collection, RuleSet: ruleSet, Size: 3},
		UnlockMethod:   accounts.UnlockTimed,
	}))
}

// addItem stores a wallet-held token account for item.
func (f *fakeChain) addItem(item pubkey.Key, n int) {
	tokenAcct, owner := testKey(0xB0, n), testKey(0xC0, n)
	f.mu.Lock()
	f.holders[item] = tokenAcct
	f.mu.Unlock()
	f.put(tokenAcct, pubkey.TokenProgramID, accounts.EncodeTokenAccount(accounts.TokenAccount{
		Mint: item, Owner: owner, Amount: 1, State: accounts.TokenAccountInitialized,
	}))
	f.put(owner, pubkey.SystemProgramID, nil)
}

func (f *fakeChain) serve(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var target pubkey.Key
		if len(req.Params) > 0 {
			_ = json.Unmarshal(req.Params[0], &target)
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		var result any
		switch req.Method {
		case "getAccountInfo":
			acct, ok := f.accounts[target]
			if !ok {
				result = map[string]any{"context": map[string]any{"slot": 1}, "value": nil}
				break
			}
			result = map[string]any{
				"context": map[string]any{"slot": 1},
				"value": map[string]any{
					"data":       []string{base64.StdEncoding.EncodeToString(acct.data), "base64"},
					"executable": false,
					"lamports":   1,
					"owner":      acct.owner.String(),
				},
			}
		case "getTokenLargestAccounts":
			var value []map[string]any
			if h, ok := f.holders[target]; ok {
				value = append(value, map[string]any{"address": h.String(), "amount": "1"})
			}
			result = map[string]any{"context": map[string]any{"slot": 1}, "value": value}
		case "getProgramAccounts":
			list := []map[string]any{}
			for k, acct := range f.accounts {
				if acct.owner != target {
					continue
				}
				list = append(list, map[string]any{
					"pubkey": k.String(),
					"account": map[string]any{
						"data":       []string{base64.StdEncoding.EncodeToString(acct.data), "base64"},
						"executable": false,
						"lamports":   1,
						"owner":      acct.owner.String(),
					},
				})
			}
			result = list
		case "getGenesisHash":
			result = f.genesis
		default:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": 1, "error": map[string]any{"code": -32601, "message": "Method not found"}})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": 1, "result": result})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// fakeRelay signs everything it is sent.
type fakeRelay struct {
	mu    sync.Mutex
	items []string
}

func (f *fakeRelay) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

func (f *fakeRelay) serve(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.items = append(f.items, body["item_mint"])
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"signature": "sig-" + body["item_mint"][:6]})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newRunConfig returns a validated config pointed at the fakes.
func newRunConfig(t *testing.T, rpcURL, relayURL string, collection pubkey.Key, items []pubkey.Key) *config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()

	list := make([]string, len(items))
	for i, it := range items {
		list[i] = it.String()
	}
	b, _ := json.Marshal(list)
	itemsPath := dir + "/mints.json"
	if err := writeFile(itemsPath, b); err != nil {
		t.Fatalf("write items: %v", err)
	}

	c := config.New()
	c.Target.Collection = collection.String()
	c.Target.Items = itemsPath
	c.Network.RPCURL = rpcURL
	c.Network.RelayURL = relayURL
	c.Runtime.Concurrency = 4
	c.Runtime.MaxRetries = 0
	c.Output.Dir = dir + "/out"
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return c
}
