package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"migrator/internal/accounts"
	"migrator/internal/config"
	"migrator/internal/pubkey"
)

func encodeHeld(item, owner pubkey.Key) []byte {
	return accounts.EncodeTokenAccount(accounts.TokenAccount{
		Mint: item, Owner: owner, Amount: 1, State: accounts.TokenAccountInitialized,
	})
}

func newStateConfig(t *testing.T, rpcURL string, collection pubkey.Key) *config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	c := config.New()
	c.Target.Collection = collection.String()
	c.Network.RPCURL = rpcURL
	c.Runtime.MaxRetries = 0
	if err := c.ValidateState(); err != nil {
		t.Fatalf("ValidateState: %v", err)
	}
	return c
}

func TestRunState_PrintsState(t *testing.T) {
	chain := newFakeChain()
	chain.addCollection(t, cliCollection, pubkey.MigrationValidatorProgram, cliRuleSet)
	rpc := chain.serve(t)

	var stdout, stderr bytes.Buffer
	c := newStateConfig(t, rpc.URL, cliCollection)
	if code := runState(context.Background(), c, runEnv{stdout: &stdout, stderr: &stderr}); code != ExitOK {
		t.Fatalf("exit code = %d; stderr=%s", code, stderr.String())
	}

	var report struct {
		Cluster string `json:"cluster"`
		Address string `json:"address"`
		State   struct {
			CollectionInfo struct {
				RuleSet string `json:"rule_set"`
				Size    int    `json:"size"`
			} `json:"collection_info"`
			UnlockMethod string `json:"unlock_method"`
		} `json:"state"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v\n%s", err, stdout.String())
	}
	if report.Cluster != "devnet" {
		t.Fatalf("Cluster = %q", report.Cluster)
	}
	want, _ := accounts.MigrationStateAddress(cliCollection, pubkey.MigrationValidatorProgram)
	if report.Address != want.String() {
		t.Fatalf("Address = %s, want %s", report.Address, want)
	}
	if report.State.CollectionInfo.RuleSet != cliRuleSet.String() || report.State.CollectionInfo.Size != 3 {
		t.Fatalf("state = %+v", report.State)
	}
}

func TestRunState_MissingStateIsFatal(t *testing.T) {
	rpc := newFakeChain().serve(t)

	var stdout, stderr bytes.Buffer
	c := newStateConfig(t, rpc.URL, cliCollection)
	if code := runState(context.Background(), c, runEnv{stdout: &stdout, stderr: &stderr}); code != ExitFatal {
		t.Fatalf("exit code = %d, want 3", code)
	}
	if !strings.Contains(stderr.String(), "account not found") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}
