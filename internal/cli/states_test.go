package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"migrator/internal/config"
	"migrator/internal/pubkey"
)

func newStatesConfig(t *testing.T, rpcURL string) *config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	c := config.New()
	c.Network.RPCURL = rpcURL
	c.Runtime.MaxRetries = 0
	c.Output.Dir = filepath.Join(t.TempDir(), "out")
	if err := c.ValidateStates(); err != nil {
		t.Fatalf("ValidateStates: %v", err)
	}
	return c
}

func TestRunStates_WritesClusterFile(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	program := pubkey.MigrationValidatorProgram
	chain := newFakeChain()
	chain.addCollection(t, cliCollection, program, cliRuleSet)
	chain.addCollection(t, testKey(0xD0, 1), program, cliRuleSet)
	// program signer: owned by the program, but not a state
	chain.put(testKey(0xEE, 0), program, []byte{0xFF})
	rpc := chain.serve(t)

	var stdout, stderr bytes.Buffer
	c := newStatesConfig(t, rpc.URL)
	if code := runStates(context.Background(), c, runEnv{stdout: &stdout, stderr: &stderr}); code != ExitOK {
		t.Fatalf("exit code = %d; stderr=%s", code, stderr.String())
	}

	path := filepath.Join(c.Output.Dir, "devnet_migration_states.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read states: %v", err)
	}
	var states []struct {
		CollectionInfo struct {
			Mint string `json:"mint"`
		} `json:"collection_info"`
	}
	if err := json.Unmarshal(raw, &states); err != nil {
		t.Fatalf("decode: %v\n%s", err, raw)
	}
	mints := map[string]bool{}
	for _, st := range states {
		mints[st.CollectionInfo.Mint] = true
	}
	if len(states) != 2 || !mints[cliCollection.String()] || !mints[testKey(0xD0, 1).String()] {
		t.Fatalf("states = %s", raw)
	}

	out := stdout.String()
	for _, want := range []string{"Found: 2 states", "skipped 1 non-state accounts", path} {
		if !strings.Contains(out, want) {
			t.Fatalf("stdout missing %q:\n%s", want, out)
		}
	}
}

func TestRunStates_NoStatesWritesEmptyArray(t *testing.T) {
	rpc := newFakeChain().serve(t)

	var stdout, stderr bytes.Buffer
	c := newStatesConfig(t, rpc.URL)
	if code := runStates(context.Background(), c, runEnv{stdout: &stdout, stderr: &stderr}); code != ExitOK {
		t.Fatalf("exit code = %d; stderr=%s", code, stderr.String())
	}
	raw, err := os.ReadFile(filepath.Join(c.Output.Dir, "devnet_migration_states.json"))
	if err != nil {
		t.Fatalf("read states: %v", err)
	}
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Fatalf("content = %q, want []", raw)
	}
}

func TestRunStates_ListFailureIsFatal(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := newStatesConfig(t, "http://127.0.0.1:1")
	if code := runStates(context.Background(), c, runEnv{stdout: &stdout, stderr: &stderr}); code != ExitFatal {
		t.Fatalf("exit code = %d, want 3", code)
	}
	if !strings.Contains(stderr.String(), "list program accounts") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}
