package pubkey

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParse_RoundTrip(t *testing.T) {
	const s = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	k, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := k.String(); got != s {
		t.Fatalf("String() = %q, want %q", got, s)
	}
}

func TestParse_SystemProgramIsZero(t *testing.T) {
	k, err := Parse("11111111111111111111111111111111")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !k.IsZero() {
		t.Fatalf("expected zero key, got %s", k)
	}
	if k != SystemProgramID {
		t.Fatalf("expected SystemProgramID")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "empty", in: ""},
		{name: "whitespace", in: "   "},
		{name: "invalid alphabet", in: "0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl"},
		{name: "too short", in: "abc"},
		{name: "too long", in: strings.Repeat("z", 60)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in)
			if err == nil {
				t.Fatalf("expected error for %q", tt.in)
			}
			if !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("expected ErrInvalidKey, got %v", err)
			}
		})
	}
}

func TestKey_JSON(t *testing.T) {
	var v struct {
		Mint Key `json:"mint"`
	}
	in := `{"mint":"ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"}`
	if err := json.Unmarshal([]byte(in), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v.Mint != AssociatedTokenProgramID {
		t.Fatalf("unexpected key %s", v.Mint)
	}
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != in {
		t.Fatalf("Marshal = %s, want %s", out, in)
	}

	if err := json.Unmarshal([]byte(`{"mint":"nope"}`), &v); err == nil {
		t.Fatalf("expected error for malformed key")
	}
}

func TestFromBytes(t *testing.T) {
	if _, err := FromBytes(make([]byte, 31)); err == nil {
		t.Fatalf("expected error for short slice")
	}
	b := make([]byte, Size)
	b[0] = 7
	k, err := FromBytes(b)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if k[0] != 7 {
		t.Fatalf("unexpected first byte %d", k[0])
	}
}
