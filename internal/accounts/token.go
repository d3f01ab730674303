package accounts

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"migrator/internal/pubkey"
)

// TokenAccountSize is the packed length of an SPL token account.
const TokenAccountSize = 165

type TokenAccountState uint8

const (
	TokenAccountUninitialized TokenAccountState = iota
	TokenAccountInitialized
	TokenAccountFrozen
)

func (s TokenAccountState) String() string {
	switch s {
	case TokenAccountUninitialized:
		return "uninitialized"
	case TokenAccountInitialized:
		return "initialized"
	case TokenAccountFrozen:
		return "frozen"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// TokenAccount is the subset of an SPL token account the migration needs.
type TokenAccount struct {
	Mint   pubkey.Key
	Owner  pubkey.Key
	Amount uint64
	State  TokenAccountState
}

type tokenAccountLayout struct {
	Mint              [32]byte
	Owner             [32]byte
	Amount            uint64
	DelegateTag       uint32
	Delegate          [32]byte
	State             uint8
	IsNativeTag       uint32
	IsNative          uint64
	DelegatedAmount   uint64
	CloseAuthorityTag uint32
	CloseAuthority    [32]byte
}

// DecodeTokenAccount unpacks an SPL token account. Uninitialized accounts
// and wrong-sized buffers are errors.
func DecodeTokenAccount(data []byte) (TokenAccount, error) {
	if len(data) != TokenAccountSize {
		return TokenAccount{}, fmt.Errorf("decode token account: got %d bytes, want %d", len(data), TokenAccountSize)
	}
	var raw tokenAccountLayout
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &raw); err != nil {
		return TokenAccount{}, fmt.Errorf("decode token account: %w", err)
	}
	state := TokenAccountState(raw.State)
	if state == TokenAccountUninitialized || state > TokenAccountFrozen {
		return TokenAccount{}, fmt.Errorf("decode token account: invalid account state %s", state)
	}
	return TokenAccount{
		Mint:   pubkey.Key(raw.Mint),
		Owner:  pubkey.Key(raw.Owner),
		Amount: raw.Amount,
		State:  state,
	}, nil
}

// EncodeTokenAccount packs a token account with no delegate, no native
// balance and no close authority. Used by fakes and fixtures.
func EncodeTokenAccount(acct TokenAccount) []byte {
	raw := tokenAccountLayout{
		Mint:   acct.Mint,
		Owner:  acct.Owner,
		Amount: acct.Amount,
		State:  uint8(acct.State),
	}
	var buf bytes.Buffer
	buf.Grow(TokenAccountSize)
	_ = binary.Write(&buf, binary.LittleEndian, &raw)
	return buf.Bytes()
}
