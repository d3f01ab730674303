package migrate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"migrator/internal/pubkey"
)

// HolderLookup finds the largest token account of a mint.
type HolderLookup interface {
	GetLargestTokenAccount(ctx context.Context, mint pubkey.Key) (pubkey.Key, error)
}

// LargestHolderLocator asks the ledger which token account holds the mint.
type LargestHolderLocator struct {
	Ledger HolderLookup
}

func (l LargestHolderLocator) Locate(ctx context.Context, mint pubkey.Key) (pubkey.Key, error) {
	return l.Ledger.GetLargestTokenAccount(ctx, mint)
}

// AssociatedTokenLocator derives the holder's associated token account.
// It makes no network calls.
type AssociatedTokenLocator struct {
	Wallet pubkey.Key
}

func (l AssociatedTokenLocator) Locate(_ context.Context, mint pubkey.Key) (pubkey.Key, error) {
	return pubkey.FindAssociatedTokenAddress(l.Wallet, mint)
}

const (
	HolderLargest = "largest"
	holderATAPfx  = "ata:"
)

// ParseHolderStrategy validates a --holder value: "largest" or "ata:<wallet>".
func ParseHolderStrategy(s string) (strategy string, wallet pubkey.Key, err error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || strings.EqualFold(s, HolderLargest):
		return HolderLargest, pubkey.Key{}, nil
	case strings.HasPrefix(strings.ToLower(s), holderATAPfx):
		w, err := pubkey.Parse(s[len(holderATAPfx):])
		if err != nil {
			return "", pubkey.Key{}, fmt.Errorf("holder wallet: %w", err)
		}
		return holderATAPfx, w, nil
	default:
		return "", pubkey.Key{}, errors.New(`holder must be "largest" or "ata:<wallet>"`)
	}
}

// NewLocator builds the locator for a --holder value.
func NewLocator(holder string, l HolderLookup) (TokenAccountLocator, error) {
	strategy, wallet, err := ParseHolderStrategy(holder)
	if err != nil {
		return nil, err
	}
	if strategy == HolderLargest {
		if l == nil {
			return nil, errors.New("largest-holder lookup needs a ledger client")
		}
		return LargestHolderLocator{Ledger: l}, nil
	}
	return AssociatedTokenLocator{Wallet: wallet}, nil
}
