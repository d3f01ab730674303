package migrate

import (
	"context"
	"errors"
	"fmt"

	"migrator/internal/accounts"
	"migrator/internal/ledger"
	"migrator/internal/pubkey"
)

// Ledger is the read side the resolver needs. *ledger.Client satisfies it.
type Ledger interface {
	GetAccount(ctx context.Context, key pubkey.Key) (*ledger.Account, error)
	// GetAccountCached may serve a memoized copy; used for program accounts.
	GetAccountCached(ctx context.Context, key pubkey.Key) (*ledger.Account, error)
}

// TokenAccountLocator finds the token account currently holding an item.
type TokenAccountLocator interface {
	Locate(ctx context.Context, mint pubkey.Key) (pubkey.Key, error)
}

// SubmitRequest carries everything the migration instruction needs for one
// item. TokenOwnerProgramBuffer is nil unless the owner program is
// upgradeable.
type SubmitRequest struct {
	ItemMint                pubkey.Key  `json:"item_mint"`
	ItemToken               pubkey.Key  `json:"item_token"`
	TokenOwner              pubkey.Key  `json:"token_owner"`
	TokenOwnerProgram       pubkey.Key  `json:"token_owner_program"`
	TokenOwnerProgramBuffer *pubkey.Key `json:"token_owner_program_buffer,omitempty"`
	CollectionMint          pubkey.Key  `json:"collection_mint"`
	RuleSet                 pubkey.Key  `json:"rule_set"`
}

// Submitter performs the state-changing migration call for one item and
// returns its transaction signature.
type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) (string, error)
}

// SharedReference is fetched once per batch and read by every task.
type SharedReference struct {
	Collection pubkey.Key
	RuleSet    pubkey.Key
}

// itemContext accumulates what the resolver learns about one item.
type itemContext struct {
	item         pubkey.Key
	tokenAccount pubkey.Key
	owner        pubkey.Key
	ownerProgram pubkey.Key
	programData  *pubkey.Key
}

type Resolver struct {
	ledger    Ledger
	locator   TokenAccountLocator
	submitter Submitter
}

func NewResolver(l Ledger, locator TokenAccountLocator, s Submitter) (*Resolver, error) {
	if l == nil {
		return nil, errors.New("resolver: ledger is nil")
	}
	if locator == nil {
		return nil, errors.New("resolver: token account locator is nil")
	}
	if s == nil {
		return nil, errors.New("resolver: submitter is nil")
	}
	return &Resolver{ledger: l, locator: locator, submitter: s}, nil
}

// Resolve runs the lookup chain for one item and submits it. It never
// returns an error: every failure becomes a failed Outcome for item.
func (r *Resolver) Resolve(ctx context.Context, item pubkey.Key, ref SharedReference) Outcome {
	ic := itemContext{item: item}
	sig, err := r.resolve(ctx, &ic, ref)
	if err != nil {
		return Failed(item, err)
	}
	return Succeeded(item, sig)
}

func (r *Resolver) resolve(ctx context.Context, ic *itemContext, ref SharedReference) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tokenAccount, err := r.locator.Locate(ctx, ic.item)
	if err != nil {
		return "", fmt.Errorf("locate token account: %w", err)
	}
	ic.tokenAccount = tokenAccount

	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := r.ledger.GetAccount(ctx, ic.tokenAccount)
	if err != nil {
		return "", fmt.Errorf("fetch token account %s: %w", ic.tokenAccount, err)
	}
	tok, err := accounts.DecodeTokenAccount(raw.Data)
	if err != nil {
		return "", fmt.Errorf("token account %s: %w", ic.tokenAccount, err)
	}
	if tok.Mint != ic.item {
		return "", fmt.Errorf("token account %s holds mint %s, not %s", ic.tokenAccount, tok.Mint, ic.item)
	}
	ic.owner = tok.Owner

	if err := ctx.Err(); err != nil {
		return "", err
	}
	ownerAcct, err := r.ledger.GetAccount(ctx, ic.owner)
	if err != nil {
		return "", fmt.Errorf("fetch token owner %s: %w", ic.owner, err)
	}
	ic.ownerProgram = ownerAcct.Owner

	if err := ctx.Err(); err != nil {
		return "", err
	}
	progAcct, err := r.ledger.GetAccountCached(ctx, ic.ownerProgram)
	if err != nil {
		return "", fmt.Errorf("fetch owner program %s: %w", ic.ownerProgram, err)
	}
	// Most owners are plain wallets or non-upgradeable programs; no buffer
	// is the normal case.
	if buf, ok := accounts.ProgramDataAddress(progAcct.Owner, progAcct.Data); ok {
		ic.programData = &buf
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	sig, err := r.submitter.Submit(ctx, SubmitRequest{
		ItemMint:                ic.item,
		ItemToken:               ic.tokenAccount,
		TokenOwner:              ic.owner,
		TokenOwnerProgram:       ic.ownerProgram,
		TokenOwnerProgramBuffer: ic.programData,
		CollectionMint:          ref.Collection,
		RuleSet:                 ref.RuleSet,
	})
	if err != nil {
		return "", fmt.Errorf("submit migration: %w", err)
	}
	if sig == "" {
		return "", errors.New("submit migration: empty transaction signature")
	}
	return sig, nil
}
