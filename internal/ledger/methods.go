package ledger

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"migrator/internal/pubkey"
)

// Account is a raw ledger account.
type Account struct {
	Lamports   uint64
	Owner      pubkey.Key
	Data       []byte
	Executable bool
}

type rawAccount struct {
	Data       []string `json:"data"`
	Executable bool     `json:"executable"`
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
}

type accountInfoResult struct {
	Value *rawAccount `json:"value"`
}

// GetAccount fetches the account at key. A missing account yields an error
// wrapping ErrAccountNotFound.
func (c *Client) GetAccount(ctx context.Context, key pubkey.Key) (*Account, error) {
	var res accountInfoResult
	params := []any{key.String(), map[string]string{
		"encoding":   "base64",
		"commitment": c.commitment,
	}}
	if err := c.call(ctx, "getAccountInfo", params, &res); err != nil {
		return nil, err
	}
	if res.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	acct, err := res.Value.decode()
	if err != nil {
		return nil, fmt.Errorf("getAccountInfo %s: %w", key, err)
	}
	return acct, nil
}

func (v *rawAccount) decode() (*Account, error) {
	owner, err := pubkey.Parse(v.Owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	if len(v.Data) != 2 || v.Data[1] != "base64" {
		return nil, fmt.Errorf("unexpected data encoding %v", v.Data)
	}
	data, err := base64.StdEncoding.DecodeString(v.Data[0])
	if err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	return &Account{
		Lamports:   v.Lamports,
		Owner:      owner,
		Data:       data,
		Executable: v.Executable,
	}, nil
}

// KeyedAccount is an account together with its address.
type KeyedAccount struct {
	Address pubkey.Key
	Account *Account
}

type programAccount struct {
	Pubkey  string       `json:"pubkey"`
	Account rawAccount `json:"account"`
}

// GetProgramAccounts returns every account owned by program.
func (c *Client) GetProgramAccounts(ctx context.Context, program pubkey.Key) ([]KeyedAccount, error) {
	var res []programAccount
	params := []any{program.String(), map[string]string{
		"encoding":   "base64",
		"commitment": c.commitment,
	}}
	if err := c.call(ctx, "getProgramAccounts", params, &res); err != nil {
		return nil, err
	}
	out := make([]KeyedAccount, 0, len(res))
	for _, pa := range res {
		addr, err := pubkey.Parse(pa.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("getProgramAccounts %s: pubkey: %w", program, err)
		}
		acct, err := pa.Account.decode()
		if err != nil {
			return nil, fmt.Errorf("getProgramAccounts %s: account %s: %w", program, addr, err)
		}
		out = append(out, KeyedAccount{Address: addr, Account: acct})
	}
	return out, nil
}

// GetAccountCached is GetAccount for accounts that do not change during a
// run, such as program accounts. Concurrent callers share one request.
func (c *Client) GetAccountCached(ctx context.Context, key pubkey.Key) (*Account, error) {
	return c.cache.load(key.String(), func() (*Account, error) {
		return c.GetAccount(ctx, key)
	})
}

type largestAccountsResult struct {
	Value []struct {
		Address string `json:"address"`
		Amount  string `json:"amount"`
	} `json:"value"`
}

// GetLargestTokenAccount returns the token account holding the most units of
// mint. For a non-fungible mint this is the single account holding it.
func (c *Client) GetLargestTokenAccount(ctx context.Context, mint pubkey.Key) (pubkey.Key, error) {
	var res largestAccountsResult
	params := []any{mint.String(), map[string]string{"commitment": c.commitment}}
	if err := c.call(ctx, "getTokenLargestAccounts", params, &res); err != nil {
		return pubkey.Key{}, err
	}
	for _, v := range res.Value {
		if v.Amount == "" || v.Amount == "0" {
			continue
		}
		k, err := pubkey.Parse(v.Address)
		if err != nil {
			return pubkey.Key{}, fmt.Errorf("getTokenLargestAccounts %s: %w", mint, err)
		}
		return k, nil
	}
	return pubkey.Key{}, fmt.Errorf("%w: no token account holds mint %s", ErrAccountNotFound, mint)
}

// Genesis hashes of the public clusters.
const (
	genesisMainnetBeta = "5eykt4UsFv8P8NJdTREpY1vzqKqZKvdpKuc147dw2N9d"
	genesisDevnet      = "EtWTRABZaYq6iMfeYKouRu166VU2xqa1wcaWoxPkrZBG"
	genesisTestnet     = "4uhcVJyU9pJkvQyS88uRDiswHXSCkY3zQawwpjk2NsNY"
)

// Cluster names the public cluster behind the endpoint: mainnet-beta,
// devnet, testnet, or "custom" for anything else.
func (c *Client) Cluster(ctx context.Context) (string, error) {
	var hash string
	if err := c.call(ctx, "getGenesisHash", nil, &hash); err != nil {
		return "", err
	}
	switch hash {
	case genesisMainnetBeta:
		return "mainnet-beta", nil
	case genesisDevnet:
		return "devnet", nil
	case genesisTestnet:
		return "testnet", nil
	case "":
		return "", errors.New("getGenesisHash: empty result")
	default:
		return "custom", nil
	}
}
