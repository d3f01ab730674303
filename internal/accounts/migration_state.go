package accounts

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"migrator/internal/ledger"
	"migrator/internal/pubkey"
)

// MigrationStateSeed prefixes the migration-state PDA seeds.
const MigrationStateSeed = "migration"

type UnlockMethod uint8

const (
	UnlockTimed UnlockMethod = iota
	UnlockVote
)

func (m UnlockMethod) String() string {
	switch m {
	case UnlockTimed:
		return "Timed"
	case UnlockVote:
		return "Vote"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(m))
	}
}

func (m UnlockMethod) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

type CollectionInfo struct {
	Authority      pubkey.Key `json:"authority"`
	Mint           pubkey.Key `json:"mint"`
	RuleSet        pubkey.Key `json:"rule_set"`
	DelegateRecord pubkey.Key `json:"delegate_record"`
	Size           uint32     `json:"size"`
}

type MigrationStatus struct {
	UnlockTime    time.Time `json:"unlock_time"`
	IsLocked      bool      `json:"is_locked"`
	InProgress    bool      `json:"in_progress"`
	ItemsMigrated uint32    `json:"items_migrated"`
}

// MigrationState is the on-ledger record of a collection's migration.
type MigrationState struct {
	CollectionInfo CollectionInfo  `json:"collection_info"`
	UnlockMethod   UnlockMethod    `json:"unlock_method"`
	Status         MigrationStatus `json:"status"`
}

type migrationStateLayout struct {
	Authority      [32]byte
	Mint           [32]byte
	RuleSet        [32]byte
	DelegateRecord [32]byte
	Size           uint32
	UnlockMethod   uint8
	UnlockTime     int64
	IsLocked       bool
	InProgress     bool
	ItemsMigrated  uint32
}

// MigrationStateSize is the packed length of the fields we read. Accounts
// may be allocated larger.
var MigrationStateSize = binary.Size(migrationStateLayout{})

func DecodeMigrationState(data []byte) (MigrationState, error) {
	if len(data) < MigrationStateSize {
		return MigrationState{}, fmt.Errorf("decode migration state: got %d bytes, need at least %d", len(data), MigrationStateSize)
	}
	var raw migrationStateLayout
	if err := binary.Read(bytes.NewReader(data[:MigrationStateSize]), binary.LittleEndian, &raw); err != nil {
		return MigrationState{}, fmt.Errorf("decode migration state: %w", err)
	}
	method := UnlockMethod(raw.UnlockMethod)
	if method > UnlockVote {
		return MigrationState{}, fmt.Errorf("decode migration state: invalid unlock method %d", raw.UnlockMethod)
	}
	return MigrationState{
		CollectionInfo: CollectionInfo{
			Authority:      pubkey.Key(raw.Authority),
			Mint:           pubkey.Key(raw.Mint),
			RuleSet:        pubkey.Key(raw.RuleSet),
			DelegateRecord: pubkey.Key(raw.DelegateRecord),
			Size:           raw.Size,
		},
		UnlockMethod: method,
		Status: MigrationStatus{
			UnlockTime:    time.Unix(raw.UnlockTime, 0).UTC(),
			IsLocked:      raw.IsLocked,
			InProgress:    raw.InProgress,
			ItemsMigrated: raw.ItemsMigrated,
		},
	}, nil
}

func EncodeMigrationState(st MigrationState) []byte {
	raw := migrationStateLayout{
		Authority:      st.CollectionInfo.Authority,
		Mint:           st.CollectionInfo.Mint,
		RuleSet:        st.CollectionInfo.RuleSet,
		DelegateRecord: st.CollectionInfo.DelegateRecord,
		Size:           st.CollectionInfo.Size,
		UnlockMethod:   uint8(st.UnlockMethod),
		UnlockTime:     st.Status.UnlockTime.Unix(),
		IsLocked:       st.Status.IsLocked,
		InProgress:     st.Status.InProgress,
		ItemsMigrated:  st.Status.ItemsMigrated,
	}
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, &raw)
	return buf.Bytes()
}

// MigrationStateAddress derives the PDA holding collection's migration state.
func MigrationStateAddress(collection, program pubkey.Key) (pubkey.Key, error) {
	k, _, err := pubkey.FindProgramAddress([][]byte{[]byte(MigrationStateSeed), collection[:]}, program)
	if err != nil {
		return pubkey.Key{}, fmt.Errorf("derive migration state address for %s: %w", collection, err)
	}
	return k, nil
}

// AccountFetcher reads raw ledger accounts. *ledger.Client satisfies it.
type AccountFetcher interface {
	GetAccount(ctx context.Context, key pubkey.Key) (*ledger.Account, error)
}

// StateReader looks up migration state accounts owned by Program.
type StateReader struct {
	Ledger  AccountFetcher
	Program pubkey.Key
}

func NewStateReader(l AccountFetcher, program pubkey.Key) *StateReader {
	return &StateReader{Ledger: l, Program: program}
}

func (r *StateReader) GetState(ctx context.Context, collection pubkey.Key) (MigrationState, error) {
	addr, err := MigrationStateAddress(collection, r.Program)
	if err != nil {
		return MigrationState{}, err
	}
	acct, err := r.Ledger.GetAccount(ctx, addr)
	if err != nil {
		return MigrationState{}, fmt.Errorf("fetch migration state %s: %w", addr, err)
	}
	if acct.Owner != r.Program {
		return MigrationState{}, fmt.Errorf("migration state %s is owned by %s, not %s", addr, acct.Owner, r.Program)
	}
	st, err := DecodeMigrationState(acct.Data)
	if err != nil {
		return MigrationState{}, fmt.Errorf("migration state %s: %w", addr, err)
	}
	if st.CollectionInfo.Mint != collection {
		return MigrationState{}, fmt.Errorf("migration state %s belongs to collection %s, not %s", addr, st.CollectionInfo.Mint, collection)
	}
	return st, nil
}

// ProgramAccountLister enumerates the accounts a program owns.
// *ledger.Client satisfies it.
type ProgramAccountLister interface {
	GetProgramAccounts(ctx context.Context, program pubkey.Key) ([]ledger.KeyedAccount, error)
}

// StateEntry is a migration state together with the account holding it.
type StateEntry struct {
	Address pubkey.Key
	State   MigrationState
}

// ListStates reads every migration state owned by program. Owned accounts
// that do not decode, or that do not sit at the state address of the
// collection they name (the program signer, for one), are returned in
// skipped.
func ListStates(ctx context.Context, l ProgramAccountLister, program pubkey.Key) (states []StateEntry, skipped []pubkey.Key, err error) {
	accts, err := l.GetProgramAccounts(ctx, program)
	if err != nil {
		return nil, nil, fmt.Errorf("list program accounts %s: %w", program, err)
	}
	states = make([]StateEntry, 0, len(accts))
	for _, ka := range accts {
		st, err := DecodeMigrationState(ka.Account.Data)
		if err != nil {
			skipped = append(skipped, ka.Address)
			continue
		}
		want, err := MigrationStateAddress(st.CollectionInfo.Mint, program)
		if err != nil || want != ka.Address {
			skipped = append(skipped, ka.Address)
			continue
		}
		states = append(states, StateEntry{Address: ka.Address, State: st})
	}
	return states, skipped, nil
}
