package accounts

import (
	"encoding/binary"
	"fmt"

	"migrator/internal/pubkey"
)

// LoaderStateKind is the bincode enum tag of an upgradeable-loader account.
type LoaderStateKind uint32

const (
	LoaderUninitialized LoaderStateKind = iota
	LoaderBuffer
	LoaderProgram
	LoaderProgramData
)

func (k LoaderStateKind) String() string {
	switch k {
	case LoaderUninitialized:
		return "uninitialized"
	case LoaderBuffer:
		return "buffer"
	case LoaderProgram:
		return "program"
	case LoaderProgramData:
		return "program_data"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(k))
	}
}

// LoaderState is a decoded upgradeable-loader account. ProgramData is only
// set for the Program variant.
type LoaderState struct {
	Kind        LoaderStateKind
	ProgramData *pubkey.Key
}

// DecodeUpgradeableLoaderState reads the enum tag and, for program accounts,
// the address of the separate program-data account.
func DecodeUpgradeableLoaderState(data []byte) (LoaderState, error) {
	if len(data) < 4 {
		return LoaderState{}, fmt.Errorf("decode loader state: %d bytes is too short for a tag", len(data))
	}
	kind := LoaderStateKind(binary.LittleEndian.Uint32(data[:4]))
	switch kind {
	case LoaderUninitialized, LoaderBuffer, LoaderProgramData:
		return LoaderState{Kind: kind}, nil
	case LoaderProgram:
		if len(data) < 4+pubkey.Size {
			return LoaderState{}, fmt.Errorf("decode loader state: program variant truncated (%d bytes)", len(data))
		}
		addr, err := pubkey.FromBytes(data[4 : 4+pubkey.Size])
		if err != nil {
			return LoaderState{}, fmt.Errorf("decode loader state: %w", err)
		}
		return LoaderState{Kind: kind, ProgramData: &addr}, nil
	default:
		return LoaderState{}, fmt.Errorf("decode loader state: unknown tag %d", uint32(kind))
	}
}

// ProgramDataAddress returns the program-data buffer of an upgradeable
// program account. ok is false for anything that is not the Program variant
// of an account owned by the upgradeable loader.
func ProgramDataAddress(owner pubkey.Key, data []byte) (addr pubkey.Key, ok bool) {
	if owner != pubkey.BPFLoaderUpgradeableID {
		return pubkey.Key{}, false
	}
	st, err := DecodeUpgradeableLoaderState(data)
	if err != nil || st.ProgramData == nil {
		return pubkey.Key{}, false
	}
	return *st.ProgramData, true
}

// EncodeProgramAccount builds the data of an upgradeable program account.
func EncodeProgramAccount(programData pubkey.Key) []byte {
	out := make([]byte, 4+pubkey.Size)
	binary.LittleEndian.PutUint32(out[:4], uint32(LoaderProgram))
	copy(out[4:], programData[:])
	return out
}
