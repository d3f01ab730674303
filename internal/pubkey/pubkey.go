package pubkey

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// Size is the length of an account address in bytes.
const Size = 32

// Key is a ledger account address. The zero value is the all-zero address
// (the system program), not "absent"; use *Key where absence matters.
type Key [Size]byte

var ErrInvalidKey = errors.New("invalid account address")

// Well-known program addresses.
var (
	SystemProgramID           = Key{}
	TokenProgramID            = MustParse("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID  = MustParse("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	BPFLoaderUpgradeableID    = MustParse("BPFLoaderUpgradeab1e11111111111111111111111")
	MigrationValidatorProgram = MustParse("migrxZFChTqicHpNa1CAjPcF29Mui2JU2q4Ym7qQUTi")
)

// Parse decodes a base58 address string.
func Parse(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Key{}, fmt.Errorf("%w: empty string", ErrInvalidKey)
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return Key{}, fmt.Errorf("%w %q: %v", ErrInvalidKey, s, err)
	}
	if len(raw) != Size {
		return Key{}, fmt.Errorf("%w %q: decoded to %d bytes, want %d", ErrInvalidKey, s, len(raw), Size)
	}
	var k Key
	copy(k[:], raw)
	return k, nil
}

// MustParse is Parse for package-level constants. It panics on error.
func MustParse(s string) Key {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

// FromBytes copies a 32-byte slice into a Key.
func FromBytes(b []byte) (Key, error) {
	if len(b) != Size {
		return Key{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(b), Size)
	}
	var k Key
	copy(k[:], b)
	return k, nil
}

func (k Key) String() string {
	return base58.Encode(k[:])
}

func (k Key) Bytes() []byte {
	return k[:]
}

func (k Key) IsZero() bool {
	return k == Key{}
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
