package pubkey

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	MaxSeeds      = 16
	MaxSeedLength = 32
)

const pdaMarker = "ProgramDerivedAddress"

var ErrNoViableBump = errors.New("unable to find a viable program address bump seed")

// CreateProgramAddress hashes seeds and the program id into an address that
// must not lie on the ed25519 curve (so no private key can sign for it).
func CreateProgramAddress(seeds [][]byte, program Key) (Key, error) {
	if len(seeds) > MaxSeeds {
		return Key{}, fmt.Errorf("too many seeds: %d > %d", len(seeds), MaxSeeds)
	}
	h := sha256.New()
	for i, s := range seeds {
		if len(s) > MaxSeedLength {
			return Key{}, fmt.Errorf("seed %d too long: %d > %d bytes", i, len(s), MaxSeedLength)
		}
		h.Write(s)
	}
	h.Write(program[:])
	h.Write([]byte(pdaMarker))

	var k Key
	copy(k[:], h.Sum(nil))
	if IsOnCurve(k) {
		return Key{}, errors.New("invalid seeds: address lies on the ed25519 curve")
	}
	return k, nil
}

// FindProgramAddress searches bump seeds from 255 downwards and returns the
// first off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, program Key) (Key, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return Key{}, 0, fmt.Errorf("too many seeds: %d (bump needs one slot of %d)", len(seeds), MaxSeeds)
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		k, err := CreateProgramAddress(withBump, program)
		if err == nil {
			return k, uint8(bump), nil
		}
	}
	return Key{}, 0, ErrNoViableBump
}

// FindAssociatedTokenAddress derives the associated token account holding
// mint for wallet.
func FindAssociatedTokenAddress(wallet, mint Key) (Key, error) {
	k, _, err := FindProgramAddress([][]byte{
		wallet[:],
		TokenProgramID[:],
		mint[:],
	}, AssociatedTokenProgramID)
	if err != nil {
		return Key{}, fmt.Errorf("derive associated token account for mint %s: %w", mint, err)
	}
	return k, nil
}

// IsOnCurve reports whether k decodes to a valid ed25519 point.
func IsOnCurve(k Key) bool {
	_, err := new(edwards25519.Point).SetBytes(k[:])
	return err == nil
}
