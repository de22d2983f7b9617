// Package commitment computes and checks sealed-ballot commitments.
//
// A commitment is keccak256(abi.encodePacked(uint256 candidateId, uint256 secret)):
// both integers are written as 32-byte big-endian words and hashed together, so
// the value matches what a Solidity contract or ethers' solidityPackedKeccak256
// produces for the same inputs.
package commitment

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"sealed-ballot/models"
)

// Commit binds a candidate choice to a secret.
func Commit(candidateID uint64, secret *uint256.Int) (common.Hash, error) {
	if err := checkInputs(candidateID, secret); err != nil {
		return common.Hash{}, err
	}

	id := uint256.NewInt(candidateID).Bytes32()
	s := secret.Bytes32()
	return common.BytesToHash(Keccak256(id[:], s[:])), nil
}

// Verify recomputes the commitment for (candidateID, secret) and compares it to
// commitment in constant time.
func Verify(candidateID uint64, secret *uint256.Int, commitment common.Hash) (bool, error) {
	computed, err := Commit(candidateID, secret)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(computed[:], commitment[:]) == 1, nil
}

// NewSecret returns a uniformly random, non-zero 256-bit secret.
func NewSecret() (*uint256.Int, error) {
	var buf [32]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
		secret := new(uint256.Int).SetBytes32(buf[:])
		if !secret.IsZero() {
			return secret, nil
		}
	}
}

// ParseSecret accepts a decimal or 0x-prefixed hex integer in [1, 2^256).
func ParseSecret(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: secret is empty", models.ErrInvalidInput)
	}

	var secret *uint256.Int
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return nil, fmt.Errorf("%w: secret %q is not a hex integer", models.ErrInvalidInput, s)
		}
		var overflow bool
		secret, overflow = uint256.FromBig(b)
		if overflow {
			return nil, fmt.Errorf("%w: secret exceeds 256 bits", models.ErrInvalidInput)
		}
	} else {
		var err error
		secret, err = uint256.FromDecimal(s)
		if err != nil {
			return nil, fmt.Errorf("%w: secret %q: %v", models.ErrInvalidInput, s, err)
		}
	}

	if secret.IsZero() {
		return nil, fmt.Errorf("%w: secret must be positive", models.ErrInvalidInput)
	}
	return secret, nil
}

// ParseCommitment decodes a 0x-prefixed 32-byte hash. The zero hash is rejected
// because it can never be the output of Commit.
func ParseCommitment(s string) (common.Hash, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: commitment: %v", models.ErrInvalidInput, err)
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: commitment must be %d bytes, got %d", models.ErrInvalidInput, common.HashLength, len(raw))
	}
	hash := common.BytesToHash(raw)
	if hash == (common.Hash{}) {
		return common.Hash{}, fmt.Errorf("%w: commitment is the zero hash", models.ErrInvalidInput)
	}
	return hash, nil
}

// Keccak256 computes the legacy Keccak-256 hash used by Ethereum.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

func checkInputs(candidateID uint64, secret *uint256.Int) error {
	if candidateID == 0 {
		return fmt.Errorf("%w: candidate id must be positive", models.ErrInvalidInput)
	}
	if secret == nil || secret.IsZero() {
		return fmt.Errorf("%w: secret must be positive", models.ErrInvalidInput)
	}
	return nil
}
