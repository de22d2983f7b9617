package registry

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"

	"sealed-ballot/models"
)

const maxNameLength = 128

var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

func verifyWallet(wallet common.Address) error {
	if wallet == (common.Address{}) {
		return fmt.Errorf("%w: wallet address is required", models.ErrInvalidInput)
	}
	return nil
}

func verifyName(field, value string) error {
	value = normalizeName(value)
	if value == "" {
		return fmt.Errorf("%w: %s is required", models.ErrInvalidInput, field)
	}
	if !utf8.ValidString(value) {
		return fmt.Errorf("%w: %s is not valid UTF-8", models.ErrInvalidInput, field)
	}
	if utf8.RuneCountInString(value) > maxNameLength {
		return fmt.Errorf("%w: %s exceeds %d characters", models.ErrInvalidInput, field, maxNameLength)
	}
	if controlChars.MatchString(value) {
		return fmt.Errorf("%w: %s contains control characters", models.ErrInvalidInput, field)
	}
	return nil
}

func normalizeName(value string) string {
	return strings.TrimSpace(value)
}

// ParseWallet parses a hex wallet address, rejecting malformed and zero addresses.
func ParseWallet(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q is not a wallet address", models.ErrInvalidInput, s)
	}
	wallet := common.HexToAddress(s)
	if err := verifyWallet(wallet); err != nil {
		return common.Address{}, err
	}
	return wallet, nil
}
