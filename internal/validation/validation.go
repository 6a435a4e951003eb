package validation

import (
	"regexp"
	"strings"

	"stablesend/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Error marks input rejected by a validator, as opposed to an internal
// failure. Callers match on it with errors.As to pick a response class.
type Error struct {
	message string
}

func (e *Error) Error() string { return e.message }

func invalid(message string) error { return &Error{message: message} }

// maxAmount bounds a single transfer at one billion display units.
var maxAmount = decimal.NewFromInt(1e9)

// ValidateAmount parses a transfer amount and enforces display-currency
// semantics: positive, at most two fractional digits.
func ValidateAmount(amount string) (decimal.Decimal, error) {
	if strings.TrimSpace(amount) == "" {
		return decimal.Zero, invalid("amount cannot be empty")
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, invalid("amount is not a valid decimal number")
	}

	if d.Sign() <= 0 {
		return decimal.Zero, invalid("amount must be positive")
	}

	if d.Exponent() < -2 {
		return decimal.Zero, invalid("amount must have at most two decimal places")
	}

	if d.Cmp(maxAmount) > 0 {
		return decimal.Zero, invalid("amount exceeds maximum allowed value")
	}

	return d, nil
}

// ValidateEmail validates an email address format
func ValidateEmail(email string) error {
	if email == "" {
		return invalid("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return invalid("invalid email format")
	}
	return nil
}

// ValidateAddress validates a receiving address for a network. Every supported
// network is EVM-based, so the check is a hex-address check.
func ValidateAddress(address string, network models.NetworkID) error {
	if address == "" {
		return invalid("address cannot be empty")
	}
	if !models.IsSupported(network) {
		return invalid("unsupported network")
	}
	if !common.IsHexAddress(address) {
		return invalid("invalid address format")
	}
	return nil
}

// ValidateNetwork checks a network identifier against the supported set.
func ValidateNetwork(network string) (models.NetworkID, error) {
	n := models.NetworkID(network)
	if !models.IsSupported(n) {
		return "", invalid("unsupported network")
	}
	return n, nil
}
