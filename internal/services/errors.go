// internal/services/errors.go
package services

import (
	"errors"
	"math"

	"github.com/licenseloom/loom-backend/internal/ledger"
)

// Every failure below rejects the whole operation: the enclosing database
// transaction rolls back and no ledger, pool or registry state survives a
// failed call.
var (
	ErrInsufficientPayment = errors.New("payment amount is below the required price")
	ErrAlreadyRenting      = errors.New("address already holds an active rental for this asset")
	ErrNotRenting          = errors.New("address is not actively renting this asset")
	ErrNameMismatch        = errors.New("template name must contain the source asset's creator name")
	ErrNameTaken           = errors.New("template name was already used")
	ErrMetadataTaken       = errors.New("template metadata link was already used")
	ErrNotAvailable        = errors.New("template is not available to mint")
	ErrListingUnavailable  = errors.New("listing is no longer on the market")
	ErrLengthMismatch      = errors.New("asset and quantity sequences differ in length")
	ErrInsufficientStake   = errors.New("withdraw quantity exceeds the staked amount")
	ErrAlreadyBound        = errors.New("registry is already bound to a reward pool")
	ErrUnauthorized        = errors.New("caller is not authorized for this operation")
	ErrPoolNotBound        = errors.New("registry has not been bound to a reward pool")
	ErrAssetNotFound       = errors.New("license asset not found")
	ErrInvalidAmount       = errors.New("amount must be positive")

	// Ledger failures surface under the same taxonomy.
	ErrInsufficientBalance = ledger.ErrInsufficientBalance
	ErrInsufficientFunds   = ledger.ErrInsufficientFunds
	ErrOperatorNotApproved = ledger.ErrNotApproved
)

// totalPrice multiplies a unit price by a quantity. A product beyond int64
// cannot be covered by any payment, so it fails the payment check instead
// of wrapping around.
func totalPrice(unitPrice, quantity int64) (int64, error) {
	if unitPrice > 0 && quantity > math.MaxInt64/unitPrice {
		return 0, ErrInsufficientPayment
	}
	return unitPrice * quantity, nil
}
