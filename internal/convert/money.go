/**
 * @description
 * This package converts monetary amounts between integer minor units
 * (centavos), which the cache and the provider wire format use, and decimal
 * major units, which callers see at the output boundary.
 *
 * @notes
 * - Minor units are the source of truth. Minor to major is always exact;
 *   major to minor rejects amounts with sub-centavo precision instead of
 *   rounding, so a caller's 50.255 is an error, never 5025 or 5026.
 */

package convert

import (
	"errors"

	"github.com/shopspring/decimal"
)

// minorDigits is the number of decimal places carried by one major unit.
const minorDigits = 2

var (
	// ErrSubMinorPrecision marks amounts finer than one minor unit.
	ErrSubMinorPrecision = errors.New("amount has precision finer than minor units")
	// ErrAmountOutOfRange marks amounts that do not fit in an int64 of minor units.
	ErrAmountOutOfRange = errors.New("amount out of range for minor units")
)

// MinorToMajor converts integer minor units to an exact decimal major-unit
// amount (10000 -> 100.00).
func MinorToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorDigits)
}

// MajorToMinor converts a decimal major-unit amount to integer minor units
// (50.25 -> 5025). Amounts with sub-centavo precision are rejected.
func MajorToMinor(major decimal.Decimal) (int64, error) {
	shifted := major.Shift(minorDigits)
	if !shifted.IsInteger() {
		return 0, ErrSubMinorPrecision
	}
	bigint := shifted.BigInt()
	if !bigint.IsInt64() {
		return 0, ErrAmountOutOfRange
	}
	return bigint.Int64(), nil
}
