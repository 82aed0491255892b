package types

import "fmt"

// Amount is a monetary value in the smallest settlement unit.
// The engine does all arithmetic on integers; no floating point anywhere.
type Amount int64

// BasisPoints is an integer percentage where 10000 = 100%.
type BasisPoints int64

// FullShare is the basis-point value representing 100%.
const FullShare BasisPoints = 10000

// Valid reports whether the basis-point value is within 0..10000.
func (b BasisPoints) Valid() bool {
	return b >= 0 && b <= FullShare
}

// ApplyBPS returns floor(a * bps / 10000).
// The caller owns the rounding remainder; the engine's convention is to
// assign it to the platform/treasury side so share sums stay exact.
func (a Amount) ApplyBPS(bps BasisPoints) Amount {
	return Amount(int64(a) * int64(bps) / int64(FullShare))
}

// Validate returns an error for negative amounts.
func (a Amount) Validate() error {
	if a < 0 {
		return NewError(ErrInvalidAmount, fmt.Sprintf("amount must be non-negative, got %d", a))
	}
	return nil
}
