package rates

import (
	"github.com/clearway/settle/pkg/types"
)

// ScannedClass is the fee class of a scanned-sourced product. Scanned
// orders bill the buyer a surcharge on top of the listed price instead of
// carving the fee out of it.
type ScannedClass string

const (
	ScannedStandard ScannedClass = "STANDARD"
	ScannedMicro    ScannedClass = "MICRO"
)

// Surcharge rates per scanned class, applied to the listed price.
var scannedRates = map[ScannedClass]types.BasisPoints{
	ScannedStandard: 100, // 1%
	ScannedMicro:    30,  // 0.3%
}

// Referrer cut of the buyer surcharge when a referrer is present.
const scannedReferrerShare types.BasisPoints = 2000

// ScannedResult is the division of a buyer-side surcharge.
// Surcharge = Referrer + Platform exactly.
type ScannedResult struct {
	Surcharge types.Amount
	Referrer  types.Amount
	Platform  types.Amount
}

// CalculateScanned computes the buyer surcharge for a scanned-sourced
// order. The referrer, when present, receives floor(20%) of the
// surcharge; the remainder goes to the platform.
func CalculateScanned(price types.Amount, class ScannedClass, hasReferrer bool) (ScannedResult, error) {
	if err := price.Validate(); err != nil {
		return ScannedResult{}, err
	}

	rate, ok := scannedRates[class]
	if !ok {
		return ScannedResult{}, types.Errorf(types.ErrInvalidAmount, "unknown scanned class %q", class)
	}

	surcharge := price.ApplyBPS(rate)

	var referrer types.Amount
	if hasReferrer {
		referrer = surcharge.ApplyBPS(scannedReferrerShare)
	}

	return ScannedResult{
		Surcharge: surcharge,
		Referrer:  referrer,
		Platform:  surcharge - referrer,
	}, nil
}
