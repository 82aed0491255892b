package rates

import (
	"testing"

	"github.com/clearway/settle/pkg/types"
)

func TestCalculateExactSum(t *testing.T) {
	// The sum of all output shares must equal the input amount exactly,
	// for every layer and every participant-presence combination.
	layers := []Layer{LayerInfra, LayerResource, LayerLogic, LayerComposite}
	amounts := []types.Amount{0, 1, 7, 99, 100, 101, 999, 10000, 123456789}
	flags := []bool{false, true}

	for _, layer := range layers {
		for _, amount := range amounts {
			for _, hasReferrer := range flags {
				for _, hasExecutor := range flags {
					for _, executorHasAccount := range flags {
						result, err := Calculate(amount, layer, hasReferrer, hasExecutor, executorHasAccount)
						if err != nil {
							t.Fatalf("Calculate(%d, %s) failed: %v", amount, layer, err)
						}

						if result.Total() != amount {
							t.Errorf("layer %s amount %d ref=%v exec=%v acct=%v: shares sum to %d",
								layer, amount, hasReferrer, hasExecutor, executorHasAccount, result.Total())
						}
					}
				}
			}
		}
	}
}

func TestCalculateLogicLayer(t *testing.T) {
	// LOGIC = 1% platform + 4% incentive pool.
	result, err := Calculate(10000, LayerLogic, true, true, true)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}

	if result.Platform != 100 {
		t.Errorf("expected platform fee 100, got %d", result.Platform)
	}

	if result.Merchant != 9500 {
		t.Errorf("expected merchant 9500, got %d", result.Merchant)
	}

	// Pool of 400 split 70/30.
	if result.Executor != 280 {
		t.Errorf("expected executor 280, got %d", result.Executor)
	}

	if result.Referrer != 120 {
		t.Errorf("expected referrer 120, got %d", result.Referrer)
	}

	if result.Treasury != 0 {
		t.Errorf("expected no treasury remainder, got %d", result.Treasury)
	}
}

func TestCalculateSoleParticipantTakesPool(t *testing.T) {
	onlyExecutor, err := Calculate(10000, LayerLogic, false, true, true)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if onlyExecutor.Executor != 400 || onlyExecutor.Referrer != 0 {
		t.Errorf("expected executor to take whole pool, got exec=%d ref=%d",
			onlyExecutor.Executor, onlyExecutor.Referrer)
	}

	onlyReferrer, err := Calculate(10000, LayerLogic, true, false, true)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if onlyReferrer.Referrer != 400 || onlyReferrer.Executor != 0 {
		t.Errorf("expected referrer to take whole pool, got exec=%d ref=%d",
			onlyReferrer.Executor, onlyReferrer.Referrer)
	}
}

func TestCalculateNoParticipantsRedirectsToTreasury(t *testing.T) {
	result, err := Calculate(10000, LayerLogic, false, false, false)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}

	if result.Treasury != 400 {
		t.Errorf("expected unclaimed pool 400 in treasury, got %d", result.Treasury)
	}
}

func TestCalculateExecutorWithoutAccount(t *testing.T) {
	result, err := Calculate(10000, LayerLogic, true, true, false)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}

	if result.Executor != 0 {
		t.Errorf("expected executor share redirected, got %d", result.Executor)
	}

	if result.Referrer != 120 {
		t.Errorf("expected referrer unchanged at 120, got %d", result.Referrer)
	}

	// Executor's 280 lands in treasury.
	if result.Treasury != 280 {
		t.Errorf("expected treasury 280, got %d", result.Treasury)
	}
}

func TestCalculateRoundingToTreasury(t *testing.T) {
	// Amount chosen so the 70/30 pool split leaves a remainder.
	// LOGIC pool on 2525 = floor(2525*0.04) = 101.
	result, err := Calculate(2525, LayerLogic, true, true, true)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}

	pool := types.Amount(101)
	wantExecutor := types.Amount(70) // floor(101*0.7)
	wantReferrer := types.Amount(30) // floor(101*0.3)

	if result.Executor != wantExecutor || result.Referrer != wantReferrer {
		t.Errorf("expected exec=%d ref=%d, got exec=%d ref=%d",
			wantExecutor, wantReferrer, result.Executor, result.Referrer)
	}

	if result.Treasury != pool-wantExecutor-wantReferrer {
		t.Errorf("expected remainder 1 in treasury, got %d", result.Treasury)
	}
}

func TestCalculateRejectsUnknownLayer(t *testing.T) {
	_, err := Calculate(100, Layer("BOGUS"), false, false, false)
	if err == nil {
		t.Fatal("expected error for unknown layer")
	}
}

func TestCalculateScanned(t *testing.T) {
	tests := []struct {
		name          string
		price         types.Amount
		class         ScannedClass
		hasReferrer   bool
		wantSurcharge types.Amount
		wantReferrer  types.Amount
	}{
		{"standard no referrer", 10000, ScannedStandard, false, 100, 0},
		{"standard with referrer", 10000, ScannedStandard, true, 100, 20},
		{"micro with referrer", 100000, ScannedMicro, true, 300, 60},
		{"rounding stays with platform", 333, ScannedStandard, true, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := CalculateScanned(tt.price, tt.class, tt.hasReferrer)
			if err != nil {
				t.Fatalf("calculate scanned failed: %v", err)
			}

			if result.Surcharge != tt.wantSurcharge {
				t.Errorf("expected surcharge %d, got %d", tt.wantSurcharge, result.Surcharge)
			}

			if result.Referrer != tt.wantReferrer {
				t.Errorf("expected referrer %d, got %d", tt.wantReferrer, result.Referrer)
			}

			if result.Referrer+result.Platform != result.Surcharge {
				t.Errorf("surcharge split leaks: %d + %d != %d",
					result.Referrer, result.Platform, result.Surcharge)
			}
		})
	}
}

func TestCalculateScannedRejectsUnknownClass(t *testing.T) {
	_, err := CalculateScanned(100, ScannedClass("NOPE"), false)
	if err == nil {
		t.Fatal("expected error for unknown scanned class")
	}
}
