package types

import (
	"errors"
	"testing"
)

func TestApplyBPS(t *testing.T) {
	tests := []struct {
		name   string
		amount Amount
		bps    BasisPoints
		want   Amount
	}{
		{"full share", 1000, 10000, 1000},
		{"zero share", 1000, 0, 0},
		{"one percent", 10000, 100, 100},
		{"rounds down", 999, 100, 9},
		{"seventy percent", 100, 7000, 70},
		{"thirty percent odd pool", 101, 3000, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.amount.ApplyBPS(tt.bps)
			if got != tt.want {
				t.Errorf("ApplyBPS(%d, %d) = %d, want %d", tt.amount, tt.bps, got, tt.want)
			}
		})
	}
}

func TestBasisPointsValid(t *testing.T) {
	if !BasisPoints(0).Valid() || !BasisPoints(10000).Valid() {
		t.Error("expected bounds to be valid")
	}

	if BasisPoints(-1).Valid() || BasisPoints(10001).Valid() {
		t.Error("expected out-of-range values to be invalid")
	}
}

func TestAmountValidate(t *testing.T) {
	if err := Amount(0).Validate(); err != nil {
		t.Errorf("expected zero amount to validate, got %v", err)
	}

	err := Amount(-5).Validate()
	if err == nil {
		t.Fatal("expected error for negative amount")
	}

	var engineErr *EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("expected EngineError, got %T", err)
	}

	if engineErr.Code != ErrInvalidAmount {
		t.Errorf("expected code %s, got %s", ErrInvalidAmount, engineErr.Code)
	}
}

func TestEngineErrorIs(t *testing.T) {
	err := Errorf(ErrStillLocked, "unlocks at %d", 42)

	if !errors.Is(err, NewError(ErrStillLocked, "")) {
		t.Error("expected errors.Is to match by code")
	}

	if errors.Is(err, NewError(ErrOrderDisputed, "")) {
		t.Error("expected errors.Is to reject different code")
	}
}
