package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		input string
		want  Method
		ok    bool
	}{
		{"Cash", MethodCash, true},
		{"Transfer", MethodTransfer, true},
		{"Card", MethodCard, true},
		{"Check", MethodCheck, true},
		{"cash", "", false}, // the set is closed and case-sensitive
		{"Bitcoin", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseMethod(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseMethod(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("ParseMethod(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"333.333", "333.33"},
		{"333.335", "333.34"}, // half up
		{"0.005", "0.01"},
		{"100", "100"},
		{"-0.005", "-0.01"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Round2(decimal.RequireFromString(tt.input))
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Round2(%s) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestErrorIs_MatchesOnCode(t *testing.T) {
	err := Validationf("amount field %q is required", "amount")
	if !errors.Is(err, ErrValidation) {
		t.Error("parameterized validation error should match ErrValidation")
	}
	if errors.Is(err, ErrOverTotal) {
		t.Error("validation error must not match ErrOverTotal")
	}
	if errors.Is(ErrOverTotal, ErrBusy) {
		t.Error("distinct sentinels must not match each other")
	}
}

func TestErrorCodes_Stable(t *testing.T) {
	// Callers branch on these codes; changing one is a breaking change.
	want := map[*Error]string{
		ErrValidation:                 "payments.validation",
		ErrProjectNotFound:            "payments.project_not_found",
		ErrNotFound:                   "payments.not_found",
		ErrInvalidAmount:              "payments.invalid_amount",
		ErrAlreadySettled:             "payments.already_settled",
		ErrSinglePaymentRequired:      "payments.single_payment_required",
		ErrOverTotal:                  "payments.over_total",
		ErrAlreadyCancelledOrNotFound: "payments.cancel_conflict",
		ErrBusy:                       "payments.busy",
	}
	for err, code := range want {
		if err.Code != code {
			t.Errorf("code = %q, want %q", err.Code, code)
		}
	}
}
