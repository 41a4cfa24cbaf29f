package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsBusinessError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "stock unavailable", err: ErrStockUnavailable, want: true},
		{name: "wrapped payment declined", err: fmt.Errorf("checkout: %w", ErrPaymentDeclined), want: true},
		{name: "joined not cancellable", err: errors.Join(ErrOrderNotCancellable, errors.New("ctx")), want: true},
		{name: "not found", err: ErrOrderNotFound, want: false},
		{name: "infrastructure", err: errors.New("connection reset"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBusinessError(tt.err); got != tt.want {
				t.Errorf("IsBusinessError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(fmt.Errorf("get: %w", ErrCustomerNotFound)) {
		t.Error("expected wrapped customer not found to match")
	}
	if IsNotFound(ErrStockUnavailable) {
		t.Error("business error is not a not-found error")
	}
}
