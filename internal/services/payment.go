package services

import (
	"context"
	"fmt"
	"strings"
)

// PaymentGateway authorizes the external payment behind a coin purchase.
type PaymentGateway interface {
	Charge(ctx context.Context, userID string, amount int64, reference string) error
}

// MockGateway approves every charge except references that start with
// "fail" or "decline".
type MockGateway struct{}

func (MockGateway) Charge(_ context.Context, _ string, amount int64, reference string) error {
	ref := strings.ToLower(strings.TrimSpace(reference))
	if ref == "" {
		return fmt.Errorf("%w: payment reference required", ErrInvalidInput)
	}
	if strings.HasPrefix(ref, "fail") || strings.HasPrefix(ref, "decline") {
		return fmt.Errorf("%w: reference %q (%d coins)", ErrPaymentDeclined, reference, amount)
	}
	return nil
}
