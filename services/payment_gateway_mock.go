package services

import (
	"context"
	"fmt"
	"sync"
)

// MockPaymentGateway returns a fixed status for every charge
type MockPaymentGateway struct {
	mu      sync.Mutex
	Status  string
	Err     error
	Charges []ChargeRequest
}

// NewMockPaymentGateway creates a gateway that approves every charge
func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{Status: "approved"}
}

func (m *MockPaymentGateway) Charge(_ context.Context, req ChargeRequest) (ChargeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return ChargeResult{}, m.Err
	}
	m.Charges = append(m.Charges, req)
	return ChargeResult{
		ProviderID: fmt.Sprintf("mock-%d", len(m.Charges)),
		Status:     m.Status,
		Detail:     "mock",
	}, nil
}
