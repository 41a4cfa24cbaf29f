package payment

import (
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// MockGateway: конфигурируемая заглушка PaymentGateway для тестов.
type MockGateway struct {
	mu sync.Mutex

	Approve bool
	// Decline переопределяет Approve для конкретных видов оплаты.
	Decline map[domain.PaymentKind]bool
	// OnCharge вызывается внутри Charge, например чтобы посмотреть остатки во время резерва.
	OnCharge func(method domain.PaymentMethod, amountMinor int64)

	Calls   int
	Amounts []int64
}

// NewMockGateway возвращает mock, одобряющий все платежи.
func NewMockGateway() *MockGateway {
	return &MockGateway{Approve: true}
}

// Charge возвращает заранее настроенный результат и запоминает суммы.
func (m *MockGateway) Charge(method domain.PaymentMethod, amountMinor int64) bool {
	m.mu.Lock()
	m.Calls++
	m.Amounts = append(m.Amounts, amountMinor)
	approve := m.Approve && !m.Decline[method.Kind]
	hook := m.OnCharge
	m.mu.Unlock()

	if hook != nil {
		hook(method, amountMinor)
	}
	return approve
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
