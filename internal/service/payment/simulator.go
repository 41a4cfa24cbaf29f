// Package payment содержит реализации domain.PaymentGateway.
package payment

import (
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// lockedSource делает *rand.Rand безопасным для конкурентного использования.
type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

// NewRandomSource возвращает потокобезопасный источник случайности.
// seed == 0 означает посев от текущего времени.
func NewRandomSource(seed int64) domain.RandomSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedSource{rnd: rand.New(rand.NewSource(seed))}
}

// Simulator имитирует платёжный шлюз: наличные проходят всегда,
// карта и кошелёк проходят с вероятностью SuccessRate.
type Simulator struct {
	src    domain.RandomSource
	logger *log.Entry
}

// NewSimulator создаёт симулятор поверх заданного источника случайности.
func NewSimulator(src domain.RandomSource, logger *log.Entry) *Simulator {
	if src == nil {
		src = NewRandomSource(0)
	}
	if logger == nil {
		logger = log.WithField("component", "payment-simulator")
	}
	return &Simulator{src: src, logger: logger}
}

// Charge списывает amountMinor выбранным способом оплаты.
func (s *Simulator) Charge(method domain.PaymentMethod, amountMinor int64) bool {
	approved := method.Process(amountMinor, s.src)
	s.logger.WithFields(log.Fields{
		"method":       method.Kind,
		"amount_minor": amountMinor,
		"approved":     approved,
	}).Debug("payment processed")
	return approved
}

var _ domain.PaymentGateway = (*Simulator)(nil)
