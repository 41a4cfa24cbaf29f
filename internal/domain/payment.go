package domain

import (
	"fmt"
	"strings"
)

// PaymentKind определяет вариант способа оплаты.
type PaymentKind string

const (
	// PaymentKindCash: оплата наличными при получении, всегда успешна.
	PaymentKindCash PaymentKind = "cash"
	// PaymentKindCard: банковская карта.
	PaymentKindCard PaymentKind = "card"
	// PaymentKindEWallet: электронный кошелёк, привязанный к номеру телефона.
	PaymentKindEWallet PaymentKind = "ewallet"
)

const (
	cardSuccessRate   = 0.90
	walletSuccessRate = 0.95

	// DefaultWalletProvider используется, если провайдер кошелька не указан.
	DefaultWalletProvider = "Qiwi"
)

// RandomSource: источник псевдослучайных чисел в [0, 1).
// *math/rand.Rand удовлетворяет интерфейсу.
type RandomSource interface {
	Float64() float64
}

// CardDetails: реквизиты банковской карты, введённые покупателем.
type CardDetails struct {
	Number string
	Holder string
	Expiry string
	CVV    string
}

// WalletDetails: данные электронного кошелька.
type WalletDetails struct {
	Provider string
	Phone    string
}

// PaymentMethod: способ оплаты заказа. Поля Card/Wallet значимы только для своего Kind.
type PaymentMethod struct {
	Kind   PaymentKind
	Card   CardDetails
	Wallet WalletDetails
}

// NewCashPayment возвращает оплату наличными.
func NewCashPayment() PaymentMethod {
	return PaymentMethod{Kind: PaymentKindCash}
}

// NewCardPayment возвращает оплату картой.
func NewCardPayment(card CardDetails) PaymentMethod {
	return PaymentMethod{Kind: PaymentKindCard, Card: card}
}

// NewWalletPayment возвращает оплату электронным кошельком.
func NewWalletPayment(wallet WalletDetails) PaymentMethod {
	if strings.TrimSpace(wallet.Provider) == "" {
		wallet.Provider = DefaultWalletProvider
	}
	return PaymentMethod{Kind: PaymentKindEWallet, Wallet: wallet}
}

// ParsePaymentKind разбирает строковое представление вида оплаты.
func ParsePaymentKind(raw string) (PaymentKind, error) {
	switch kind := PaymentKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case PaymentKindCash, PaymentKindCard, PaymentKindEWallet:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrPaymentKindUnknown, raw)
	}
}

// DisplayName возвращает название способа оплаты для витрины.
func (p PaymentMethod) DisplayName() string {
	switch p.Kind {
	case PaymentKindCash:
		return "Cash on delivery"
	case PaymentKindCard:
		return "Bank card"
	case PaymentKindEWallet:
		provider := p.Wallet.Provider
		if strings.TrimSpace(provider) == "" {
			provider = DefaultWalletProvider
		}
		return fmt.Sprintf("E-wallet (%s)", provider)
	default:
		return "Unknown payment method"
	}
}

// SuccessRate: доля успешных списаний для симуляции провайдера.
func (p PaymentMethod) SuccessRate() float64 {
	switch p.Kind {
	case PaymentKindCash:
		return 1
	case PaymentKindCard:
		return cardSuccessRate
	case PaymentKindEWallet:
		return walletSuccessRate
	default:
		return 0
	}
}

// Validate проверяет поля, которые витрина обязана заполнить до оформления заказа.
func (p PaymentMethod) Validate() error {
	switch p.Kind {
	case PaymentKindCash:
		return nil
	case PaymentKindCard:
		if strings.TrimSpace(p.Card.Number) == "" || strings.TrimSpace(p.Card.Holder) == "" {
			return ErrCardDetailsRequired
		}
		return nil
	case PaymentKindEWallet:
		if strings.TrimSpace(p.Wallet.Phone) == "" {
			return ErrWalletPhoneRequired
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrPaymentKindUnknown, p.Kind)
	}
}

// Process выполняет списание amountMinor. Отказ окончательный: повторов нет.
// Наличные принимаются при любой сумме. Для карты и кошелька нужен src и неотрицательная сумма.
func (p PaymentMethod) Process(amountMinor int64, src RandomSource) bool {
	switch p.Kind {
	case PaymentKindCash:
		return true
	case PaymentKindCard, PaymentKindEWallet:
		if amountMinor < 0 || src == nil {
			return false
		}
		return src.Float64() < p.SuccessRate()
	default:
		return false
	}
}

// PaymentGateway проводит списание выбранным способом оплаты.
type PaymentGateway interface {
	Charge(method PaymentMethod, amountMinor int64) bool
}
