package domain

import "errors"

var (
	// ErrInvalidQuantity: количество товара должно быть больше нуля.
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	// ErrProductRequired: позиция заказа без товара.
	ErrProductRequired = errors.New("product is required")
	// ErrStockUnavailable: на складе недостаточно товара.
	ErrStockUnavailable = errors.New("stock unavailable")
	// ErrQuantityBelowMinimum: уменьшение количества ниже одной единицы.
	ErrQuantityBelowMinimum = errors.New("item quantity must stay at least one")
	// ErrOrderNotPending: состав и обработка доступны только для заказа в статусе pending.
	ErrOrderNotPending = errors.New("order is not pending")
	// ErrOrderEmpty: заказ без позиций нельзя обработать.
	ErrOrderEmpty = errors.New("order must contain at least one item")
	// ErrOrderNotCancellable: отмена разрешена только из completed/processing.
	ErrOrderNotCancellable = errors.New("order cannot be cancelled")
	// ErrPaymentMethodRequired: не выбран способ оплаты.
	ErrPaymentMethodRequired = errors.New("payment method is required")
	// ErrPaymentDeclined: платёж отклонён, резерв снят.
	ErrPaymentDeclined = errors.New("payment declined")
	// ErrPaymentKindUnknown: неизвестный вид оплаты.
	ErrPaymentKindUnknown = errors.New("unknown payment kind")
	// ErrCardDetailsRequired: не заполнены номер карты или держатель.
	ErrCardDetailsRequired = errors.New("card number and holder are required")
	// ErrWalletPhoneRequired: для электронного кошелька нужен номер телефона.
	ErrWalletPhoneRequired = errors.New("wallet phone number is required")
	// ErrProductNotFound возвращается каталогом, если товара нет.
	ErrProductNotFound = errors.New("product not found")
	// ErrCustomerNotFound возвращается справочником покупателей.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists: заказ с таким ID уже сохранён.
	ErrOrderExists = errors.New("order already exists")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

var businessErrors = []error{
	ErrInvalidQuantity,
	ErrProductRequired,
	ErrStockUnavailable,
	ErrQuantityBelowMinimum,
	ErrOrderNotPending,
	ErrOrderEmpty,
	ErrOrderNotCancellable,
	ErrPaymentMethodRequired,
	ErrPaymentDeclined,
	ErrPaymentKindUnknown,
	ErrCardDetailsRequired,
	ErrWalletPhoneRequired,
}

// IsBusinessError сообщает, что ошибка является ожидаемым отказом доменной операции,
// после которого состояние не изменилось (или было откачено) и вызывающий может повторить.
func IsBusinessError(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound проверяет, что ошибка означает отсутствие сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}
