// Package common — errors.go определяет ошибки предметной области,
// которые используются во всех модулях сервиса выплат.
// Обработчики (HTTP и чат) различают по ним тип проблемы
// и отвечают понятным сообщением.
package common

import (
	"errors"
	"fmt"
)

// Ошибки кошелька
var (
	// ErrInsufficientBalance — на кошельке не хватает средств
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	// ErrInvalidAmount — сумма не положительная или с лишними знаками
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrBelowMinimum — сумма меньше минимальной выплаты.
	// Оборачивает ErrInsufficientBalance: для клиента это тот же класс отказа.
	ErrBelowMinimum = fmt.Errorf("amount is below the minimum withdrawal: %w", ErrInsufficientBalance)
)

// Ошибки способов выплаты
var (
	// ErrInvalidPayoutMethod — UPI/реквизиты счёта не прошли проверку
	ErrInvalidPayoutMethod = errors.New("invalid payout method details")
	// ErrNoPayoutMethod — у пользователя нет способа выплаты по умолчанию
	ErrNoPayoutMethod = errors.New("no payout method on file")
	// ErrMethodNotFound — способ выплаты не найден (или чужой)
	ErrMethodNotFound = errors.New("payout method not found")
	// ErrMethodInUse — на способ ссылается заявка в статусе pending
	ErrMethodInUse = errors.New("payout method is referenced by a pending withdrawal")
)

// Ошибки заявок на выплату
var (
	// ErrPayoutNotFound — заявки с таким id нет
	ErrPayoutNotFound = errors.New("payout request not found")
	// ErrAlreadyProcessed — заявка уже не в статусе pending
	ErrAlreadyProcessed = errors.New("payout request not found or already processed")
)

// Ошибки подтверждения оператором
var (
	// ErrNoConfirmation — нет ожидающей сессии подтверждения
	ErrNoConfirmation = errors.New("no pending confirmation found")
	// ErrConfirmationExpired — сессия подтверждения просрочена
	ErrConfirmationExpired = errors.New("confirmation expired")
	// ErrUnauthorized — чат/ключ/токен не прошли проверку
	ErrUnauthorized = errors.New("unauthorized")
)

// Ошибки вебхуков
var (
	// ErrInvalidSignature — подпись вебхука не совпала
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent — тело вебхука не разбирается
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// IsValidation сообщает, относится ли ошибка к отказам из-за входных данных.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidPayoutMethod) ||
		errors.Is(err, ErrNoPayoutMethod)
}
