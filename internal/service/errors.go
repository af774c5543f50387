package service

import (
	"errors"
	"strings"
)

var (
	// ErrStoreUnavailable - хранилище заказов недоступно (после исчерпания повторов)
	ErrStoreUnavailable = errors.New("order store unavailable")
	// ErrGateway - провайдер отклонил запрос или недоступен; повторов на сервере нет
	ErrGateway = errors.New("payment gateway error")
	// ErrGatewayMisconfigured - не заданы учётные данные API провайдера
	ErrGatewayMisconfigured = errors.New("payment gateway is not configured")
	ErrDuplicateOrder       = errors.New("order already exists")
	ErrOrderNotFound        = errors.New("order not found")
)

// ValidationError - некорректный ввод вызывающей стороны
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	msg := "validation failed"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if len(e.Fields) > 0 {
		msg += ": " + strings.Join(e.Fields, ", ")
	}
	return msg
}

func newValidationError(reason string, fields ...string) *ValidationError {
	return &ValidationError{Reason: reason, Fields: fields}
}
