package models

import "fmt"

// Status - жизненный цикл заказа, закрытое множество значений
type Status string

const (
	StatusPendingPayment   Status = "Pending Payment"
	StatusPaymentConfirmed Status = "Payment Confirmed"
	StatusProcessing       Status = "Processing"
	StatusPaymentFailed    Status = "Payment Failed"
	StatusDelivered        Status = "Delivered"
)

// AllStatuses перечисляет все известные статусы
var AllStatuses = []Status{
	StatusPendingPayment,
	StatusPaymentConfirmed,
	StatusProcessing,
	StatusPaymentFailed,
	StatusDelivered,
}

// ParseStatus проверяет, что строка входит в множество статусов
func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// Outcome - нормализованный результат платежа, о котором сообщил провайдер
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePending Outcome = "pending"
	OutcomeFailure Outcome = "failure"
)

// Target возвращает статус, в который провайдерское событие переводит заказ
func (o Outcome) Target() Status {
	switch o {
	case OutcomeSuccess:
		return StatusProcessing
	case OutcomePending:
		return StatusPendingPayment
	default:
		return StatusPaymentFailed
	}
}

// transitions - таблица переходов (текущий статус × исход события → следующий статус).
// Отсутствие пары означает, что событие устарело и переход запрещён.
var transitions = map[Status]map[Outcome]Status{
	StatusPendingPayment: {
		OutcomeSuccess: StatusProcessing,
		OutcomePending: StatusPendingPayment,
		OutcomeFailure: StatusPaymentFailed,
	},
	StatusPaymentFailed: {
		OutcomeSuccess: StatusProcessing,
		OutcomeFailure: StatusPaymentFailed,
	},
	StatusPaymentConfirmed: {
		OutcomeSuccess: StatusProcessing,
	},
	StatusProcessing: {
		OutcomeSuccess: StatusProcessing,
	},
	StatusDelivered: {},
}

// NextStatus возвращает статус после применения события.
// В нестрогом режиме воспроизводится безусловная перезапись статуса целевым значением.
func NextStatus(current Status, outcome Outcome, strict bool) (Status, bool) {
	if !strict {
		return outcome.Target(), true
	}
	next, ok := transitions[current][outcome]
	return next, ok
}

// AllowedSources возвращает статусы, из которых событие может перевести заказ.
// nil означает отсутствие ограничения (нестрогий режим).
func AllowedSources(outcome Outcome, strict bool) []Status {
	if !strict {
		return nil
	}
	var sources []Status
	for _, st := range AllStatuses {
		if _, ok := transitions[st][outcome]; ok {
			sources = append(sources, st)
		}
	}
	return sources
}
