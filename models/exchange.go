package models

import "time"

// ExchangeStatus tracks a withdrawal request through its lifecycle.
type ExchangeStatus string

const (
	ExchangePending   ExchangeStatus = "pending"
	ExchangeApproved  ExchangeStatus = "approved_awaiting_receipt"
	ExchangeCompleted ExchangeStatus = "completed"
	ExchangeRejected  ExchangeStatus = "rejected"
)

// PaymentChannel is one of the supported manual payout channels.
type PaymentChannel string

const (
	PaymentKPay PaymentChannel = "kpay"
	PaymentWave PaymentChannel = "wave"
)

// DisplayName returns the user-facing channel name.
func (c PaymentChannel) DisplayName() string {
	switch c {
	case PaymentKPay:
		return "KPay"
	case PaymentWave:
		return "Wave Money"
	default:
		return string(c)
	}
}

// ValidPaymentChannel reports whether s names a supported channel.
func ValidPaymentChannel(s string) (PaymentChannel, bool) {
	switch PaymentChannel(s) {
	case PaymentKPay:
		return PaymentKPay, true
	case PaymentWave:
		return PaymentWave, true
	}
	return "", false
}

// ExchangeRequest is one withdrawal-in-progress. While its status is pending
// or approved the requested amount is already held (deducted) from the
// account balance.
type ExchangeRequest struct {
	ID          string
	UserID      int64
	Username    string
	Amount      int64
	Channel     PaymentChannel
	Phone       string
	AccountName string
	Status      ExchangeStatus
	CreatedAt   time.Time
}
