package model

import (
	"database/sql/driver"
)

// PaymentStatus is the lifecycle state of a card payment.
type PaymentStatus string

const (
	PaymentStatusPending            PaymentStatus = "pending"
	PaymentStatusAuthorized         PaymentStatus = "authorized"
	PaymentStatusSuccess            PaymentStatus = "success"
	PaymentStatusFailed             PaymentStatus = "failed"
	PaymentStatusFailedCapture      PaymentStatus = "failed_capture"
	PaymentStatusErrorCapture       PaymentStatus = "error_capture"
	PaymentStatusRefunded           PaymentStatus = "refunded"
	PaymentStatusChargeback         PaymentStatus = "chargeback"
	PaymentStatusChargebackReversed PaymentStatus = "chargeback_reversed"
)

// allowedTransitions lists the statuses reachable from each status. A status
// mapping to itself is a version bump that claims the record (authorized -> authorized).
var allowedTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:            {PaymentStatusAuthorized, PaymentStatusSuccess, PaymentStatusFailedCapture, PaymentStatusErrorCapture, PaymentStatusFailed},
	PaymentStatusAuthorized:         {PaymentStatusAuthorized, PaymentStatusSuccess, PaymentStatusFailedCapture, PaymentStatusErrorCapture},
	PaymentStatusErrorCapture:       {PaymentStatusAuthorized, PaymentStatusSuccess, PaymentStatusFailedCapture, PaymentStatusErrorCapture},
	PaymentStatusFailedCapture:      {PaymentStatusSuccess, PaymentStatusFailedCapture, PaymentStatusErrorCapture},
	PaymentStatusSuccess:            {PaymentStatusSuccess, PaymentStatusRefunded, PaymentStatusChargeback},
	PaymentStatusChargeback:         {PaymentStatusChargeback, PaymentStatusChargebackReversed},
	PaymentStatusChargebackReversed: {PaymentStatusChargebackReversed, PaymentStatusRefunded, PaymentStatusChargeback},
	PaymentStatusRefunded:           {PaymentStatusRefunded},
	PaymentStatusFailed:             {},
}

// CanTransition reports whether a payment in status s may move to next.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s PaymentStatus) String() string {
	return string(s)
}

// Scan implements sql.Scanner interface
func (s *PaymentStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = PaymentStatus(v)
	case []byte:
		*s = PaymentStatus(v)
	default:
		*s = PaymentStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (s PaymentStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// TransferStatus tracks the crypto payout attached to a payment. Empty means no payout was attempted.
type TransferStatus string

const (
	TransferStatusNone    TransferStatus = ""
	TransferStatusPending TransferStatus = "pending"
	TransferStatusSuccess TransferStatus = "success"
	TransferStatusFailed  TransferStatus = "failed"
)

// Scan implements sql.Scanner interface
func (s *TransferStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = TransferStatus(v)
	case []byte:
		*s = TransferStatus(v)
	default:
		*s = TransferStatusNone
	}
	return nil
}

// Value implements driver.Valuer interface
func (s TransferStatus) Value() (driver.Value, error) {
	return string(s), nil
}
