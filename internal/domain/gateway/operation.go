package gateway

import (
	"fmt"
	"strings"
)

// Operation is a back-office operation on a captured payment.
type Operation string

const (
	OperationRefund             Operation = "RF"
	OperationRebill             Operation = "RB"
	OperationChargeback         Operation = "CB"
	OperationChargebackReversal Operation = "CB_RV"
)

// AllowedOperations is the human list used in validation messages.
const AllowedOperations = "refund, rebill, chargeback, chargeback reversal"

var operationNames = map[string]Operation{
	"refund":              OperationRefund,
	"rebill":              OperationRebill,
	"chargeback":          OperationChargeback,
	"chargeback reversal": OperationChargebackReversal,
	"chargeback-reversal": OperationChargebackReversal,
	"chargeback_reversal": OperationChargebackReversal,
}

// ParseOperation resolves a case-insensitive operation name.
func ParseOperation(name string) (Operation, error) {
	op, ok := operationNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("invalid operation %q", name)
	}
	return op, nil
}

// Name returns the canonical lower-case name.
func (o Operation) Name() string {
	switch o {
	case OperationRefund:
		return "refund"
	case OperationRebill:
		return "rebill"
	case OperationChargeback:
		return "chargeback"
	case OperationChargebackReversal:
		return "chargeback reversal"
	default:
		return string(o)
	}
}
