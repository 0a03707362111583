package enums

import "fmt"

// LedgerEventType labels a row in the per-user balance journal.
type LedgerEventType string

const (
	LedgerEventTypeRewardCredit    LedgerEventType = "reward_credit"
	LedgerEventTypeRewardReversal  LedgerEventType = "reward_reversal"
	LedgerEventTypeCashoutReserved LedgerEventType = "cashout_reserved"
	LedgerEventTypePayoutPaid      LedgerEventType = "payout_paid"
	LedgerEventTypePayoutRefunded  LedgerEventType = "payout_refunded"
)

func (t LedgerEventType) IsValid() bool {
	switch t {
	case LedgerEventTypeRewardCredit,
		LedgerEventTypeRewardReversal,
		LedgerEventTypeCashoutReserved,
		LedgerEventTypePayoutPaid,
		LedgerEventTypePayoutRefunded:
		return true
	}
	return false
}

// ParseLedgerEventType accepts only the exact lowercase journal labels.
func ParseLedgerEventType(value string) (LedgerEventType, error) {
	if t := LedgerEventType(value); t.IsValid() {
		return t, nil
	}
	return "", fmt.Errorf("invalid ledger event type %q", value)
}
