package withdrawals

import (
	"strings"

	"github.com/surveycash/surveycash-backend/pkg/enums"
	"github.com/surveycash/surveycash-backend/pkg/paypal"
)

var failedItemStatuses = map[string]struct{}{
	"FAILED":   {},
	"RETURNED": {},
	"BLOCKED":  {},
	"REFUNDED": {},
	"REVERSED": {},
	"DENIED":   {},
	"CANCELED": {},
}

var failedBatchStatuses = map[string]struct{}{
	"DENIED":   {},
	"CANCELED": {},
}

// Resolution is the ledger's reading of a provider batch.
type Resolution struct {
	Status enums.WithdrawalStatus
	Reason string
}

// Resolve maps a payout batch onto paid, failed or still processing. The
// item status wins when present; otherwise the batch header decides.
func Resolve(batch *paypal.Batch) Resolution {
	if batch == nil {
		return Resolution{Status: enums.WithdrawalStatusProcessing}
	}
	batchStatus := strings.ToUpper(strings.TrimSpace(batch.BatchStatus))
	itemStatus := strings.ToUpper(strings.TrimSpace(batch.TransactionStatus))

	if _, failed := failedBatchStatuses[batchStatus]; failed {
		return Resolution{Status: enums.WithdrawalStatusFailed, Reason: failureReason(batch, "batch "+strings.ToLower(batchStatus))}
	}
	if itemStatus != "" {
		if itemStatus == "SUCCESS" {
			return Resolution{Status: enums.WithdrawalStatusPaid}
		}
		if _, failed := failedItemStatuses[itemStatus]; failed {
			return Resolution{Status: enums.WithdrawalStatusFailed, Reason: failureReason(batch, "payout "+strings.ToLower(itemStatus))}
		}
		return Resolution{Status: enums.WithdrawalStatusProcessing}
	}
	if batchStatus == "SUCCESS" {
		return Resolution{Status: enums.WithdrawalStatusPaid}
	}
	return Resolution{Status: enums.WithdrawalStatusProcessing}
}

func failureReason(batch *paypal.Batch, fallback string) string {
	switch {
	case batch.ErrorMessage != "":
		return batch.ErrorMessage
	case batch.ErrorName != "":
		return batch.ErrorName
	default:
		return fallback
	}
}
