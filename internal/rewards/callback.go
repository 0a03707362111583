package rewards

import (
	"errors"
	"net/url"
	"strings"

	"github.com/surveycash/surveycash-backend/pkg/enums"
	"github.com/surveycash/surveycash-backend/pkg/money"
)

const defaultRewardType = "complete"

var (
	ErrMissingTransID = errors.New("callback carries no transaction id")
	ErrMissingUser    = errors.New("callback carries no user reference")
	ErrUnknownStatus  = errors.New("callback status is neither a credit nor a reversal")
)

var (
	transIDKeys = []string{"trans_id", "transaction_id", "sid", "subid"}
	userKeys    = []string{"user_id", "ext_user_id", "uid"}
	statusKeys  = []string{"status", "state"}
	amountKeys  = []string{"amount", "amount_local", "reward", "payout", "value"}
)

var statusDirections = map[string]enums.RewardDirection{
	"1":          enums.RewardDirectionCredit,
	"approved":   enums.RewardDirectionCredit,
	"completed":  enums.RewardDirectionCredit,
	"ok":         enums.RewardDirectionCredit,
	"2":          enums.RewardDirectionReverse,
	"reversed":   enums.RewardDirectionReverse,
	"chargeback": enums.RewardDirectionReverse,
	"canceled":   enums.RewardDirectionReverse,
	"cancelled":  enums.RewardDirectionReverse,
}

// Callback is a normalized partner reward notification.
type Callback struct {
	TransID     string
	Type        string
	UserRef     string
	Status      string
	AmountCents int64
	Direction   enums.RewardDirection
}

// Key is the idempotency key shared by the event table and the fast-path guard.
func (c Callback) Key() string {
	return c.TransID + ":" + c.Type
}

// ParseCallback normalizes the query parameters of a reward callback. The
// returned Callback is populated as far as possible even when an error is
// returned, so callers can log what arrived.
func ParseCallback(values url.Values) (Callback, error) {
	cb := Callback{
		TransID: firstNonEmpty(values, transIDKeys),
		UserRef: firstNonEmpty(values, userKeys),
		Status:  strings.ToLower(firstNonEmpty(values, statusKeys)),
		Type:    strings.ToLower(firstNonEmpty(values, []string{"type"})),
	}
	if cb.Type == "" {
		cb.Type = defaultRewardType
	}
	cb.AmountCents = money.ParseAmountCents(firstNonEmpty(values, amountKeys))

	if cb.TransID == "" {
		return cb, ErrMissingTransID
	}
	if cb.UserRef == "" {
		return cb, ErrMissingUser
	}
	direction, ok := statusDirections[cb.Status]
	if !ok {
		return cb, ErrUnknownStatus
	}
	cb.Direction = direction
	return cb, nil
}

func firstNonEmpty(values url.Values, keys []string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(values.Get(key)); v != "" {
			return v
		}
	}
	return ""
}
