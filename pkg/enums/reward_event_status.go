package enums

import "fmt"

type RewardEventStatus string

const (
	RewardEventStatusCredited RewardEventStatus = "credited"
	RewardEventStatusReversed RewardEventStatus = "reversed"
)

var validRewardEventStatuses = []RewardEventStatus{
	RewardEventStatusCredited,
	RewardEventStatusReversed,
}

func (s RewardEventStatus) IsValid() bool {
	for _, candidate := range validRewardEventStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRewardEventStatus converts raw input into a RewardEventStatus.
func ParseRewardEventStatus(value string) (RewardEventStatus, error) {
	for _, candidate := range validRewardEventStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reward event status %q", value)
}

// RewardDirection is what an inbound callback asks the ledger to do.
type RewardDirection string

const (
	RewardDirectionCredit  RewardDirection = "credit"
	RewardDirectionReverse RewardDirection = "reverse"
)

func (d RewardDirection) IsValid() bool {
	return d == RewardDirectionCredit || d == RewardDirectionReverse
}
