package withdrawals

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/surveycash/surveycash-backend/pkg/db/models"
	pkgerrors "github.com/surveycash/surveycash-backend/pkg/errors"
)

var errStillOpen = errors.New("withdrawal still open")

// poll re-runs Check with a constant backoff until the withdrawal reaches a
// terminal state or the attempts are used up. Running out of attempts is not
// an error; the caller gets the latest stored state.
func (s *service) poll(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	attempts := s.pollAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(s.pollInterval))

	var latest *models.Withdrawal
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		withdrawal, err := s.Check(ctx, id, TriggerOnDemand)
		if withdrawal != nil {
			latest = withdrawal
		}
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
				return retry.RetryableError(err)
			}
			return err
		}
		if !withdrawal.Status.IsTerminal() {
			return retry.RetryableError(errStillOpen)
		}
		return nil
	})
	if err == nil || errors.Is(err, errStillOpen) {
		return latest, nil
	}
	if latest != nil && pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		return latest, nil
	}
	return nil, err
}
