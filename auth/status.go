package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	autherrors "github.com/CodeGachi/SyncNapse-sub001/internal/errors"
)

// AccountStatus is the cached gate decision for a user. Existence and ban
// state are cheap booleans; suspension carries its end time so callers can
// tell the user when access resumes.
type AccountStatus struct {
	Exists         bool
	Banned         bool
	SuspendedUntil *time.Time
}

// SuspendedError reports an active suspension together with its end time.
// It unwraps to ErrAccountSuspended so callers can match with errors.Is.
type SuspendedError struct {
	Until time.Time
}

func (e *SuspendedError) Error() string {
	return fmt.Sprintf("account suspended until %s", e.Until.Format(time.RFC3339))
}

func (e *SuspendedError) Unwrap() error {
	return autherrors.ErrAccountSuspended
}

// CheckAccountStatus gates a request on the user's account standing. The
// lookup result is cached briefly; the pass/fail decision is evaluated on
// every call, so a suspension that lapses mid-cache-window is honored
// without waiting for the entry to expire.
func (s *Service) CheckAccountStatus(ctx context.Context, userID string) error {
	status, err := s.lookupStatus(ctx, userID)
	if err != nil {
		return err
	}

	if !status.Exists {
		return autherrors.ErrUserNotFound
	}
	if status.Banned {
		s.logger.Warn().Str("user_id", userID).Msg("banned account rejected")
		return autherrors.ErrAccountBanned
	}
	if status.SuspendedUntil != nil && status.SuspendedUntil.After(s.nowFunc()) {
		s.logger.Warn().
			Str("user_id", userID).
			Time("until", *status.SuspendedUntil).
			Msg("suspended account rejected")
		return &SuspendedError{Until: *status.SuspendedUntil}
	}
	return nil
}

// InvalidateAccountStatus busts every cached entry for the user. Call after
// ban, suspend, or delete so the change takes effect immediately rather
// than at cache expiry.
func (s *Service) InvalidateAccountStatus(userID string) {
	removed := s.deps.Cache.DelPattern(statusKeyPrefix(userID) + "*")
	if removed > 0 {
		s.logger.Debug().Str("user_id", userID).Int("removed", removed).Msg("account status cache invalidated")
	}
}

func (s *Service) lookupStatus(ctx context.Context, userID string) (*AccountStatus, error) {
	value, err := s.deps.Cache.GetOrCompute(ctx, statusKeyPrefix(userID)+"status", s.statusTTL,
		func(ctx context.Context) (any, error) {
			user, err := s.deps.Users.FindByID(ctx, userID)
			if err != nil {
				if errors.Is(err, autherrors.ErrUserNotFound) {
					return &AccountStatus{Exists: false}, nil
				}
				return nil, errors.Wrap(err, "[lookupStatus] FindByID")
			}
			if user.DeletedAt != nil {
				return &AccountStatus{Exists: false}, nil
			}
			return &AccountStatus{
				Exists:         true,
				Banned:         user.Banned,
				SuspendedUntil: user.SuspendedUntil,
			}, nil
		})
	if err != nil {
		return nil, err
	}
	status, ok := value.(*AccountStatus)
	if !ok {
		return nil, errors.Wrapf(autherrors.ErrInternal, "unexpected cache entry type %T", value)
	}
	return status, nil
}

func statusKeyPrefix(userID string) string {
	return "user:" + userID + ":"
}
