package penalty

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"skillswap/internal/apperr"
	"skillswap/internal/model"
	"skillswap/pkg/metrics"
)

type Ledger interface {
	// Record inserts the (projectID, userID) strike and reports false when
	// it already exists.
	Record(ctx context.Context, projectID, userID int64) (bool, error)
}

type UserStore interface {
	// LockForPenalty reads the user with a row lock.
	LockForPenalty(ctx context.Context, id int64) (*model.User, error)
	SetPenalty(ctx context.Context, id int64, v Verdict) error
}

type ProjectCloser interface {
	// Close moves an In-progress project to Closed and releases both
	// parties. It reports false when the project was not In-progress.
	Close(ctx context.Context, projectID int64) (bool, error)
}

type Repos struct {
	Ledger   Ledger
	Users    UserStore
	Projects ProjectCloser
}

type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

// Result describes what Apply did.
type Result struct {
	Verdict   Verdict
	Duplicate bool
}

type Service struct {
	uow    UnitOfWork
	logger *zap.Logger
	now    func() time.Time
}

func NewService(uow UnitOfWork, logger *zap.Logger) *Service {
	return &Service{uow: uow, logger: logger, now: time.Now}
}

// Apply records one missed deadline for userID on projectID. A replayed
// strike for the same pair changes nothing.
func (s *Service) Apply(ctx context.Context, projectID, userID int64) (Result, error) {
	var res Result
	err := s.uow.Do(ctx, func(ctx context.Context, r Repos) error {
		res = Result{}

		fresh, err := r.Ledger.Record(ctx, projectID, userID)
		if err != nil {
			return err
		}
		if !fresh {
			res.Duplicate = true
			return nil
		}

		u, err := r.Users.LockForPenalty(ctx, userID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return apperr.NotFound(apperr.CodeUserNotFound, "No users found!")
			}
			return err
		}

		res.Verdict = Decide(u.WarningCounter, s.now())
		if err := r.Users.SetPenalty(ctx, userID, res.Verdict); err != nil {
			return err
		}
		_, err = r.Projects.Close(ctx, projectID)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	if res.Duplicate {
		s.logger.Info("Penalty already applied",
			zap.Int64("project_id", projectID),
			zap.Int64("user_id", userID),
		)
		return res, nil
	}

	metrics.RecordPenalty(res.Verdict.Kind())
	s.logger.Info("Penalty applied",
		zap.Int64("project_id", projectID),
		zap.Int64("user_id", userID),
		zap.String("kind", res.Verdict.Kind()),
		zap.Int("warning_counter", res.Verdict.WarningCounter),
	)
	return res, nil
}
