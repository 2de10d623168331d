// Package project materializes accepted offers into projects and tracks
// their delivery.
package project

import (
	"context"
	"errors"
	"net/url"
	"time"

	"go.uber.org/zap"

	contracts "skillswap/contracts/mq"
	"skillswap/internal/apperr"
	"skillswap/internal/model"
	"skillswap/pkg/trace"
)

const maxLinkLen = 2048

type Store interface {
	// CreateOnce inserts p unless a project for p.OfferID exists. It
	// reports whether a row was inserted.
	CreateOnce(ctx context.Context, p *model.Project) (bool, error)
	GetByID(ctx context.Context, id int64) (*model.Project, error)
	ListForUser(ctx context.Context, userID int64) ([]model.Project, error)
}

type TxStore interface {
	LockByID(ctx context.Context, id int64) (*model.Project, error)
	SetLinks(ctx context.Context, id int64, user1Link, user2Link *string) error
	// Hand moves an In-progress project to Handed and releases both parties.
	Hand(ctx context.Context, id int64) error
	// LockOverdue returns In-progress projects with a passed deadline,
	// skipping rows another scanner holds.
	LockOverdue(ctx context.Context, now time.Time) ([]model.Project, error)
	// Close moves an In-progress project to Closed and releases both parties.
	Close(ctx context.Context, id int64) (bool, error)
}

type JobQueue interface {
	Enqueue(ctx context.Context, topic string, aggregateID int64, payload any) error
}

type Repos struct {
	Projects TxStore
	Jobs     JobQueue
}

type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

type Service struct {
	store  Store
	uow    UnitOfWork
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, uow UnitOfWork, logger *zap.Logger) *Service {
	return &Service{store: store, uow: uow, logger: logger, now: time.Now}
}

// Materialize creates the project for an accepted offer. Redelivered jobs
// find the existing row and report created=false.
func (s *Service) Materialize(ctx context.Context, p contracts.ProjectPayload) (created bool, err error) {
	if p.OfferID <= 0 || p.User1ID <= 0 || p.User2ID <= 0 {
		return false, apperr.Validation(apperr.CodeInvalidInput, "project job is missing ids")
	}
	if len(p.User1Milestones) == 0 || len(p.User2Milestones) == 0 {
		return false, apperr.Validation(apperr.CodeInvalidInput, "project job has no milestones")
	}

	acceptedAt := p.AcceptedAt
	if acceptedAt.IsZero() {
		acceptedAt = s.now().UTC()
	}
	proj := &model.Project{
		OfferID:         p.OfferID,
		User1ID:         p.User1ID,
		User2ID:         p.User2ID,
		User1Milestones: p.User1Milestones,
		User2Milestones: p.User2Milestones,
		User1Deadline:   p.User1Deadline,
		User2Deadline:   p.User2Deadline,
		AcceptedAt:      acceptedAt,
		Phase:           model.PhaseInProgress,
	}
	created, err = s.store.CreateOnce(ctx, proj)
	if err != nil {
		return false, err
	}
	if created {
		s.logger.Info("Project created",
			zap.Int64("project_id", proj.ID),
			zap.Int64("offer_id", p.OfferID),
		)
	} else {
		s.logger.Info("Project already exists for offer", zap.Int64("offer_id", p.OfferID))
	}
	return created, nil
}

// SubmitLink stores userID's deliverable link. Once both parties have
// submitted, the project is handed over and both become available again.
func (s *Service) SubmitLink(ctx context.Context, projectID, userID int64, link string) (*model.Project, error) {
	if err := validateLink(link); err != nil {
		return nil, err
	}

	var out *model.Project
	err := s.uow.Do(ctx, func(ctx context.Context, r Repos) error {
		p, err := r.Projects.LockByID(ctx, projectID)
		if err != nil {
			return projectNotFound(err)
		}
		if !p.IsParty(userID) {
			return apperr.NotFound(apperr.CodeProjectNotFound, "No projects found!")
		}
		if p.Phase != model.PhaseInProgress {
			return apperr.Conflict(apperr.CodeProjectClosed, "This project is no longer in progress!")
		}

		slot := &p.User1Link
		if userID == p.User2ID {
			slot = &p.User2Link
		}
		if *slot != nil {
			return apperr.Conflict(apperr.CodeLinkAlreadySubmitted, "You have already submitted your project link!")
		}
		*slot = &link

		if err := r.Projects.SetLinks(ctx, p.ID, p.User1Link, p.User2Link); err != nil {
			return err
		}
		if p.User1Link != nil && p.User2Link != nil {
			if err := r.Projects.Hand(ctx, p.ID); err != nil {
				return err
			}
			p.Phase = model.PhaseHanded
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Project link submitted",
		zap.Int64("project_id", projectID),
		zap.Int64("user_id", userID),
		zap.String("phase", string(out.Phase)),
	)
	return out, nil
}

func (s *Service) MyProjects(ctx context.Context, userID int64) ([]model.Project, error) {
	projects, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, apperr.NotFound(apperr.CodeProjectNotFound, "No projects yet!")
	}
	return projects, nil
}

func (s *Service) MyProject(ctx context.Context, projectID, userID int64) (*model.Project, error) {
	p, err := s.store.GetByID(ctx, projectID)
	if err != nil {
		return nil, projectNotFound(err)
	}
	if !p.IsParty(userID) {
		return nil, apperr.NotFound(apperr.CodeProjectNotFound, "No projects found!")
	}
	return p, nil
}

// ScanMissedDeadlines closes every In-progress project with a missed
// deadline and queues one missed_deadline job per late party, in the same
// transaction. It returns the number of jobs queued.
func (s *Service) ScanMissedDeadlines(ctx context.Context) (int, error) {
	now := s.now()
	queued := 0
	err := s.uow.Do(ctx, func(ctx context.Context, r Repos) error {
		queued = 0
		overdue, err := r.Projects.LockOverdue(ctx, now)
		if err != nil {
			return err
		}
		for i := range overdue {
			p := &overdue[i]
			late := p.MissedDeadlines(now)
			if len(late) == 0 {
				continue
			}
			closed, err := r.Projects.Close(ctx, p.ID)
			if err != nil {
				return err
			}
			if !closed {
				continue
			}
			for _, userID := range late {
				if err := r.Jobs.Enqueue(ctx, contracts.TopicMissedDeadline, p.ID, contracts.MissedDeadlinePayload{
					ProjectID: p.ID,
					UserID:    userID,
					TraceID:   trace.FromContext(ctx),
				}); err != nil {
					return err
				}
				queued++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Deadline scan finished", zap.Int("missed_deadlines", queued))
	return queued, nil
}

func validateLink(link string) error {
	if link == "" || len(link) > maxLinkLen {
		return apperr.Validation(apperr.CodeInvalidInput, "Please provide a valid project link")
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.Validation(apperr.CodeInvalidInput, "Please provide a valid project link")
	}
	return nil
}

func projectNotFound(err error) error {
	if errors.Is(err, model.ErrNotFound) {
		return apperr.NotFound(apperr.CodeProjectNotFound, "No projects found!")
	}
	return err
}
