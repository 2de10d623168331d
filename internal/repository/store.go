package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"skillswap/internal/service/negotiation"
	"skillswap/internal/service/penalty"
	"skillswap/internal/service/project"
	"skillswap/pkg/db"
	"skillswap/pkg/outbox"
)

// Store hands out pool-backed repositories and transactional units of
// work whose jobs go through the outbox.
type Store struct {
	pool   *pgxpool.Pool
	outbox *outbox.Repository
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, outbox: outbox.NewRepository(pool)}
}

func (s *Store) Outbox() *outbox.Repository             { return s.outbox }
func (s *Store) Users() *UserRepository                 { return NewUserRepository(s.pool) }
func (s *Store) Posts() *PostRepository                 { return NewPostRepository(s.pool) }
func (s *Store) Offers() *OfferRepository               { return NewOfferRepository(s.pool) }
func (s *Store) CounterOffers() *CounterOfferRepository { return NewCounterOfferRepository(s.pool) }
func (s *Store) Views() *ViewRepository                 { return NewViewRepository(s.pool) }
func (s *Store) Projects() *ProjectRepository           { return NewProjectRepository(s.pool) }
func (s *Store) Chat() *ChatRepository                  { return NewChatRepository(s.pool) }

// outboxJobs queues jobs in the surrounding transaction.
type outboxJobs struct {
	w         *outbox.Writer
	aggregate string
}

func (j outboxJobs) Enqueue(ctx context.Context, topic string, aggregateID int64, payload any) error {
	id := aggregateID
	return j.w.Enqueue(ctx, j.aggregate, &id, topic, payload)
}

func (s *Store) jobs(tx pgx.Tx, aggregate string) outboxJobs {
	return outboxJobs{w: outbox.NewWriter(s.outbox, tx), aggregate: aggregate}
}

// Negotiation returns the unit of work the offer engine runs in.
func (s *Store) Negotiation() negotiation.UnitOfWork { return negotiationUoW{s} }

type negotiationUoW struct{ s *Store }

func (u negotiationUoW) Do(ctx context.Context, fn func(ctx context.Context, r negotiation.Repos) error) error {
	return db.InTx(ctx, u.s.pool, func(tx pgx.Tx) error {
		return fn(ctx, negotiation.Repos{
			Users:         NewUserRepository(tx),
			Posts:         NewPostRepository(tx),
			Offers:        NewOfferRepository(tx),
			CounterOffers: NewCounterOfferRepository(tx),
			Jobs:          u.s.jobs(tx, "offer"),
		})
	})
}

func (s *Store) Penalty() penalty.UnitOfWork { return penaltyUoW{s} }

type penaltyUoW struct{ s *Store }

func (u penaltyUoW) Do(ctx context.Context, fn func(ctx context.Context, r penalty.Repos) error) error {
	return db.InTx(ctx, u.s.pool, func(tx pgx.Tx) error {
		return fn(ctx, penalty.Repos{
			Ledger:   NewPenaltyLedger(tx),
			Users:    NewUserRepository(tx),
			Projects: NewProjectRepository(tx),
		})
	})
}

func (s *Store) Project() project.UnitOfWork { return projectUoW{s} }

type projectUoW struct{ s *Store }

func (u projectUoW) Do(ctx context.Context, fn func(ctx context.Context, r project.Repos) error) error {
	return db.InTx(ctx, u.s.pool, func(tx pgx.Tx) error {
		return fn(ctx, project.Repos{
			Projects: NewProjectRepository(tx),
			Jobs:     u.s.jobs(tx, "project"),
		})
	})
}
