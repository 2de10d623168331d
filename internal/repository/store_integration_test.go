package repository

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	contracts "skillswap/contracts/mq"
	"skillswap/internal/apperr"
	"skillswap/internal/model"
	"skillswap/internal/service/negotiation"
	"skillswap/internal/service/penalty"
	"skillswap/pkg/db"
)

// openTestStore connects to TEST_DATABASE_URL, applies migrations and
// empties every table.
func openTestStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.ApplyMigrations(ctx, pool, filepath.Join("..", "..", "migrations"), zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		TRUNCATE penalty_ledger, chat_history, projects, offers, counter_offers,
		         posts, users, skills, outbox_events RESTART IDENTITY CASCADE
	`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return NewStore(pool), pool
}

type fixture struct {
	owner, sender, post int64
}

func seed(t *testing.T, pool *pgxpool.Pool) fixture {
	t.Helper()
	ctx := context.Background()
	var design, golang int64
	mustScan(t, pool.QueryRow(ctx, `INSERT INTO skills (name) VALUES ('Design') RETURNING id`).Scan(&design))
	mustScan(t, pool.QueryRow(ctx, `INSERT INTO skills (name) VALUES ('Go') RETURNING id`).Scan(&golang))

	var f fixture
	mustScan(t, pool.QueryRow(ctx, `
		INSERT INTO users (first_name, email, skill_id, is_verified) VALUES ('Olga', 'olga@example.com', $1, TRUE)
		RETURNING id`, design).Scan(&f.owner))
	mustScan(t, pool.QueryRow(ctx, `
		INSERT INTO users (first_name, email, skill_id, is_verified) VALUES ('Sam', 'sam@example.com', $1, TRUE)
		RETURNING id`, golang).Scan(&f.sender))
	mustScan(t, pool.QueryRow(ctx, `
		INSERT INTO posts (user_id, title, skill_id, required_skill_id, end_date, milestones)
		VALUES ($1, 'Logo', $2, $3, '2025-02-01', '[{"title":"Sketch","duration":4}]')
		RETURNING id`, f.owner, design, golang).Scan(&f.post))
	return f
}

func mustScan(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func newOffer(t *testing.T, e *negotiation.Engine, f fixture) *model.Offer {
	t.Helper()
	o, err := e.MakeOffer(context.Background(), f.sender, f.post, negotiation.OfferInput{
		Message:    "trade",
		StartDate:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Milestones: model.Milestones{{Title: "A", Duration: 3}, {Title: "B", Duration: 2}},
	})
	if err != nil {
		t.Fatalf("MakeOffer() error = %v", err)
	}
	return o
}

func countOutbox(t *testing.T, pool *pgxpool.Pool, topic string) int {
	t.Helper()
	var n int
	mustScan(t, pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM outbox_events WHERE routing_key = $1`, topic).Scan(&n))
	return n
}

func TestConcurrentAcceptAgainstPostgres(t *testing.T) {
	s, pool := openTestStore(t)
	f := seed(t, pool)
	e := negotiation.NewEngine(s.Negotiation(), s.Views(), zap.NewNop())
	o := newOffer(t, e, f)

	const n = 6
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = e.AcceptOffer(context.Background(), o.ID, f.owner)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if apperr.KindOf(err) != apperr.KindConflict {
			t.Errorf("loser error = %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}
	if got := countOutbox(t, pool, contracts.TopicProject); got != 1 {
		t.Errorf("project jobs = %d, want 1", got)
	}

	u, err := s.Users().GetByID(context.Background(), f.sender)
	if err != nil || u.Available {
		t.Errorf("sender after accept = %+v, %v", u, err)
	}
}

func TestDuplicatePendingOfferIndex(t *testing.T) {
	s, pool := openTestStore(t)
	f := seed(t, pool)
	offers := s.Offers()
	o := &model.Offer{
		SenderID: f.sender, ReceiverID: f.owner, PostID: f.post, Status: model.OfferPending,
		Message: "x", StartDate: time.Now(), EndDate: time.Now(),
		Milestones: model.Milestones{{Title: "A", Duration: 1}}, CreatedAt: time.Now(),
	}
	if err := offers.Create(context.Background(), o); err != nil {
		t.Fatal(err)
	}
	dup := *o
	err := offers.Create(context.Background(), &dup)
	if !apperr.HasCode(err, apperr.CodeDuplicatePendingOffer) {
		t.Fatalf("error = %v, want DuplicatePendingOffer", err)
	}
}

func TestProjectCreateOnceAndClose(t *testing.T) {
	s, pool := openTestStore(t)
	f := seed(t, pool)
	e := negotiation.NewEngine(s.Negotiation(), s.Views(), zap.NewNop())
	o := newOffer(t, e, f)
	if err := e.AcceptOffer(context.Background(), o.ID, f.owner); err != nil {
		t.Fatal(err)
	}

	projects := s.Projects()
	p := &model.Project{
		OfferID: o.ID, User1ID: f.owner, User2ID: f.sender,
		User1Milestones: model.Milestones{{Title: "Sketch", Duration: 4}},
		User2Milestones: o.Milestones,
		AcceptedAt:      time.Now(), Phase: model.PhaseInProgress,
	}
	for i := 0; i < 2; i++ {
		cp := *p
		created, err := projects.CreateOnce(context.Background(), &cp)
		if err != nil {
			t.Fatal(err)
		}
		if created != (i == 0) {
			t.Fatalf("insert %d created = %v", i, created)
		}
		if i == 0 {
			p.ID = cp.ID
		}
	}

	closed, err := projects.Close(context.Background(), p.ID)
	if err != nil || !closed {
		t.Fatalf("Close() = %v, %v", closed, err)
	}
	closed, err = projects.Close(context.Background(), p.ID)
	if err != nil || closed {
		t.Fatalf("second Close() = %v, %v", closed, err)
	}
	u, _ := s.Users().GetByID(context.Background(), f.owner)
	if !u.Available {
		t.Error("owner not released after close")
	}

	svc := penalty.NewService(s.Penalty(), zap.NewNop())
	for i := 0; i < 2; i++ {
		if _, err := svc.Apply(context.Background(), p.ID, f.sender); err != nil {
			t.Fatal(err)
		}
	}
	u, _ = s.Users().GetByID(context.Background(), f.sender)
	if u.WarningCounter != 1 {
		t.Errorf("warning_counter = %d, want 1", u.WarningCounter)
	}
}
