package project

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	contracts "skillswap/contracts/mq"
	"skillswap/internal/apperr"
	"skillswap/internal/model"
)

type memProjects struct {
	mu       sync.Mutex
	projects map[int64]model.Project
	released map[int64]int
	jobs     []contracts.MissedDeadlinePayload
	nextID   int64
}

func newMemProjects() *memProjects {
	return &memProjects{projects: map[int64]model.Project{}, released: map[int64]int{}}
}

func (m *memProjects) CreateOnce(_ context.Context, p *model.Project) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.projects {
		if existing.OfferID == p.OfferID {
			return false, nil
		}
	}
	m.nextID++
	p.ID = m.nextID
	m.projects[p.ID] = *p
	return true, nil
}

func (m *memProjects) GetByID(_ context.Context, id int64) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &p, nil
}

func (m *memProjects) ListForUser(_ context.Context, userID int64) ([]model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Project
	for _, p := range m.projects {
		if p.IsParty(userID) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Do runs fn against the live maps; the tests below never fail mid-way.
func (m *memProjects) Do(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := memTx{m}
	return fn(ctx, Repos{Projects: tx, Jobs: tx})
}

type memTx struct{ m *memProjects }

func (t memTx) LockByID(_ context.Context, id int64) (*model.Project, error) {
	p, ok := t.m.projects[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &p, nil
}

func (t memTx) SetLinks(_ context.Context, id int64, l1, l2 *string) error {
	p := t.m.projects[id]
	p.User1Link, p.User2Link = l1, l2
	t.m.projects[id] = p
	return nil
}

func (t memTx) Hand(_ context.Context, id int64) error {
	p := t.m.projects[id]
	p.Phase = model.PhaseHanded
	t.m.projects[id] = p
	t.m.released[p.User1ID]++
	t.m.released[p.User2ID]++
	return nil
}

func (t memTx) LockOverdue(_ context.Context, now time.Time) ([]model.Project, error) {
	var out []model.Project
	for _, p := range t.m.projects {
		if p.Phase == model.PhaseInProgress && len(p.MissedDeadlines(now)) > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t memTx) Close(_ context.Context, id int64) (bool, error) {
	p := t.m.projects[id]
	if p.Phase != model.PhaseInProgress {
		return false, nil
	}
	p.Phase = model.PhaseClosed
	t.m.projects[id] = p
	t.m.released[p.User1ID]++
	t.m.released[p.User2ID]++
	return true, nil
}

func (t memTx) Enqueue(_ context.Context, topic string, _ int64, payload any) error {
	if topic == contracts.TopicMissedDeadline {
		t.m.jobs = append(t.m.jobs, payload.(contracts.MissedDeadlinePayload))
	}
	return nil
}

func day(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func payload() contracts.ProjectPayload {
	return contracts.ProjectPayload{
		OfferID:         10,
		User1ID:         1,
		User2ID:         2,
		User1Milestones: model.Milestones{{Title: "Sketch", Duration: 4}},
		User1Deadline:   day("2025-02-01"),
		User2Milestones: model.Milestones{{Title: "A", Duration: 3}},
		User2Deadline:   day("2025-01-06"),
		AcceptedAt:      *day("2025-01-01"),
	}
}

func newTestService() (*Service, *memProjects) {
	m := newMemProjects()
	return NewService(m, m, zap.NewNop()), m
}

func TestMaterializeExactlyOnce(t *testing.T) {
	s, m := newTestService()
	for i := 0; i < 2; i++ {
		created, err := s.Materialize(context.Background(), payload())
		if err != nil {
			t.Fatalf("Materialize() error = %v", err)
		}
		if created != (i == 0) {
			t.Errorf("delivery %d: created = %v", i, created)
		}
	}
	if len(m.projects) != 1 {
		t.Fatalf("projects = %d, want 1", len(m.projects))
	}
	if p := m.projects[1]; p.Phase != model.PhaseInProgress || p.User1ID != 1 {
		t.Errorf("unexpected project %+v", p)
	}
}

func TestMaterializeRejectsEmptyMilestones(t *testing.T) {
	s, _ := newTestService()
	p := payload()
	p.User2Milestones = nil
	_, err := s.Materialize(context.Background(), p)
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestSubmitLinkHandsOver(t *testing.T) {
	s, m := newTestService()
	if _, err := s.Materialize(context.Background(), payload()); err != nil {
		t.Fatal(err)
	}

	p, err := s.SubmitLink(context.Background(), 1, 1, "https://example.com/a")
	if err != nil {
		t.Fatalf("SubmitLink() error = %v", err)
	}
	if p.Phase != model.PhaseInProgress {
		t.Errorf("phase after one link = %s", p.Phase)
	}

	_, err = s.SubmitLink(context.Background(), 1, 1, "https://example.com/b")
	if !apperr.HasCode(err, apperr.CodeLinkAlreadySubmitted) {
		t.Errorf("second submit error = %v", err)
	}

	p, err = s.SubmitLink(context.Background(), 1, 2, "https://example.com/c")
	if err != nil {
		t.Fatal(err)
	}
	if p.Phase != model.PhaseHanded {
		t.Errorf("phase = %s, want Handed", p.Phase)
	}
	if m.released[1] != 1 || m.released[2] != 1 {
		t.Errorf("released = %v", m.released)
	}
}

func TestSubmitLinkRejections(t *testing.T) {
	s, _ := newTestService()
	if _, err := s.Materialize(context.Background(), payload()); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name    string
		project int64
		user    int64
		link    string
		code    string
	}{
		{"bad scheme", 1, 1, "ftp://x", apperr.CodeInvalidInput},
		{"empty", 1, 1, "", apperr.CodeInvalidInput},
		{"stranger", 1, 3, "https://example.com", apperr.CodeProjectNotFound},
		{"missing project", 9, 1, "https://example.com", apperr.CodeProjectNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SubmitLink(context.Background(), tt.project, tt.user, tt.link)
			if !apperr.HasCode(err, tt.code) {
				t.Fatalf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestScanMissedDeadlines(t *testing.T) {
	s, m := newTestService()
	if _, err := s.Materialize(context.Background(), payload()); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return *day("2025-01-10") }

	n, err := s.ScanMissedDeadlines(context.Background())
	if err != nil {
		t.Fatalf("ScanMissedDeadlines() error = %v", err)
	}
	if n != 1 || len(m.jobs) != 1 || m.jobs[0].UserID != 2 || m.jobs[0].ProjectID != 1 {
		t.Fatalf("jobs = %+v", m.jobs)
	}
	if m.projects[1].Phase != model.PhaseClosed {
		t.Error("project not closed")
	}

	n, err = s.ScanMissedDeadlines(context.Background())
	if err != nil || n != 0 {
		t.Errorf("second scan = %d, %v; want 0", n, err)
	}

	_, err = s.SubmitLink(context.Background(), 1, 1, "https://example.com")
	if !apperr.HasCode(err, apperr.CodeProjectClosed) {
		t.Errorf("submit after close error = %v", err)
	}
}

func TestMyProjects(t *testing.T) {
	s, _ := newTestService()
	_, err := s.MyProjects(context.Background(), 1)
	if !apperr.HasCode(err, apperr.CodeProjectNotFound) {
		t.Fatalf("error = %v", err)
	}
	if _, err := s.Materialize(context.Background(), payload()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.MyProject(context.Background(), 1, 3); !apperr.HasCode(err, apperr.CodeProjectNotFound) {
		t.Errorf("stranger got %v", err)
	}
	ps, err := s.MyProjects(context.Background(), 2)
	if err != nil || len(ps) != 1 {
		t.Errorf("MyProjects() = %v, %v", ps, err)
	}
}
