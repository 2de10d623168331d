package penalty

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"skillswap/internal/apperr"
	"skillswap/internal/model"
)

type strike struct{ project, user int64 }

type memUoW struct {
	mu     sync.Mutex
	users  map[int64]model.User
	ledger map[strike]bool
	closed map[int64]int
	failOn error
}

func newMemUoW() *memUoW {
	return &memUoW{
		users:  map[int64]model.User{},
		ledger: map[strike]bool{},
		closed: map[int64]int{},
	}
}

func (m *memUoW) Do(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make(map[int64]model.User, len(m.users))
	for k, v := range m.users {
		users[k] = v
	}
	ledger := make(map[strike]bool, len(m.ledger))
	for k, v := range m.ledger {
		ledger[k] = v
	}
	closed := make(map[int64]int, len(m.closed))
	for k, v := range m.closed {
		closed[k] = v
	}

	tx := &memTx{users: users, ledger: ledger, closed: closed, failOn: m.failOn}
	if err := fn(ctx, Repos{Ledger: tx, Users: tx, Projects: tx}); err != nil {
		return err
	}
	m.users, m.ledger, m.closed = users, ledger, closed
	return nil
}

type memTx struct {
	users  map[int64]model.User
	ledger map[strike]bool
	closed map[int64]int
	failOn error
}

func (t *memTx) Record(_ context.Context, projectID, userID int64) (bool, error) {
	k := strike{projectID, userID}
	if t.ledger[k] {
		return false, nil
	}
	t.ledger[k] = true
	return true, nil
}

func (t *memTx) LockForPenalty(_ context.Context, id int64) (*model.User, error) {
	u, ok := t.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &u, nil
}

func (t *memTx) SetPenalty(_ context.Context, id int64, v Verdict) error {
	u := t.users[id]
	u.WarningCounter = v.WarningCounter
	if v.Banned {
		u.IsBanned = true
		u.BannedTill = v.BannedTill
	}
	t.users[id] = u
	return nil
}

func (t *memTx) Close(_ context.Context, projectID int64) (bool, error) {
	if t.failOn != nil {
		return false, t.failOn
	}
	t.closed[projectID]++
	return t.closed[projectID] == 1, nil
}

func TestDecide(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		warnings int
		want     Verdict
	}{
		{"first strike", 0, Verdict{WarningCounter: 1}},
		{"second strike", 1, Verdict{WarningCounter: 2}},
		{"third strike bans", 2, Verdict{Banned: true}},
		{"legacy counter above threshold", 5, Verdict{Banned: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.warnings, now)
			if got.WarningCounter != tt.want.WarningCounter || got.Banned != tt.want.Banned {
				t.Fatalf("Decide(%d) = %+v, want %+v", tt.warnings, got, tt.want)
			}
			if got.Banned && !got.BannedTill.Equal(now.AddDate(0, 0, 7)) {
				t.Errorf("BannedTill = %v, want %v", got.BannedTill, now.AddDate(0, 0, 7))
			}
			if !got.Banned && got.BannedTill != nil {
				t.Error("warning must not set BannedTill")
			}
		})
	}
}

func TestApplyThirdStrikeBans(t *testing.T) {
	m := newMemUoW()
	m.users[7] = model.User{ID: 7}
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewService(m, zap.NewNop())
	s.now = func() time.Time { return now }

	for project := int64(1); project <= 2; project++ {
		if _, err := s.Apply(context.Background(), project, 7); err != nil {
			t.Fatalf("Apply(%d) error = %v", project, err)
		}
	}
	if got := m.users[7].WarningCounter; got != 2 {
		t.Fatalf("WarningCounter = %d, want 2", got)
	}

	res, err := s.Apply(context.Background(), 3, 7)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	u := m.users[7]
	if !res.Verdict.Banned || !u.IsBanned || u.WarningCounter != 0 {
		t.Fatalf("user after third strike = %+v", u)
	}
	if d := u.BannedTill.Sub(now); d != 7*24*time.Hour {
		t.Errorf("ban length = %v, want 7 days", d)
	}
	if !u.BannedAt(now.Add(time.Hour)) || u.BannedAt(now.AddDate(0, 0, 8)) {
		t.Error("ban window is wrong")
	}
}

func TestApplyIsIdempotentPerProject(t *testing.T) {
	m := newMemUoW()
	m.users[7] = model.User{ID: 7}
	s := NewService(m, zap.NewNop())

	for i := 0; i < 3; i++ {
		res, err := s.Apply(context.Background(), 1, 7)
		if err != nil {
			t.Fatal(err)
		}
		if i > 0 && !res.Duplicate {
			t.Errorf("replay %d not reported as duplicate", i)
		}
	}
	if got := m.users[7].WarningCounter; got != 1 {
		t.Errorf("WarningCounter = %d, want 1", got)
	}
	if m.closed[1] != 1 {
		t.Errorf("project closed %d times, want 1", m.closed[1])
	}
}

func TestApplyRollsBack(t *testing.T) {
	m := newMemUoW()
	m.users[7] = model.User{ID: 7}
	m.failOn = errors.New("db down")
	s := NewService(m, zap.NewNop())

	if _, err := s.Apply(context.Background(), 1, 7); err == nil {
		t.Fatal("expected error")
	}
	if m.users[7].WarningCounter != 0 || m.ledger[strike{1, 7}] {
		t.Error("failed strike left state behind")
	}

	m.failOn = nil
	if _, err := s.Apply(context.Background(), 1, 7); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if m.users[7].WarningCounter != 1 {
		t.Error("retry did not apply the strike")
	}
}

func TestApplyUnknownUser(t *testing.T) {
	s := NewService(newMemUoW(), zap.NewNop())
	_, err := s.Apply(context.Background(), 1, 99)
	if !apperr.HasCode(err, apperr.CodeUserNotFound) {
		t.Fatalf("error = %v, want UserNotFound", err)
	}
}
