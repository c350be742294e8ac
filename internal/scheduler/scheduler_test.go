package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/huligan-sport/wb-price-bot/internal/models"
)

type mockSource struct {
	mu      sync.Mutex
	users   map[int64]*models.UserRecord
	loadErr error
	deleted []int64
}

func (m *mockSource) LoadAllUsers(context.Context) (map[int64]*models.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make(map[int64]*models.UserRecord, len(m.users))
	for id, rec := range m.users {
		out[id] = rec
	}
	return out, nil
}

func (m *mockSource) DeleteUser(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, chatID)
	delete(m.users, chatID)
	return nil
}

type mockLiveness struct {
	unreachable map[int64]bool
}

func (m *mockLiveness) ChatReachable(chatID int64) bool {
	return !m.unreachable[chatID]
}

type mockChecker struct{}

func (mockChecker) CheckPrices(context.Context, int64, bool) (int, error) { return 0, nil }

func userWith(chatID int64, interval string, articles ...string) *models.UserRecord {
	u := models.NewUserRecord(chatID)
	u.NotificationInterval = interval
	for _, a := range articles {
		u.Insert(a, &models.TrackedProduct{Name: "p" + a})
	}
	return u
}

func newTestScheduler(src *mockSource, live *mockLiveness) *Scheduler {
	if live == nil {
		live = &mockLiveness{}
	}
	return New(src, live, mockChecker{}, "*/5 * * * *")
}

func TestRederive_InstallsJobs(t *testing.T) {
	src := &mockSource{users: map[int64]*models.UserRecord{
		1: userWith(1, "", "1111111"),
		2: userWith(2, "*/15 * * * *", "2222222"),
		3: userWith(3, ""), // empty registry, no job
	}}
	s := newTestScheduler(src, nil)

	if err := s.Rederive(context.Background()); err != nil {
		t.Fatalf("Rederive() error = %v", err)
	}

	if s.JobCount() != 2 {
		t.Errorf("JobCount() = %d, want 2", s.JobCount())
	}
	if !s.HasJob(1) || !s.HasJob(2) {
		t.Error("jobs for chats 1 and 2 should exist")
	}
	if s.HasJob(3) {
		t.Error("empty registry must not get a job")
	}
	if spec, _ := s.JobInterval(1); spec != "*/5 * * * *" {
		t.Errorf("chat 1 interval = %q, want default", spec)
	}
	if spec, _ := s.JobInterval(2); spec != "*/15 * * * *" {
		t.Errorf("chat 2 interval = %q", spec)
	}
}

func TestRederive_ReplacesJobSet(t *testing.T) {
	src := &mockSource{users: map[int64]*models.UserRecord{
		1: userWith(1, "*/5 * * * *", "1111111"),
		2: userWith(2, "", "2222222"),
	}}
	s := newTestScheduler(src, nil)

	if err := s.Rederive(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Chat 1 changes cadence, chat 2's registry empties.
	src.mu.Lock()
	src.users[1].NotificationInterval = "0 */1 * * *"
	src.users[2] = userWith(2, "")
	src.mu.Unlock()

	if err := s.Rederive(context.Background()); err != nil {
		t.Fatal(err)
	}

	if spec, _ := s.JobInterval(1); spec != "0 */1 * * *" {
		t.Errorf("chat 1 interval = %q, want the new cadence", spec)
	}
	if s.HasJob(2) {
		t.Error("emptied registry should lose its job")
	}
	if s.JobCount() != 1 {
		t.Errorf("JobCount() = %d, want 1", s.JobCount())
	}
}

func TestRederive_PrunesUnreachableChats(t *testing.T) {
	src := &mockSource{users: map[int64]*models.UserRecord{
		1: userWith(1, "", "1111111"),
		2: userWith(2, "", "2222222"),
	}}
	live := &mockLiveness{unreachable: map[int64]bool{2: true}}
	s := newTestScheduler(src, live)

	if err := s.Rederive(context.Background()); err != nil {
		t.Fatal(err)
	}

	if s.HasJob(2) {
		t.Error("unreachable chat must not be scheduled")
	}
	if len(src.deleted) != 1 || src.deleted[0] != 2 {
		t.Errorf("deleted chats = %v, want [2]", src.deleted)
	}
	if !s.HasJob(1) {
		t.Error("reachable chat should keep its job")
	}
}

func TestRederive_InvalidIntervalFallsBack(t *testing.T) {
	src := &mockSource{users: map[int64]*models.UserRecord{
		1: userWith(1, "not a cron spec", "1111111"),
	}}
	s := newTestScheduler(src, nil)

	if err := s.Rederive(context.Background()); err != nil {
		t.Fatal(err)
	}

	if spec, ok := s.JobInterval(1); !ok || spec != "*/5 * * * *" {
		t.Errorf("interval = %q, %v; want default fallback", spec, ok)
	}
}

func TestRederive_LoadFailure(t *testing.T) {
	src := &mockSource{loadErr: errors.New("mongo down")}
	s := newTestScheduler(src, nil)

	if err := s.Rederive(context.Background()); err == nil {
		t.Fatal("expected error when the store is unavailable")
	}
	if s.JobCount() != 0 {
		t.Errorf("JobCount() = %d, want 0", s.JobCount())
	}
}
