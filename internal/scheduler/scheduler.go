package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/huligan-sport/wb-price-bot/internal/models"
)

// UserSource supplies the persisted registries the job set is derived from.
type UserSource interface {
	LoadAllUsers(ctx context.Context) (map[int64]*models.UserRecord, error)
	DeleteUser(ctx context.Context, chatID int64) error
}

// Liveness probes whether a chat can still receive messages.
type Liveness interface {
	ChatReachable(chatID int64) bool
}

// PriceChecker runs one chat's scheduled price check.
type PriceChecker interface {
	CheckPrices(ctx context.Context, chatID int64, unconditional bool) (int, error)
}

// Scheduler maintains one recurring check job per chat. The job set is never
// patched incrementally: Rederive replaces it wholesale from persisted state,
// so it is safe to call at any time, from anywhere, repeatedly.
type Scheduler struct {
	store    UserSource
	liveness Liveness
	checker  PriceChecker

	defaultSpec string
	jobTimeout  time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[int64]jobEntry
}

type jobEntry struct {
	id   cron.EntryID
	spec string
}

func New(store UserSource, liveness Liveness, checker PriceChecker, defaultSpec string) *Scheduler {
	return &Scheduler{
		store:       store,
		liveness:    liveness,
		checker:     checker,
		defaultSpec: defaultSpec,
		jobTimeout:  4 * time.Minute,
		cron:        cron.New(),
		entries:     make(map[int64]jobEntry),
	}
}

// Start begins firing scheduled jobs. Call Rederive first to install them.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and blocks until in-flight jobs finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("Scheduler stopped")
}

// Rederive reloads all user records and rebuilds the job set: every existing
// job is cancelled, then one job is installed per chat that still has
// products and is still reachable. Unreachable chats are treated as abandoned
// and their records deleted.
func (s *Scheduler) Rederive(ctx context.Context) error {
	users, err := s.store.LoadAllUsers(ctx)
	if err != nil {
		return fmt.Errorf("rederive: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for chatID, entry := range s.entries {
		s.cron.Remove(entry.id)
		delete(s.entries, chatID)
	}

	for chatID, rec := range users {
		if rec.Empty() {
			continue
		}

		if !s.liveness.ChatReachable(chatID) {
			slog.Warn("Chat unreachable, pruning its registry", "chat_id", chatID)
			if err := s.store.DeleteUser(ctx, chatID); err != nil {
				slog.Error("Failed to delete unreachable chat", "chat_id", chatID, "error", err)
			}
			continue
		}

		spec := rec.NotificationInterval
		if spec == "" {
			spec = s.defaultSpec
		}

		id, err := s.cron.AddFunc(spec, s.jobFor(chatID))
		if err != nil {
			slog.Error("Invalid notification interval, using default", "chat_id", chatID, "interval", spec, "error", err)
			id, err = s.cron.AddFunc(s.defaultSpec, s.jobFor(chatID))
			if err != nil {
				slog.Error("Failed to schedule chat", "chat_id", chatID, "error", err)
				continue
			}
			spec = s.defaultSpec
		}
		s.entries[chatID] = jobEntry{id: id, spec: spec}
		slog.Info("Scheduled price checks", "chat_id", chatID, "interval", spec)
	}

	slog.Info("Job set re-derived", "jobs", len(s.entries))
	return nil
}

// jobFor builds one chat's firing. Failures are logged and swallowed so one
// chat's broken schedule never touches another's.
func (s *Scheduler) jobFor(chatID int64) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Panic in scheduled price check", "chat_id", chatID, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()

		updated, err := s.checker.CheckPrices(ctx, chatID, true)
		if err != nil {
			slog.Warn("Scheduled price check failed", "chat_id", chatID, "error", err)
			return
		}
		slog.Info("Scheduled price check finished", "chat_id", chatID, "updated", updated)
	}
}

// HasJob reports whether a recurring job is installed for the chat.
func (s *Scheduler) HasJob(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[chatID]
	return ok
}

// JobCount returns the number of installed recurring jobs.
func (s *Scheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// JobInterval returns the cron expression a chat's job was installed with.
func (s *Scheduler) JobInterval(chatID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[chatID]
	return entry.spec, ok
}
