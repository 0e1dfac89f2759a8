package sitecontent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

// RepositoryActivityRecorder appends entries to the record store
type RepositoryActivityRecorder struct {
	repo Repository
}

// NewRepositoryActivityRecorder creates a recorder backed by repo
func NewRepositoryActivityRecorder(repo Repository) ActivityRecorder {
	return &RepositoryActivityRecorder{repo: repo}
}

// Record appends the entry
func (r *RepositoryActivityRecorder) Record(ctx context.Context, entry *ActivityEntry) error {
	return r.repo.AppendActivity(ctx, entry)
}

// LoggingActivityRecorder writes entries to a structured logger
// Useful for development and debugging
type LoggingActivityRecorder struct {
	logger *slog.Logger
}

// NewLoggingActivityRecorder creates a recorder that only logs
func NewLoggingActivityRecorder(logger *slog.Logger) ActivityRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingActivityRecorder{logger: logger}
}

// Record logs the entry
func (l *LoggingActivityRecorder) Record(ctx context.Context, entry *ActivityEntry) error {
	l.logger.InfoContext(ctx, "activity",
		"action", entry.Action,
		"principal_id", entry.PrincipalID,
		"ip", entry.IPAddress,
		"details", string(entry.Details))
	return nil
}

// NoopActivityRecorder discards entries
type NoopActivityRecorder struct{}

// NewNoopActivityRecorder creates a recorder that does nothing
func NewNoopActivityRecorder() ActivityRecorder {
	return &NoopActivityRecorder{}
}

// Record does nothing and returns nil
func (n *NoopActivityRecorder) Record(ctx context.Context, entry *ActivityEntry) error {
	return nil
}

// MultiActivityRecorder fans an entry out to several recorders
type MultiActivityRecorder []ActivityRecorder

// Record calls every recorder and joins their errors
func (m MultiActivityRecorder) Record(ctx context.Context, entry *ActivityEntry) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// recordActivity appends an audit entry after a committed mutation.
// Audit is advisory: failures are logged and never returned.
func (s *service) recordActivity(ctx context.Context, caller Caller, action ActivityAction, details map[string]interface{}) {
	payload, err := json.Marshal(details)
	if err != nil {
		s.logger.Error("failed to encode activity details", "action", action, "error", err)
		payload = []byte("{}")
	}

	entry := &ActivityEntry{
		ID:          uuid.New(),
		PrincipalID: caller.PrincipalID,
		Action:      action,
		Details:     payload,
		IPAddress:   caller.IPAddress,
		UserAgent:   caller.UserAgent,
		CreatedAt:   s.now(),
	}

	if err := s.activity.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error("failed to record activity", "action", action, "principal_id", caller.PrincipalID, "error", err)
	}
}

func (s *service) ListActivity(ctx context.Context, principalID uuid.UUID, limit int) ([]*ActivityEntry, error) {
	if principalID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	entries, err := s.repository.ListActivity(ctx, principalID, limit)
	if err != nil {
		return nil, classify(err)
	}
	return entries, nil
}
