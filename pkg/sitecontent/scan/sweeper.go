// Package scan finds blobs that no child references and removes them.
//
// Orphans appear when a process dies between writing a blob and committing
// its record, when blob cleanup fails after a delete, or when two updates of
// the same child race. The sweep is the only thing that reclaims them.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-site/pkg/sitecontent"
)

// DefaultGracePeriod protects blobs whose record may still be committing
const DefaultGracePeriod = time.Hour

// BlobStore is what the sweeper needs from a blob store
type BlobStore interface {
	sitecontent.BlobLister
	Delete(ctx context.Context, objectKey string) error
}

// KeySource lists the keys that are still referenced
type KeySource interface {
	ListObjectKeys(ctx context.Context) ([]string, error)
}

// Sweeper compares a blob store with the repository's references.
type Sweeper struct {
	keys   KeySource
	store  BlobStore
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new Sweeper instance.
func New(keys KeySource, store BlobStore, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{keys: keys, store: store, logger: logger, now: time.Now}
}

// NewFromStore builds a sweeper when the configured blob store can list its
// keys, and errors otherwise.
func NewFromStore(keys KeySource, store sitecontent.BlobStore, logger *slog.Logger) (*Sweeper, error) {
	lister, ok := store.(BlobStore)
	if !ok {
		return nil, fmt.Errorf("blob store %T cannot list objects", store)
	}
	return New(keys, lister, logger), nil
}

// SweepOptions configures the sweep operation.
type SweepOptions struct {
	// Prefix limits the sweep to keys under this prefix
	Prefix string

	// GracePeriod skips blobs modified more recently than this (default: DefaultGracePeriod).
	// A negative value disables the grace period.
	GracePeriod time.Duration

	// DryRun if true, reports orphans without deleting them
	DryRun bool

	// OnOrphan is called for every orphan found (optional)
	OnOrphan func(meta sitecontent.ObjectMeta)
}

// Report contains statistics about the sweep operation.
type Report struct {
	// Scanned is the number of blobs listed
	Scanned int

	// Orphaned is the number of unreferenced blobs older than the grace period
	Orphaned int

	// Deleted is the number of orphans removed
	Deleted int

	// Failed is the number of orphans that could not be removed
	Failed int

	// FailedKeys contains the keys that could not be removed
	FailedKeys []string
}

// Sweep deletes every blob no child references. A failed delete is recorded
// and the sweep continues.
func (s *Sweeper) Sweep(ctx context.Context, opts SweepOptions) (*Report, error) {
	report := &Report{}

	grace := opts.GracePeriod
	if grace == 0 {
		grace = DefaultGracePeriod
	}

	// Blobs first: a record committed after this listing is still seen below.
	blobs, err := s.store.List(ctx, opts.Prefix)
	if err != nil {
		return report, fmt.Errorf("failed to list blobs: %w", err)
	}
	referenced, err := s.keys.ListObjectKeys(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list referenced keys: %w", err)
	}

	inUse := make(map[string]struct{}, len(referenced))
	for _, k := range referenced {
		inUse[k] = struct{}{}
	}

	cutoff := s.now().Add(-grace)
	for _, blob := range blobs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++

		if _, ok := inUse[blob.Key]; ok {
			continue
		}
		if grace > 0 && !blob.UpdatedAt.IsZero() && blob.UpdatedAt.After(cutoff) {
			continue
		}

		report.Orphaned++
		if opts.OnOrphan != nil {
			opts.OnOrphan(blob)
		}
		if opts.DryRun {
			s.logger.Info("orphan blob (dry run)", "object_key", blob.Key, "size", blob.Size)
			continue
		}

		if err := s.store.Delete(ctx, blob.Key); err != nil && !errors.Is(err, sitecontent.ErrObjectNotFound) {
			report.Failed++
			report.FailedKeys = append(report.FailedKeys, blob.Key)
			s.logger.Error("failed to delete orphan blob", "object_key", blob.Key, "error", err)
			continue
		}
		report.Deleted++
		s.logger.Debug("orphan blob deleted", "object_key", blob.Key)
	}

	s.logger.Info("sweep finished",
		"scanned", report.Scanned,
		"orphaned", report.Orphaned,
		"deleted", report.Deleted,
		"failed", report.Failed,
		"dry_run", opts.DryRun)
	return report, nil
}
