package sitecontent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-site/pkg/sitecontent/lock"
)

const (
	// DefaultMaxUploadBytes caps a single image upload
	DefaultMaxUploadBytes int64 = 5 << 20

	defaultCleanupTimeout = 10 * time.Second
)

// DefaultConstraints fit images inside 1920x1080 and re-encode at quality 85
var DefaultConstraints = Constraints{MaxWidth: 1920, MaxHeight: 1080, Quality: 85}

// DefaultAllowedMimeTypes lists the image types accepted for upload
var DefaultAllowedMimeTypes = []string{"image/jpeg", "image/png", "image/webp"}

// service implements the Service interface
type service struct {
	repository  Repository
	blobStore   BlobStore
	transformer Transformer
	hasher      PasswordHasher
	tokens      TokenIssuer
	locker      Locker
	keys        KeyGenerator
	urls        URLBuilder
	activity    ActivityRecorder
	logger      *slog.Logger

	constraints      Constraints
	maxUploadBytes   int64
	allowedMimeTypes map[string]bool
	cleanupTimeout   time.Duration
	now              func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the record store
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob store used for uploaded images
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithTransformer sets the image normalizer
func WithTransformer(t Transformer) Option {
	return func(s *service) {
		s.transformer = t
	}
}

// WithPasswordHasher sets the credential digest implementation
func WithPasswordHasher(h PasswordHasher) Option {
	return func(s *service) {
		s.hasher = h
	}
}

// WithTokenIssuer sets the bearer token implementation
func WithTokenIssuer(t TokenIssuer) Option {
	return func(s *service) {
		s.tokens = t
	}
}

// WithLocker sets the lock used to serialize carousel order assignment
func WithLocker(l Locker) Option {
	return func(s *service) {
		s.locker = l
	}
}

// WithKeyGenerator sets the blob naming strategy
func WithKeyGenerator(g KeyGenerator) Option {
	return func(s *service) {
		s.keys = g
	}
}

// WithURLBuilder sets how public blob links are produced
func WithURLBuilder(b URLBuilder) Option {
	return func(s *service) {
		s.urls = b
	}
}

// WithActivityRecorder replaces the default repository-backed recorder
func WithActivityRecorder(r ActivityRecorder) Option {
	return func(s *service) {
		s.activity = r
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithConstraints sets the bounding box and quality for normalized images
func WithConstraints(c Constraints) Option {
	return func(s *service) {
		s.constraints = c
	}
}

// WithMaxUploadBytes caps upload size
func WithMaxUploadBytes(n int64) Option {
	return func(s *service) {
		s.maxUploadBytes = n
	}
}

// WithAllowedMimeTypes restricts the sniffed upload types
func WithAllowedMimeTypes(types ...string) Option {
	return func(s *service) {
		s.allowedMimeTypes = make(map[string]bool, len(types))
		for _, t := range types {
			s.allowedMimeTypes[strings.ToLower(strings.TrimSpace(t))] = true
		}
	}
}

// WithCleanupTimeout bounds blob cleanup that runs after the caller's context is done
func WithCleanupTimeout(d time.Duration) Option {
	return func(s *service) {
		s.cleanupTimeout = d
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		constraints:    DefaultConstraints,
		maxUploadBytes: DefaultMaxUploadBytes,
		cleanupTimeout: defaultCleanupTimeout,
		now:            func() time.Time { return time.Now().UTC() },
	}
	WithAllowedMimeTypes(DefaultAllowedMimeTypes...)(s)

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.locker == nil {
		s.locker = lock.NewLocal()
	}
	if s.activity == nil {
		s.activity = NewRepositoryActivityRecorder(s.repository)
	}

	return s, nil
}

func (s *service) Ping(ctx context.Context) error {
	if err := s.repository.Ping(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// classify translates repository and context errors into the service taxonomy.
// Errors already in the taxonomy pass through.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrNotFoundOrForbidden),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrProcessingFailed),
		errors.Is(err, ErrStorageUnavailable),
		errors.Is(err, ErrTimeout):
		return err
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrObjectNotFound):
		return fmt.Errorf("%w: %w", ErrNotFoundOrForbidden, err)
	case errors.Is(err, ErrDuplicate):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
}

// discardBlob deletes a blob that is no longer (or never was) referenced.
// It runs on a context detached from the caller so cleanup still happens
// after a deadline. Failures leave an orphan for the sweep and are logged.
func (s *service) discardBlob(ctx context.Context, key, reason string) {
	if key == "" {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cleanupTimeout)
	defer cancel()

	if err := s.blobStore.Delete(cctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
		s.logger.Error("failed to delete blob", "object_key", key, "reason", reason, "error", err)
		return
	}
	s.logger.Debug("blob deleted", "object_key", key, "reason", reason)
}

// objectKey names a new blob. Every write gets a fresh id so a replacement
// never lands on the key it replaces.
func (s *service) objectKey(websiteID, ownerID uuid.UUID, kind ChildKind, upload *Upload, mimeType string) string {
	objectID := uuid.New()
	meta := &KeyMetadata{
		Kind:     kind,
		FileName: upload.FileName,
		MimeType: mimeType,
		OwnerID:  ownerID,
	}
	if s.keys != nil {
		return s.keys.GenerateKey(websiteID, objectID, meta)
	}
	return fmt.Sprintf("%s/%s/%s%s", kind, websiteID, objectID, extensionFor(mimeType))
}

func (s *service) fillURL(ctx context.Context, child *Child) {
	if child == nil || child.ObjectKey == "" {
		return
	}
	if s.urls == nil {
		child.URL = "/uploads/" + child.ObjectKey
		return
	}
	u, err := s.urls.BuildURL(ctx, child.ObjectKey)
	if err != nil {
		s.logger.Warn("failed to build blob url", "object_key", child.ObjectKey, "error", err)
		return
	}
	child.URL = u
}

func (s *service) fillURLs(ctx context.Context, children []*Child) {
	for _, c := range children {
		s.fillURL(ctx, c)
	}
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

// validObjectKey rejects keys that could escape a filesystem root.
func validObjectKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	return path.Clean(key) == key && !strings.HasPrefix(key, "..")
}
