package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-site/pkg/sitecontent"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements sitecontent.Repository using PostgreSQL
type Repository struct {
	db   DBTX
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

// Open connects a pool to databaseURL and verifies it with a ping.
func Open(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewWithPool(pool), nil
}

// Close releases the pool when the repository owns one
func (r *Repository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sitecontent.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", sitecontent.ErrDuplicate, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: referenced record not found", sitecontent.ErrNotFound)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Principal operations

func (r *Repository) CreatePrincipal(ctx context.Context, principal *sitecontent.Principal) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		principal.ID, principal.Username, principal.Email, principal.PasswordHash, principal.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create principal", err)
	}
	return nil
}

func (r *Repository) GetPrincipal(ctx context.Context, id uuid.UUID) (*sitecontent.Principal, error) {
	query := `SELECT id, username, email, password_hash, created_at FROM users WHERE id = $1`
	return r.scanPrincipal(r.db.QueryRow(ctx, query, id), "get principal")
}

func (r *Repository) GetPrincipalByEmail(ctx context.Context, email string) (*sitecontent.Principal, error) {
	query := `SELECT id, username, email, password_hash, created_at FROM users WHERE email = $1`
	return r.scanPrincipal(r.db.QueryRow(ctx, query, email), "get principal by email")
}

func (r *Repository) scanPrincipal(row pgx.Row, operation string) (*sitecontent.Principal, error) {
	var p sitecontent.Principal
	if err := row.Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.CreatedAt); err != nil {
		return nil, r.handlePostgresError(operation, err)
	}
	return &p, nil
}

// Website operations

func (r *Repository) CreateWebsite(ctx context.Context, website *sitecontent.Website) error {
	query := `
		INSERT INTO websites (id, name, about, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		website.ID, website.Name, website.About, website.OwnerID, website.CreatedAt, website.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create website", err)
	}
	return nil
}

func (r *Repository) GetWebsite(ctx context.Context, id uuid.UUID) (*sitecontent.Website, error) {
	query := `SELECT id, name, about, owner_id, created_at, updated_at FROM websites WHERE id = $1`

	var w sitecontent.Website
	err := r.db.QueryRow(ctx, query, id).Scan(
		&w.ID, &w.Name, &w.About, &w.OwnerID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, r.handlePostgresError("get website", err)
	}
	return &w, nil
}

func (r *Repository) UpdateWebsite(ctx context.Context, website *sitecontent.Website) error {
	query := `UPDATE websites SET name = $2, about = $3, updated_at = $4 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, website.ID, website.Name, website.About, website.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update website", err)
	}
	if tag.RowsAffected() == 0 {
		return sitecontent.ErrNotFound
	}
	return nil
}

// DeleteWebsite relies on ON DELETE CASCADE to remove the children in the same statement.
func (r *Repository) DeleteWebsite(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM websites WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete website", err)
	}
	if tag.RowsAffected() == 0 {
		return sitecontent.ErrNotFound
	}
	return nil
}

func (r *Repository) ListWebsitesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*sitecontent.Website, error) {
	query := `
		SELECT id, name, about, owner_id, created_at, updated_at
		FROM websites WHERE owner_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, r.handlePostgresError("list websites", err)
	}
	defer rows.Close()

	result := []*sitecontent.Website{}
	for rows.Next() {
		var w sitecontent.Website
		if err := rows.Scan(&w.ID, &w.Name, &w.About, &w.OwnerID, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, r.handlePostgresError("list websites", err)
		}
		result = append(result, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list websites", err)
	}
	return result, nil
}

// Child operations

const childColumns = `id, website_id, kind, object_key, width, height, file_name, size_bytes, mime_type,
		title, subtitle, active, sort_order, created_at, updated_at`

func (r *Repository) CreateChild(ctx context.Context, child *sitecontent.Child) error {
	query := `
		INSERT INTO website_children (` + childColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.db.Exec(ctx, query,
		child.ID, child.WebsiteID, string(child.Kind), child.ObjectKey,
		child.Width, child.Height, child.FileName, child.SizeBytes, child.MimeType,
		child.Title, child.Subtitle, child.Active, child.Order, child.CreatedAt, child.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create child", err)
	}
	return nil
}

func (r *Repository) GetChild(ctx context.Context, id uuid.UUID) (*sitecontent.Child, error) {
	query := `SELECT ` + childColumns + ` FROM website_children WHERE id = $1`
	child, err := scanChild(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get child", err)
	}
	return child, nil
}

func (r *Repository) UpdateChild(ctx context.Context, child *sitecontent.Child) error {
	query := `
		UPDATE website_children SET
			object_key = $2, width = $3, height = $4, file_name = $5, size_bytes = $6,
			mime_type = $7, title = $8, subtitle = $9, active = $10, sort_order = $11,
			updated_at = $12
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		child.ID, child.ObjectKey, child.Width, child.Height, child.FileName, child.SizeBytes,
		child.MimeType, child.Title, child.Subtitle, child.Active, child.Order, child.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update child", err)
	}
	if tag.RowsAffected() == 0 {
		return sitecontent.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteChild(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM website_children WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete child", err)
	}
	if tag.RowsAffected() == 0 {
		return sitecontent.ErrNotFound
	}
	return nil
}

func (r *Repository) ListChildren(ctx context.Context, filter sitecontent.ChildFilter) ([]*sitecontent.Child, error) {
	var conditions []string
	var args []interface{}

	args = append(args, filter.WebsiteID)
	conditions = append(conditions, fmt.Sprintf("website_id = $%d", len(args)))
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "(kind <> 'carousel' OR active)")
	}

	query := `SELECT ` + childColumns + ` FROM website_children WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY kind,
			CASE WHEN kind = 'carousel' THEN sort_order END ASC,
			CASE WHEN kind = 'carousel' THEN created_at END ASC,
			CASE WHEN kind <> 'carousel' THEN created_at END DESC,
			id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list children", err)
	}
	defer rows.Close()

	result := []*sitecontent.Child{}
	for rows.Next() {
		child, err := scanChild(rows)
		if err != nil {
			return nil, r.handlePostgresError("list children", err)
		}
		result = append(result, child)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list children", err)
	}
	return result, nil
}

func (r *Repository) CountChildren(ctx context.Context, websiteID uuid.UUID, kind sitecontent.ChildKind) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM website_children WHERE website_id = $1 AND kind = $2`,
		websiteID, string(kind)).Scan(&count)
	if err != nil {
		return 0, r.handlePostgresError("count children", err)
	}
	return count, nil
}

func (r *Repository) MaxChildOrder(ctx context.Context, websiteID uuid.UUID, kind sitecontent.ChildKind) (int, error) {
	var maxOrder int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(sort_order), 0) FROM website_children WHERE website_id = $1 AND kind = $2`,
		websiteID, string(kind)).Scan(&maxOrder)
	if err != nil {
		return 0, r.handlePostgresError("max child order", err)
	}
	return maxOrder, nil
}

func (r *Repository) SetChildOrder(ctx context.Context, websiteID, childID uuid.UUID, order int, updatedAt time.Time) (bool, error) {
	query := `
		UPDATE website_children SET sort_order = $3, updated_at = $4
		WHERE id = $1 AND website_id = $2 AND kind = 'carousel'`

	tag, err := r.db.Exec(ctx, query, childID, websiteID, order, updatedAt)
	if err != nil {
		return false, r.handlePostgresError("set child order", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) ListObjectKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT object_key FROM website_children WHERE object_key <> '' ORDER BY object_key`)
	if err != nil {
		return nil, r.handlePostgresError("list object keys", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, r.handlePostgresError("list object keys", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list object keys", err)
	}
	return keys, nil
}

// Activity operations

func (r *Repository) AppendActivity(ctx context.Context, entry *sitecontent.ActivityEntry) error {
	query := `
		INSERT INTO activity_logs (id, user_id, action, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var details *string
	if len(entry.Details) > 0 {
		d := string(entry.Details)
		details = &d
	}

	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.PrincipalID, string(entry.Action), details,
		entry.IPAddress, entry.UserAgent, entry.CreatedAt)
	if err != nil {
		return r.handlePostgresError("append activity", err)
	}
	return nil
}

func (r *Repository) ListActivity(ctx context.Context, principalID uuid.UUID, limit int) ([]*sitecontent.ActivityEntry, error) {
	query := `
		SELECT id, user_id, action, details, ip_address, user_agent, created_at
		FROM activity_logs WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, principalID, limit)
	if err != nil {
		return nil, r.handlePostgresError("list activity", err)
	}
	defer rows.Close()

	result := []*sitecontent.ActivityEntry{}
	for rows.Next() {
		var e sitecontent.ActivityEntry
		var action string
		var details []byte
		if err := rows.Scan(&e.ID, &e.PrincipalID, &action, &details, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, r.handlePostgresError("list activity", err)
		}
		e.Action = sitecontent.ActivityAction(action)
		e.Details = details
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list activity", err)
	}
	return result, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return r.handlePostgresError("ping", err)
	}
	return nil
}

// Stats returns row counts per table.
func (r *Repository) Stats(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM websites),
			(SELECT COUNT(*) FROM website_children WHERE kind = 'media'),
			(SELECT COUNT(*) FROM website_children WHERE kind = 'carousel'),
			(SELECT COUNT(*) FROM activity_logs)`

	var users, websites, images, carousel, activity int
	if err := r.db.QueryRow(ctx, query).Scan(&users, &websites, &images, &carousel, &activity); err != nil {
		return nil, r.handlePostgresError("stats", err)
	}
	return map[string]int{
		"users":          users,
		"websites":       websites,
		"images":         images,
		"carousel_items": carousel,
		"activity_logs":  activity,
	}, nil
}

func scanChild(row pgx.Row) (*sitecontent.Child, error) {
	var c sitecontent.Child
	var kind string
	err := row.Scan(
		&c.ID, &c.WebsiteID, &kind, &c.ObjectKey,
		&c.Width, &c.Height, &c.FileName, &c.SizeBytes, &c.MimeType,
		&c.Title, &c.Subtitle, &c.Active, &c.Order, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Kind = sitecontent.ChildKind(kind)
	return &c, nil
}
