// Package sqlite implements sitecontent.Repository on a single SQLite file,
// for single-node deployments and local development.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/tendant/simple-site/pkg/sitecontent"
)

// Repository implements sitecontent.Repository using SQLite
type Repository struct {
	db *sql.DB
}

// New wraps an open database. The caller must have enabled foreign keys.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Open opens (creating if needed) the database at path with foreign keys
// enabled. path may be ":memory:".
func Open(path string) (*Repository, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// OpenConnection opens and configures a SQLite connection pool.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer and every :memory:
	// connection would otherwise get its own empty database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// DB exposes the underlying handle for migrations
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Close closes the database
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) handleSQLiteError(operation string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sitecontent.ErrNotFound
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %s", sitecontent.ErrDuplicate, sqliteErr.Error())
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: referenced record not found", sitecontent.ErrNotFound)
		}
		if sqliteErr.Code == sqlite3.ErrError && strings.Contains(sqliteErr.Error(), "no such table") {
			return fmt.Errorf("table does not exist - database migration required")
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

// Principal operations

func (r *Repository) CreatePrincipal(ctx context.Context, principal *sitecontent.Principal) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		principal.ID, principal.Username, principal.Email, principal.PasswordHash, principal.CreatedAt)
	if err != nil {
		return r.handleSQLiteError("create principal", err)
	}
	return nil
}

func (r *Repository) GetPrincipal(ctx context.Context, id uuid.UUID) (*sitecontent.Principal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`, id)
	return r.scanPrincipal(row, "get principal")
}

func (r *Repository) GetPrincipalByEmail(ctx context.Context, email string) (*sitecontent.Principal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE email = ?`, email)
	return r.scanPrincipal(row, "get principal by email")
}

func (r *Repository) scanPrincipal(row *sql.Row, operation string) (*sitecontent.Principal, error) {
	var p sitecontent.Principal
	if err := row.Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.CreatedAt); err != nil {
		return nil, r.handleSQLiteError(operation, err)
	}
	return &p, nil
}

// Website operations

func (r *Repository) CreateWebsite(ctx context.Context, website *sitecontent.Website) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO websites (id, name, about, owner_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		website.ID, website.Name, website.About, website.OwnerID, website.CreatedAt, website.UpdatedAt)
	if err != nil {
		return r.handleSQLiteError("create website", err)
	}
	return nil
}

func (r *Repository) GetWebsite(ctx context.Context, id uuid.UUID) (*sitecontent.Website, error) {
	var w sitecontent.Website
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, about, owner_id, created_at, updated_at FROM websites WHERE id = ?`, id).
		Scan(&w.ID, &w.Name, &w.About, &w.OwnerID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, r.handleSQLiteError("get website", err)
	}
	return &w, nil
}

func (r *Repository) UpdateWebsite(ctx context.Context, website *sitecontent.Website) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE websites SET name = ?, about = ?, updated_at = ? WHERE id = ?`,
		website.Name, website.About, website.UpdatedAt, website.ID)
	if err != nil {
		return r.handleSQLiteError("update website", err)
	}
	if rowsAffected(res) == 0 {
		return sitecontent.ErrNotFound
	}
	return nil
}

// DeleteWebsite relies on ON DELETE CASCADE to remove the children in the same statement.
func (r *Repository) DeleteWebsite(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM websites WHERE id = ?`, id)
	if err != nil {
		return r.handleSQLiteError("delete website", err)
	}
	if rowsAffected(res) == 0 {
		return sitecontent.ErrNotFound
	}
	return nil
}

func (r *Repository) ListWebsitesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*sitecontent.Website, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, about, owner_id, created_at, updated_at FROM websites
		WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, r.handleSQLiteError("list websites", err)
	}
	defer rows.Close()

	result := []*sitecontent.Website{}
	for rows.Next() {
		var w sitecontent.Website
		if err := rows.Scan(&w.ID, &w.Name, &w.About, &w.OwnerID, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, r.handleSQLiteError("list websites", err)
		}
		result = append(result, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handleSQLiteError("list websites", err)
	}
	return result, nil
}

// Child operations

const childColumns = `id, website_id, kind, object_key, width, height, file_name, size_bytes, mime_type,
	title, subtitle, active, sort_order, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanChild(row scanner) (*sitecontent.Child, error) {
	var c sitecontent.Child
	var kind string
	var subtitle sql.NullString
	err := row.Scan(
		&c.ID, &c.WebsiteID, &kind, &c.ObjectKey,
		&c.Width, &c.Height, &c.FileName, &c.SizeBytes, &c.MimeType,
		&c.Title, &subtitle, &c.Active, &c.Order, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Kind = sitecontent.ChildKind(kind)
	if subtitle.Valid {
		c.Subtitle = &subtitle.String
	}
	return &c, nil
}

func (r *Repository) CreateChild(ctx context.Context, child *sitecontent.Child) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO website_children (`+childColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		child.ID, child.WebsiteID, string(child.Kind), child.ObjectKey,
		child.Width, child.Height, child.FileName, child.SizeBytes, child.MimeType,
		child.Title, child.Subtitle, child.Active, child.Order, child.CreatedAt, child.UpdatedAt)
	if err != nil {
		return r.handleSQLiteError("create child", err)
	}
	return nil
}

func (r *Repository) GetChild(ctx context.Context, id uuid.UUID) (*sitecontent.Child, error) {
	child, err := scanChild(r.db.QueryRowContext(ctx,
		`SELECT `+childColumns+` FROM website_children WHERE id = ?`, id))
	if err != nil {
		return nil, r.handleSQLiteError("get child", err)
	}
	return child, nil
}

func (r *Repository) UpdateChild(ctx context.Context, child *sitecontent.Child) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE website_children SET
			object_key = ?, width = ?, height = ?, file_name = ?, size_bytes = ?, mime_type = ?,
			title = ?, subtitle = ?, active = ?, sort_order = ?, updated_at = ?
		WHERE id = ?`,
		child.ObjectKey, child.Width, child.Height, child.FileName, child.SizeBytes, child.MimeType,
		child.Title, child.Subtitle, child.Active, child.Order, child.UpdatedAt, child.ID)
	if err != nil {
		return r.handleSQLiteError("update child", err)
	}
	if rowsAffected(res) == 0 {
		return sitecontent.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteChild(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM website_children WHERE id = ?`, id)
	if err != nil {
		return r.handleSQLiteError("delete child", err)
	}
	if rowsAffected(res) == 0 {
		return sitecontent.ErrNotFound
	}
	return nil
}

func (r *Repository) ListChildren(ctx context.Context, filter sitecontent.ChildFilter) ([]*sitecontent.Child, error) {
	conditions := []string{"website_id = ?"}
	args := []interface{}{filter.WebsiteID}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "(kind <> 'carousel' OR active = 1)")
	}

	query := `SELECT ` + childColumns + ` FROM website_children WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY kind,
			CASE WHEN kind = 'carousel' THEN sort_order END ASC,
			CASE WHEN kind = 'carousel' THEN created_at END ASC,
			CASE WHEN kind <> 'carousel' THEN created_at END DESC,
			id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.handleSQLiteError("list children", err)
	}
	defer rows.Close()

	result := []*sitecontent.Child{}
	for rows.Next() {
		child, err := scanChild(rows)
		if err != nil {
			return nil, r.handleSQLiteError("list children", err)
		}
		result = append(result, child)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handleSQLiteError("list children", err)
	}
	return result, nil
}

func (r *Repository) CountChildren(ctx context.Context, websiteID uuid.UUID, kind sitecontent.ChildKind) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM website_children WHERE website_id = ? AND kind = ?`,
		websiteID, string(kind)).Scan(&count)
	if err != nil {
		return 0, r.handleSQLiteError("count children", err)
	}
	return count, nil
}

func (r *Repository) MaxChildOrder(ctx context.Context, websiteID uuid.UUID, kind sitecontent.ChildKind) (int, error) {
	var maxOrder int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sort_order), 0) FROM website_children WHERE website_id = ? AND kind = ?`,
		websiteID, string(kind)).Scan(&maxOrder)
	if err != nil {
		return 0, r.handleSQLiteError("max child order", err)
	}
	return maxOrder, nil
}

func (r *Repository) SetChildOrder(ctx context.Context, websiteID, childID uuid.UUID, order int, updatedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE website_children SET sort_order = ?, updated_at = ? WHERE id = ? AND website_id = ? AND kind = 'carousel'`,
		order, updatedAt, childID, websiteID)
	if err != nil {
		return false, r.handleSQLiteError("set child order", err)
	}
	return rowsAffected(res) > 0, nil
}

func (r *Repository) ListObjectKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT object_key FROM website_children WHERE object_key <> '' ORDER BY object_key`)
	if err != nil {
		return nil, r.handleSQLiteError("list object keys", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, r.handleSQLiteError("list object keys", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handleSQLiteError("list object keys", err)
	}
	return keys, nil
}

// Activity operations

func (r *Repository) AppendActivity(ctx context.Context, entry *sitecontent.ActivityEntry) error {
	var details sql.NullString
	if len(entry.Details) > 0 {
		details = sql.NullString{String: string(entry.Details), Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_logs (id, user_id, action, details, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.PrincipalID, string(entry.Action), details,
		entry.IPAddress, entry.UserAgent, entry.CreatedAt)
	if err != nil {
		return r.handleSQLiteError("append activity", err)
	}
	return nil
}

func (r *Repository) ListActivity(ctx context.Context, principalID uuid.UUID, limit int) ([]*sitecontent.ActivityEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, action, details, ip_address, user_agent, created_at
		FROM activity_logs WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, principalID, limit)
	if err != nil {
		return nil, r.handleSQLiteError("list activity", err)
	}
	defer rows.Close()

	result := []*sitecontent.ActivityEntry{}
	for rows.Next() {
		var e sitecontent.ActivityEntry
		var action string
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.PrincipalID, &action, &details, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, r.handleSQLiteError("list activity", err)
		}
		e.Action = sitecontent.ActivityAction(action)
		if details.Valid {
			e.Details = []byte(details.String)
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handleSQLiteError("list activity", err)
	}
	return result, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return r.handleSQLiteError("ping", err)
	}
	return nil
}

// Stats returns row counts per table.
func (r *Repository) Stats(ctx context.Context) (map[string]int, error) {
	var users, websites, images, carousel, activity int
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM websites),
			(SELECT COUNT(*) FROM website_children WHERE kind = 'media'),
			(SELECT COUNT(*) FROM website_children WHERE kind = 'carousel'),
			(SELECT COUNT(*) FROM activity_logs)`).
		Scan(&users, &websites, &images, &carousel, &activity)
	if err != nil {
		return nil, r.handleSQLiteError("stats", err)
	}
	return map[string]int{
		"users":          users,
		"websites":       websites,
		"images":         images,
		"carousel_items": carousel,
		"activity_logs":  activity,
	}, nil
}
