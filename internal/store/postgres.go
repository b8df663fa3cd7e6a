package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/internal/models"
)

const (
	kindUser      = "user"
	kindDashboard = "dashboard"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS portal_documents (
	kind       TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	body       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS portal_documents_email_idx
	ON portal_documents ((body->>'email')) WHERE kind = 'user';
`

// NewPostgresPool opens a pool and checks the connection.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Migrate creates the document table when it does not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// --- Users ---

type pgUserStore struct {
	pool *pgxpool.Pool
}

func NewPostgresUserStore(pool *pgxpool.Pool) *pgUserStore {
	return &pgUserStore{pool: pool}
}

func scanUsers(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()
	var users []*models.User
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var u models.User
		if err := json.Unmarshal(body, &u); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (s *pgUserStore) ListUsers(ctx context.Context, userType models.UserType) ([]*models.User, error) {
	query := `SELECT body FROM portal_documents WHERE kind = $1 AND ($2 = '' OR body->>'type' = $2) ORDER BY body->>'createdAt'`
	rows, err := s.pool.Query(ctx, query, kindUser, string(userType))
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to list users", err)
	}
	users, err := scanUsers(rows)
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to parse users", err)
	}
	return users, nil
}

func (s *pgUserStore) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, query, kindUser, arg).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NewNotFoundError("user not found")
	}
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to get user", err)
	}
	var u models.User
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to parse user data", err)
	}
	return &u, nil
}

func (s *pgUserStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.getOne(ctx, `SELECT body FROM portal_documents WHERE kind = $1 AND id = $2`, id)
}

func (s *pgUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getOne(ctx, `SELECT body FROM portal_documents WHERE kind = $1 AND body->>'email' = $2 LIMIT 1`, email)
}

func (s *pgUserStore) CreateUser(ctx context.Context, user *models.User) error {
	body, err := json.Marshal(user)
	if err != nil {
		return errs.NewDatabaseError("create", "failed to encode user", err)
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO portal_documents (kind, id, body) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		kindUser, user.ID, body)
	if err != nil {
		return errs.NewDatabaseError("create", "failed to create user", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NewAlreadyExistsError("user already exists")
	}
	return nil
}

func (s *pgUserStore) UpdateUser(ctx context.Context, user *models.User) error {
	body, err := json.Marshal(user)
	if err != nil {
		return errs.NewDatabaseError("update", "failed to encode user", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE portal_documents SET body = $3, updated_at = now() WHERE kind = $1 AND id = $2`,
		kindUser, user.ID, body)
	if err != nil {
		return errs.NewDatabaseError("update", "failed to update user", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NewNotFoundError("user not found")
	}
	return nil
}

func (s *pgUserStore) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM portal_documents WHERE kind = $1 AND id = $2`, kindUser, id)
	if err != nil {
		return errs.NewDatabaseError("delete", "failed to delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NewNotFoundError("user not found")
	}
	return nil
}

// --- Dashboards ---

type pgDashboardStore struct {
	pool *pgxpool.Pool
}

func NewPostgresDashboardStore(pool *pgxpool.Pool) *pgDashboardStore {
	return &pgDashboardStore{pool: pool}
}

func (s *pgDashboardStore) List(ctx context.Context) ([]*models.Dashboard, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, body FROM portal_documents WHERE kind = $1`, kindDashboard)
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to list dashboards", err)
	}
	defer rows.Close()

	var dashboards []*models.Dashboard
	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, errs.NewDatabaseError("read", "failed to scan dashboard", err)
		}
		d, err := decodeDashboard(body)
		if err != nil {
			return nil, errs.NewDatabaseError("read", "failed to decode dashboard "+id, err)
		}
		dashboards = append(dashboards, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to list dashboards", err)
	}
	return dashboards, nil
}

const upsertDashboardSQL = `
INSERT INTO portal_documents (kind, id, body, updated_at) VALUES ($1, $2, $3, now())
ON CONFLICT (kind, id) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`

func (s *pgDashboardStore) Put(ctx context.Context, d *models.Dashboard) error {
	body, err := json.Marshal(d)
	if err != nil {
		return errs.NewDatabaseError("update", "failed to encode dashboard", err)
	}
	if _, err := s.pool.Exec(ctx, upsertDashboardSQL, kindDashboard, d.ID, body); err != nil {
		return errs.NewDatabaseError("update", "failed to write dashboard", err)
	}
	return nil
}

func (s *pgDashboardStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM portal_documents WHERE kind = $1 AND id = $2`, kindDashboard, id); err != nil {
		return errs.NewDatabaseError("delete", "failed to delete dashboard", err)
	}
	return nil
}

// ReplaceAll swaps the stored dashboards for the given set in one transaction.
func (s *pgDashboardStore) ReplaceAll(ctx context.Context, dashboards []*models.Dashboard) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errs.NewDatabaseError("update", "failed to begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM portal_documents WHERE kind = $1`, kindDashboard); err != nil {
		return errs.NewDatabaseError("delete", "failed to clear dashboards", err)
	}
	batch := &pgx.Batch{}
	for _, d := range dashboards {
		body, mErr := json.Marshal(d)
		if mErr != nil {
			err = mErr
			return errs.NewDatabaseError("update", "failed to encode dashboard", mErr)
		}
		batch.Queue(upsertDashboardSQL, kindDashboard, d.ID, body)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return errs.NewDatabaseError("update", "failed to write dashboards", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return errs.NewDatabaseError("update", "failed to commit dashboards", err)
	}
	return nil
}
