package intake

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores forms as JSONB rows in referral_forms.
type PostgresRepository struct {
	db rowQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("intake: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithExec(db rowQuerier) *PostgresRepository {
	if db == nil {
		panic("intake: exec required")
	}
	return &PostgresRepository{db: db}
}

// Save upserts the form keyed by its id.
func (r *PostgresRepository) Save(ctx context.Context, form *StartForm) (string, error) {
	id, data, err := encodeForm(form)
	if err != nil {
		return "", err
	}
	query := `
		INSERT INTO referral_forms (id, salesforce_id, status, priority, form)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			salesforce_id = EXCLUDED.salesforce_id,
			status = EXCLUDED.status,
			priority = EXCLUDED.priority,
			form = EXCLUDED.form,
			updated_at = now()
	`
	if _, err := r.db.Exec(ctx, query, id, form.SalesforceID, string(form.Status), string(form.Priority), data); err != nil {
		return "", fmt.Errorf("intake: upsert form: %w", err)
	}
	return id, nil
}

// Get loads a form by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*StartForm, error) {
	var data []byte
	if err := r.db.QueryRow(ctx, `SELECT form FROM referral_forms WHERE id = $1`, id).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFormNotFound
		}
		return nil, fmt.Errorf("intake: select form: %w", err)
	}
	return decodeForm(data)
}
