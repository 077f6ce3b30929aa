package intake

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepository(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	form := completeForm()
	id, err := repo.Save(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, "REF-1", id)

	form.Patient.DOB = "mutated"
	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "01/02/1980", got.Patient.DOB)

	_, err = repo.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrFormNotFound))

	_, err = repo.Save(ctx, &StartForm{})
	assert.True(t, errors.Is(err, ErrMissingFormID))
	_, err = repo.Save(ctx, nil)
	assert.True(t, errors.Is(err, ErrMissingFormID))
}

func TestPostgresRepository(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithExec(mock)
	ctx := context.Background()
	form := completeForm()
	form.SalesforceID = "SR123"
	form.Priority = PriorityHigh

	mock.ExpectExec("INSERT INTO referral_forms").
		WithArgs("REF-1", "SR123", "new", "high", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	id, err := repo.Save(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, "REF-1", id)

	data, err := json.Marshal(form)
	require.NoError(t, err)
	mock.ExpectQuery("SELECT form FROM referral_forms").
		WithArgs("REF-1").
		WillReturnRows(pgxmock.NewRows([]string{"form"}).AddRow(data))
	got, err := repo.Get(ctx, "REF-1")
	require.NoError(t, err)
	assert.Equal(t, form, got)

	mock.ExpectQuery("SELECT form FROM referral_forms").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	_, err = repo.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrFormNotFound))

	mock.ExpectExec("INSERT INTO referral_forms").
		WithArgs("REF-1", "SR123", "new", "high", pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))
	_, err = repo.Save(ctx, form)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert form")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisRepository(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := NewRedisRepository(client, time.Hour)
	ctx := context.Background()

	_, err = repo.Get(ctx, "REF-1")
	assert.True(t, errors.Is(err, ErrFormNotFound))

	form := completeForm()
	id, err := repo.Save(ctx, form)
	require.NoError(t, err)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, form, got)
	assert.Equal(t, time.Hour, mr.TTL(formKeyPrefix+"REF-1"))

	mr.FastForward(2 * time.Hour)
	_, err = repo.Get(ctx, id)
	assert.True(t, errors.Is(err, ErrFormNotFound))
}
