package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmatch-workers/internal/common/errors"
	"jobmatch-workers/internal/common/logger"
	"jobmatch-workers/internal/models"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestGetProfileFromDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "skills", "preferred_locations", "salary_floor", "resume_ref"}).
		AddRow("student-1", `["python","sql"]`, `["Berlin","Munich"]`, 50000.0, "resumes/student-1.pdf")
	mock.ExpectQuery("SELECT id, skills, preferred_locations").
		WithArgs("student-1").
		WillReturnRows(rows)

	store := NewPostgresStore(db, nil, time.Minute, logger.NewTestLogger(t))

	profile, err := store.GetProfile(context.Background(), "student-1")
	require.NoError(t, err)

	assert.Equal(t, "student-1", profile.ID)
	assert.Equal(t, []string{"python", "sql"}, profile.Skills)
	assert.Equal(t, []string{"Berlin", "Munich"}, profile.PreferredLocations)
	assert.Equal(t, 50000.0, profile.SalaryFloor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfileNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, skills, preferred_locations").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "skills", "preferred_locations", "salary_floor", "resume_ref"}))

	store := NewPostgresStore(db, nil, time.Minute, logger.NewTestLogger(t))

	_, err = store.GetProfile(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}

func TestGetProfileCacheHitSkipsDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rdb := newTestRedis(t)
	cached := models.StudentProfile{
		ID:                 "student-2",
		Skills:             []string{"go"},
		PreferredLocations: []string{"Hamburg"},
		SalaryFloor:        40000,
	}
	raw, err := json.Marshal(cached)
	require.NoError(t, err)
	require.NoError(t, rdb.Set(context.Background(), "profile:student-2", raw, time.Minute).Err())

	store := NewPostgresStore(db, rdb, time.Minute, logger.NewTestLogger(t))

	profile, err := store.GetProfile(context.Background(), "student-2")
	require.NoError(t, err)
	assert.Equal(t, cached, *profile)

	// No database expectations were registered, so any query would fail.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfilePopulatesCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "skills", "preferred_locations", "salary_floor", "resume_ref"}).
		AddRow("student-3", `["python"]`, `["Berlin"]`, 0.0, "")
	mock.ExpectQuery("SELECT id, skills, preferred_locations").
		WithArgs("student-3").
		WillReturnRows(rows)

	rdb := newTestRedis(t)
	store := NewPostgresStore(db, rdb, time.Minute, logger.NewTestLogger(t))

	_, err = store.GetProfile(context.Background(), "student-3")
	require.NoError(t, err)

	raw, err := rdb.Get(context.Background(), "profile:student-3").Result()
	require.NoError(t, err)

	var cached models.StudentProfile
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, "student-3", cached.ID)
}

func TestGetProfileCacheErrorFallsThroughToDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "skills", "preferred_locations", "salary_floor", "resume_ref"}).
		AddRow("student-4", `["go"]`, `["Berlin"]`, 45000.0, "")
	mock.ExpectQuery("SELECT id, skills, preferred_locations").
		WithArgs("student-4").
		WillReturnRows(rows)

	rdb, rmock := redismock.NewClientMock()
	rmock.ExpectGet("profile:student-4").SetErr(fmt.Errorf("connection refused"))

	store := NewPostgresStore(db, rdb, time.Minute, logger.NewTestLogger(t))

	profile, err := store.GetProfile(context.Background(), "student-4")
	require.NoError(t, err, "cache errors are advisory")
	assert.Equal(t, "student-4", profile.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfileCorruptCacheEntryDropped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "skills", "preferred_locations", "salary_floor", "resume_ref"}).
		AddRow("student-5", `["go"]`, `["Berlin"]`, 0.0, "")
	mock.ExpectQuery("SELECT id, skills, preferred_locations").
		WithArgs("student-5").
		WillReturnRows(rows)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, mr.Set("profile:student-5", "{not json"))

	store := NewPostgresStore(db, rdb, time.Minute, logger.NewTestLogger(t))

	profile, err := store.GetProfile(context.Background(), "student-5")
	require.NoError(t, err)
	assert.Equal(t, "student-5", profile.ID)

	// The corrupt entry was replaced with the fresh snapshot.
	raw, err := mr.Get("profile:student-5")
	require.NoError(t, err)
	var cached models.StudentProfile
	assert.NoError(t, json.Unmarshal([]byte(raw), &cached))
}
