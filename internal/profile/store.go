// Package profile loads student profile snapshots for scoring and ranking.
package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"jobmatch-workers/internal/common/errors"
	"jobmatch-workers/internal/common/logger"
	"jobmatch-workers/internal/models"
)

// Store resolves student profiles by id.
type Store interface {
	GetProfile(ctx context.Context, studentID string) (*models.StudentProfile, error)
}

// PostgresStore reads profiles from PostgreSQL with a redis cache-aside
// snapshot. The cache is advisory: every miss or cache error falls through
// to the database.
type PostgresStore struct {
	db       *sql.DB
	cache    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

// NewPostgresStore creates the store. cache may be nil to disable caching.
func NewPostgresStore(db *sql.DB, cache *redis.Client, cacheTTL time.Duration, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:       db,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "profile-store"}),
	}
}

func cacheKey(studentID string) string {
	return "profile:" + studentID
}

// GetProfile returns the profile for studentID, or NOT_FOUND.
func (s *PostgresStore) GetProfile(ctx context.Context, studentID string) (*models.StudentProfile, error) {
	if cached := s.fromCache(ctx, studentID); cached != nil {
		return cached, nil
	}

	var (
		profile       models.StudentProfile
		skillsJSON    []byte
		locationsJSON []byte
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, skills, preferred_locations, salary_floor, COALESCE(resume_ref, '')
		FROM student_profiles
		WHERE id = $1`, studentID).Scan(
		&profile.ID, &skillsJSON, &locationsJSON, &profile.SalaryFloor, &profile.ResumeRef,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("student profile", studentID)
	}
	if err != nil {
		return nil, errors.NewQueryFailedError("get profile", err)
	}

	if err := json.Unmarshal(skillsJSON, &profile.Skills); err != nil {
		return nil, errors.NewQueryFailedError("decode profile skills", err)
	}
	if err := json.Unmarshal(locationsJSON, &profile.PreferredLocations); err != nil {
		return nil, errors.NewQueryFailedError("decode profile locations", err)
	}

	s.toCache(ctx, &profile)
	return &profile, nil
}

func (s *PostgresStore) fromCache(ctx context.Context, studentID string) *models.StudentProfile {
	if s.cache == nil {
		return nil
	}

	raw, err := s.cache.Get(ctx, cacheKey(studentID)).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("profile cache read failed", map[string]interface{}{
				"studentId": studentID,
				"error":     err.Error(),
			})
		}
		return nil
	}

	var profile models.StudentProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		s.logger.Warn("profile cache entry corrupt, dropping", map[string]interface{}{
			"studentId": studentID,
		})
		s.cache.Del(ctx, cacheKey(studentID))
		return nil
	}
	return &profile
}

func (s *PostgresStore) toCache(ctx context.Context, profile *models.StudentProfile) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(profile.ID), raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("profile cache write failed", map[string]interface{}{
			"studentId": profile.ID,
			"error":     err.Error(),
		})
	}
}
