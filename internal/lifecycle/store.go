package lifecycle

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"jobmatch-workers/internal/common/errors"
	"jobmatch-workers/internal/common/logger"
	"jobmatch-workers/internal/models"
)

// RecordStore persists application records. SaveRecord uses optimistic
// concurrency: it succeeds only when the stored version matches the
// record's, then bumps it.
type RecordStore interface {
	CreateRecord(ctx context.Context, record *models.ApplicationRecord) error
	LoadRecord(ctx context.Context, studentID, jobID string) (*models.ApplicationRecord, error)
	LoadByWorkID(ctx context.Context, workID string) (*models.ApplicationRecord, error)
	SaveRecord(ctx context.Context, record *models.ApplicationRecord) error
	ListStalePending(ctx context.Context, cutoff time.Time) ([]models.ApplicationRecord, error)
	ListDueRetries(ctx context.Context, now time.Time) ([]models.ApplicationRecord, error)
}

// PostgresRecordStore is the production RecordStore on the
// application_records table. Outreach history lives in a JSONB column.
type PostgresRecordStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresRecordStore(db *sql.DB, log logger.Logger) *PostgresRecordStore {
	return &PostgresRecordStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "record-store"}),
	}
}

const recordColumns = `
	id, student_id, job_id, state, created_at, transitioned_at, version,
	attempt_count, submission_work_id, next_retry_at, last_error, outreach_attempts`

// CreateRecord inserts a fresh record. A unique violation on the
// (student, job) pair maps to ALREADY_EXISTS.
func (s *PostgresRecordStore) CreateRecord(ctx context.Context, record *models.ApplicationRecord) error {
	outreachJSON, err := json.Marshal(record.OutreachAttempts)
	if err != nil {
		return errors.NewQueryFailedError("encode outreach history", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO application_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		record.ID, record.StudentID, record.JobID, string(record.State),
		record.CreatedAt, record.TransitionedAt, record.Version,
		record.AttemptCount, nullString(record.SubmissionWorkID),
		nullTime(record.NextRetryAt), nullString(record.LastError), outreachJSON,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errors.NewAlreadyExistsError(record.StudentID, record.JobID)
		}
		return errors.NewQueryFailedError("insert record", err)
	}
	return nil
}

// LoadRecord returns the record for the pair, or NOT_FOUND.
func (s *PostgresRecordStore) LoadRecord(ctx context.Context, studentID, jobID string) (*models.ApplicationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+recordColumns+`
		FROM application_records
		WHERE student_id = $1 AND job_id = $2`, studentID, jobID)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("application record", studentID+"/"+jobID)
	}
	if err != nil {
		return nil, errors.NewQueryFailedError("load record", err)
	}
	return record, nil
}

// LoadByWorkID resolves a record from an in-flight submission work id.
func (s *PostgresRecordStore) LoadByWorkID(ctx context.Context, workID string) (*models.ApplicationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+recordColumns+`
		FROM application_records
		WHERE submission_work_id = $1`, workID)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("application record", "workId "+workID)
	}
	if err != nil {
		return nil, errors.NewQueryFailedError("load record by work id", err)
	}
	return record, nil
}

// SaveRecord persists the record if its version is still current, then bumps
// the version both in the row and on the passed record. A stale version
// yields VERSION_CONFLICT.
func (s *PostgresRecordStore) SaveRecord(ctx context.Context, record *models.ApplicationRecord) error {
	outreachJSON, err := json.Marshal(record.OutreachAttempts)
	if err != nil {
		return errors.NewQueryFailedError("encode outreach history", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE application_records
		SET state = $1, transitioned_at = $2, attempt_count = $3,
		    submission_work_id = $4, next_retry_at = $5, last_error = $6,
		    outreach_attempts = $7, version = version + 1
		WHERE id = $8 AND version = $9`,
		string(record.State), record.TransitionedAt, record.AttemptCount,
		nullString(record.SubmissionWorkID), nullTime(record.NextRetryAt),
		nullString(record.LastError), outreachJSON,
		record.ID, record.Version,
	)
	if err != nil {
		return errors.NewQueryFailedError("save record", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.NewQueryFailedError("save record", err)
	}
	if affected == 0 {
		return errors.NewVersionConflictError(record.StudentID, record.JobID, record.Version)
	}

	record.Version++
	return nil
}

// ListStalePending returns PENDING_SUBMISSION records whose work request has
// been in flight since before the cutoff with no callback.
func (s *PostgresRecordStore) ListStalePending(ctx context.Context, cutoff time.Time) ([]models.ApplicationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+recordColumns+`
		FROM application_records
		WHERE state = $1 AND submission_work_id IS NOT NULL AND transitioned_at < $2`,
		string(models.StatePendingSubmission), cutoff,
	)
	if err != nil {
		return nil, errors.NewQueryFailedError("list stale pending", err)
	}
	return collectRecords(rows)
}

// ListDueRetries returns PENDING_SUBMISSION records waiting for a backoff
// delay that has now elapsed (no work request in flight).
func (s *PostgresRecordStore) ListDueRetries(ctx context.Context, now time.Time) ([]models.ApplicationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+recordColumns+`
		FROM application_records
		WHERE state = $1 AND submission_work_id IS NULL AND next_retry_at <= $2`,
		string(models.StatePendingSubmission), now,
	)
	if err != nil {
		return nil, errors.NewQueryFailedError("list due retries", err)
	}
	return collectRecords(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.ApplicationRecord, error) {
	var (
		record       models.ApplicationRecord
		state        string
		workID       sql.NullString
		nextRetryAt  sql.NullTime
		lastError    sql.NullString
		outreachJSON []byte
	)

	err := row.Scan(
		&record.ID, &record.StudentID, &record.JobID, &state,
		&record.CreatedAt, &record.TransitionedAt, &record.Version,
		&record.AttemptCount, &workID, &nextRetryAt, &lastError, &outreachJSON,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := models.ParseApplicationState(state)
	if err != nil {
		return nil, err
	}
	record.State = parsed

	record.SubmissionWorkID = workID.String
	record.LastError = lastError.String
	if nextRetryAt.Valid {
		t := nextRetryAt.Time
		record.NextRetryAt = &t
	}
	if len(outreachJSON) > 0 {
		if err := json.Unmarshal(outreachJSON, &record.OutreachAttempts); err != nil {
			return nil, err
		}
	}

	return &record, nil
}

func collectRecords(rows *sql.Rows) ([]models.ApplicationRecord, error) {
	defer rows.Close()

	var records []models.ApplicationRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, errors.NewQueryFailedError("scan record", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryFailedError("iterate records", err)
	}
	return records, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
