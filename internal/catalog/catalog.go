// Package catalog provides read access to job postings, from PostgreSQL for
// plain listings and from the Elasticsearch posting index for text search.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"

	"jobmatch-workers/internal/common/errors"
	"jobmatch-workers/internal/common/logger"
	"jobmatch-workers/internal/models"
)

// Filter narrows a posting listing or search.
type Filter struct {
	Query    string   // free-text query; used by Search, ILIKE by ListPostings
	Location string   // exact location match
	Skills   []string // postings requiring any of these skills
	Limit    int      // 0 means the default limit
}

const defaultLimit = 100

// Catalog lists postings eligible for ranking.
type Catalog interface {
	ListPostings(ctx context.Context, filter Filter) ([]models.JobPosting, error)
	GetPosting(ctx context.Context, jobID string) (*models.JobPosting, error)
}

// PostgresCatalog reads postings from the job_postings table.
type PostgresCatalog struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresCatalog(db *sql.DB, log logger.Logger) *PostgresCatalog {
	return &PostgresCatalog{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "posting-catalog"}),
	}
}

const postingColumns = `
	id, title, company, required_skills, location,
	salary_min, salary_max, hr_name, hr_email`

// GetPosting returns one posting by id, or NOT_FOUND.
func (c *PostgresCatalog) GetPosting(ctx context.Context, jobID string) (*models.JobPosting, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT`+postingColumns+`
		FROM job_postings
		WHERE id = $1`, jobID)

	posting, err := scanPosting(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("job posting", jobID)
	}
	if err != nil {
		return nil, errors.NewQueryFailedError("get posting", err)
	}
	return posting, nil
}

// ListPostings returns postings matching the filter, newest first.
func (c *PostgresCatalog) ListPostings(ctx context.Context, filter Filter) ([]models.JobPosting, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	query := `
		SELECT` + postingColumns + `
		FROM job_postings
		WHERE ($1 = '' OR title ILIKE '%' || $1 || '%' OR company ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR location = $2)
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := c.db.QueryContext(ctx, query, filter.Query, filter.Location, limit)
	if err != nil {
		return nil, errors.NewQueryFailedError("list postings", err)
	}
	defer rows.Close()

	var postings []models.JobPosting
	for rows.Next() {
		posting, err := scanPosting(rows)
		if err != nil {
			return nil, errors.NewQueryFailedError("scan posting", err)
		}
		postings = append(postings, *posting)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryFailedError("iterate postings", err)
	}

	return postings, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPosting(row rowScanner) (*models.JobPosting, error) {
	var (
		posting    models.JobPosting
		skillsJSON []byte
		hrName     sql.NullString
		hrEmail    sql.NullString
	)

	err := row.Scan(
		&posting.ID, &posting.Title, &posting.Company, &skillsJSON, &posting.Location,
		&posting.SalaryBand.Min, &posting.SalaryBand.Max, &hrName, &hrEmail,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeSkills(skillsJSON, &posting.RequiredSkills); err != nil {
		return nil, err
	}

	if hrEmail.Valid && hrEmail.String != "" {
		posting.HRContact = &models.HRContact{
			Name:  hrName.String,
			Email: hrEmail.String,
		}
	}

	return &posting, nil
}

func decodeSkills(raw []byte, out *[]string) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
