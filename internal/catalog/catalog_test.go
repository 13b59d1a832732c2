package catalog

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmatch-workers/internal/common/errors"
	"jobmatch-workers/internal/common/logger"
)

func postingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "company", "required_skills", "location",
		"salary_min", "salary_max", "hr_name", "hr_email",
	})
}

func TestGetPosting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM job_postings").
		WithArgs("job-1").
		WillReturnRows(postingRows().
			AddRow("job-1", "Backend Engineer", "Acme", `["python","sql"]`, "Berlin",
				45000.0, 60000.0, "Dana Recruiter", "dana@acme.example"))

	cat := NewPostgresCatalog(db, logger.NewTestLogger(t))

	posting, err := cat.GetPosting(context.Background(), "job-1")
	require.NoError(t, err)

	assert.Equal(t, "Backend Engineer", posting.Title)
	assert.Equal(t, []string{"python", "sql"}, posting.RequiredSkills)
	require.NotNil(t, posting.HRContact)
	assert.Equal(t, "dana@acme.example", posting.HRContact.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPostingNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM job_postings").
		WithArgs("missing").
		WillReturnRows(postingRows())

	cat := NewPostgresCatalog(db, logger.NewTestLogger(t))

	_, err = cat.GetPosting(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}

func TestListPostings(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM job_postings").
		WithArgs("engineer", "Berlin", 10).
		WillReturnRows(postingRows().
			AddRow("job-1", "Backend Engineer", "Acme", `["python"]`, "Berlin",
				45000.0, 60000.0, nil, nil).
			AddRow("job-2", "Data Engineer", "Globex", `["sql"]`, "Berlin",
				50000.0, 70000.0, "Rex", "rex@globex.example"))

	cat := NewPostgresCatalog(db, logger.NewTestLogger(t))

	postings, err := cat.ListPostings(context.Background(), Filter{Query: "engineer", Location: "Berlin", Limit: 10})
	require.NoError(t, err)
	require.Len(t, postings, 2)

	assert.Nil(t, postings[0].HRContact)
	require.NotNil(t, postings[1].HRContact)
	assert.Equal(t, "rex@globex.example", postings[1].HRContact.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPostingsAppliesDefaultLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM job_postings").
		WithArgs("", "", defaultLimit).
		WillReturnRows(postingRows())

	cat := NewPostgresCatalog(db, logger.NewTestLogger(t))

	postings, err := cat.ListPostings(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, postings)
	assert.NoError(t, mock.ExpectationsWereMet())
}
