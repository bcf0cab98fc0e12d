package pgsql

import (
	"strconv"
	"time"

	"github.com/Cobb-ukr/ai-test-agent/common/commonerr"
	"github.com/Cobb-ukr/ai-test-agent/database"
)

// InsertSubmission stores a submission and returns its identifier.
func (pgSQL *pgSQL) InsertSubmission(submission database.Submission) (int, error) {
	if submission.Language == "" || submission.Function == "" || submission.Source == "" {
		return 0, commonerr.NewBadRequestError("could not insert a submission which has an empty language, function or source")
	}

	defer observeQueryTime("InsertSubmission", "all", time.Now())

	var id int
	err := pgSQL.QueryRow(insertSubmission, submission.Language, submission.Function, submission.Source).Scan(&id)
	if err != nil {
		return 0, handleError("insertSubmission", err)
	}

	return id, nil
}

// FindSubmission retrieves a submission, optionally with its runs attached.
func (pgSQL *pgSQL) FindSubmission(id int, withRuns bool) (database.Submission, error) {
	defer observeQueryTime("FindSubmission", "all", time.Now())

	submission, err := pgSQL.findSubmission(id)
	if err != nil {
		return submission, err
	}

	if withRuns {
		submission.Runs, err = pgSQL.ListRuns(id)
		if err != nil {
			return submission, err
		}
	}

	return submission, nil
}

func (pgSQL *pgSQL) findSubmission(id int) (database.Submission, error) {
	if pgSQL.cache != nil {
		if s, found := pgSQL.cache.Get(cacheSubmissionKey(id)); found {
			return s.(database.Submission), nil
		}
	}

	var submission database.Submission
	err := pgSQL.QueryRow(searchSubmission, id).Scan(
		&submission.ID,
		&submission.Language,
		&submission.Function,
		&submission.Source,
		&submission.Created,
	)
	if err != nil {
		return submission, handleError("searchSubmission", err)
	}

	// Submissions are immutable once inserted, which makes them safe to cache.
	if pgSQL.cache != nil {
		pgSQL.cache.Add(cacheSubmissionKey(id), submission)
	}

	return submission, nil
}

func cacheSubmissionKey(id int) string {
	return "submission:" + strconv.Itoa(id)
}
