package pgsql

import (
	"database/sql"
	"time"

	"github.com/guregu/null/zero"

	"github.com/Cobb-ukr/ai-test-agent/common/commonerr"
	"github.com/Cobb-ukr/ai-test-agent/database"
)

// InsertRun creates a new run row and returns its identifier.
func (pgSQL *pgSQL) InsertRun(run database.Run) (int, error) {
	if run.SubmissionID == 0 {
		return 0, commonerr.NewBadRequestError("could not insert a run without a submission")
	}
	if run.Status == "" {
		run.Status = database.PendingStatus
	}

	defer observeQueryTime("InsertRun", "all", time.Now())

	var id int
	err := pgSQL.QueryRow(insertRun, run.SubmissionID, run.Status).Scan(&id)
	if err != nil {
		return 0, handleError("insertRun", err)
	}

	return id, nil
}

// UpdateRun replaces the mutable fields of a run.
func (pgSQL *pgSQL) UpdateRun(run database.Run) error {
	if run.ID == 0 {
		return commonerr.NewBadRequestError("could not update a run which has no ID")
	}

	defer observeQueryTime("UpdateRun", "all", time.Now())

	var finished interface{}
	if !run.Finished.IsZero() {
		finished = run.Finished
	}

	r, err := pgSQL.Exec(updateRun,
		run.ID,
		run.Status,
		zero.StringFrom(run.GeneratedTests),
		zero.StringFrom(run.Output),
		zero.StringFrom(run.Summary),
		run.ExitCode,
		zero.StringFrom(run.FailureReason),
		finished,
	)
	if err != nil {
		return handleError("updateRun", err)
	}

	if n, _ := r.RowsAffected(); n == 0 {
		return commonerr.ErrNotFound
	}

	return nil
}

// FindRun retrieves a single run.
func (pgSQL *pgSQL) FindRun(id int) (database.Run, error) {
	defer observeQueryTime("FindRun", "all", time.Now())

	run, err := scanRun(pgSQL.QueryRow(searchRun, id))
	if err != nil {
		return run, handleError("searchRun", err)
	}
	return run, nil
}

// ListRuns returns all runs for a submission, most recent first.
func (pgSQL *pgSQL) ListRuns(submissionID int) (runs []database.Run, err error) {
	defer observeQueryTime("ListRuns", "all", time.Now())

	rows, err := pgSQL.Query(listRuns, submissionID)
	if err != nil {
		return runs, handleError("listRuns", err)
	}
	defer rows.Close()

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return runs, handleError("listRuns.Scan()", err)
		}
		runs = append(runs, run)
	}

	if err = rows.Err(); err != nil {
		return runs, handleError("listRuns.Rows()", err)
	}

	return runs, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (database.Run, error) {
	var (
		run           database.Run
		generated     zero.String
		output        zero.String
		summary       zero.String
		exitCode      zero.Int
		failureReason zero.String
		finished      sql.NullTime
	)

	err := s.Scan(
		&run.ID,
		&run.SubmissionID,
		&run.Status,
		&generated,
		&output,
		&summary,
		&exitCode,
		&failureReason,
		&run.Created,
		&finished,
	)
	if err != nil {
		return run, err
	}

	run.GeneratedTests = generated.String
	run.Output = output.String
	run.Summary = summary.String
	run.ExitCode = int(exitCode.Int64)
	run.FailureReason = failureReason.String
	if finished.Valid {
		run.Finished = finished.Time
	}

	return run, nil
}
