package pgsql

import (
	"time"

	"github.com/Cobb-ukr/ai-test-agent/common/commonerr"
	"github.com/Cobb-ukr/ai-test-agent/database"
)

// InsertReport records a rendered report artifact.
func (pgSQL *pgSQL) InsertReport(report database.Report) (int, error) {
	if report.RunID == 0 || report.Filename == "" || report.Path == "" {
		return 0, commonerr.NewBadRequestError("could not insert an incomplete report")
	}

	defer observeQueryTime("InsertReport", "all", time.Now())

	var id int
	err := pgSQL.QueryRow(insertReport, report.RunID, report.Filename, report.Path).Scan(&id)
	if err != nil {
		return 0, handleError("insertReport", err)
	}

	return id, nil
}

// FindReport retrieves a report artifact row.
func (pgSQL *pgSQL) FindReport(id int) (database.Report, error) {
	defer observeQueryTime("FindReport", "all", time.Now())

	var report database.Report
	err := pgSQL.QueryRow(searchReport, id).Scan(
		&report.ID,
		&report.RunID,
		&report.Filename,
		&report.Path,
		&report.Created,
	)
	if err != nil {
		return report, handleError("searchReport", err)
	}

	return report, nil
}
