package pgsql

// schema is executed on every open; statements are idempotent so an existing
// deployment is left untouched.
const schema = `
	CREATE TABLE IF NOT EXISTS submission (
		id SERIAL PRIMARY KEY,
		language TEXT NOT NULL,
		target_function TEXT NOT NULL,
		source TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS run (
		id SERIAL PRIMARY KEY,
		submission_id INT NOT NULL REFERENCES submission (id),
		status TEXT NOT NULL,
		generated_tests TEXT,
		output TEXT,
		summary TEXT,
		exit_code INT,
		failure_reason TEXT,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
		finished_at TIMESTAMP WITH TIME ZONE
	);
	CREATE INDEX IF NOT EXISTS run_submission_id_idx ON run (submission_id);

	CREATE TABLE IF NOT EXISTS report (
		id SERIAL PRIMARY KEY,
		run_id INT NOT NULL REFERENCES run (id),
		filename TEXT NOT NULL,
		path TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS run_notification (
		id SERIAL PRIMARY KEY,
		name VARCHAR(64) NOT NULL UNIQUE,
		run_id INT NOT NULL REFERENCES run (id),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
		notified_at TIMESTAMP WITH TIME ZONE,
		deleted_at TIMESTAMP WITH TIME ZONE
	);

	CREATE TABLE IF NOT EXISTS keyvalue (
		id SERIAL PRIMARY KEY,
		key VARCHAR(128) NOT NULL UNIQUE,
		value TEXT
	);`

const (
	insertSubmission = `
		INSERT INTO submission (language, target_function, source)
		VALUES ($1, $2, $3)
		RETURNING id`

	searchSubmission = `
		SELECT id, language, target_function, source, created_at
		FROM submission WHERE id = $1`

	insertRun = `
		INSERT INTO run (submission_id, status)
		VALUES ($1, $2)
		RETURNING id`

	updateRun = `
		UPDATE run SET
			status = $2,
			generated_tests = $3,
			output = $4,
			summary = $5,
			exit_code = $6,
			failure_reason = $7,
			finished_at = $8
		WHERE id = $1`

	searchRun = `
		SELECT id, submission_id, status, generated_tests, output, summary,
		       exit_code, failure_reason, created_at, finished_at
		FROM run WHERE id = $1`

	listRuns = `
		SELECT id, submission_id, status, generated_tests, output, summary,
		       exit_code, failure_reason, created_at, finished_at
		FROM run WHERE submission_id = $1
		ORDER BY created_at DESC, id DESC`

	insertReport = `
		INSERT INTO report (run_id, filename, path)
		VALUES ($1, $2, $3)
		RETURNING id`

	searchReport = `
		SELECT id, run_id, filename, path, created_at
		FROM report WHERE id = $1`

	insertNotification = `
		INSERT INTO run_notification (name, run_id)
		VALUES ($1, $2)`

	searchNotification = `
		SELECT id, name, run_id, created_at, notified_at, deleted_at
		FROM run_notification
		WHERE name = $1`

	searchNotificationAvailable = `
		SELECT id, name, run_id, created_at, notified_at, deleted_at
		FROM run_notification
		WHERE (notified_at IS NULL OR notified_at < $1)
		  AND deleted_at IS NULL
		ORDER BY created_at ASC
		LIMIT 1`

	updatedNotificationNotified = `
		UPDATE run_notification SET notified_at = CURRENT_TIMESTAMP
		WHERE name = $1`

	removeNotification = `
		UPDATE run_notification SET deleted_at = CURRENT_TIMESTAMP
		WHERE name = $1 AND deleted_at IS NULL`

	updateKeyValue = `UPDATE keyvalue SET value = $1 WHERE key = $2`
	insertKeyValue = `INSERT INTO keyvalue (key, value) VALUES ($1, $2)`
	searchKeyValue = `SELECT value FROM keyvalue WHERE key = $1`
)
