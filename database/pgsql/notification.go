package pgsql

import (
	"database/sql"
	"time"

	"github.com/Cobb-ukr/ai-test-agent/common/commonerr"
	"github.com/Cobb-ukr/ai-test-agent/database"
)

// InsertRunNotification creates a pending delivery for a finished run.
func (pgSQL *pgSQL) InsertRunNotification(notification database.RunNotification) error {
	if notification.Name == "" || notification.RunID == 0 {
		return commonerr.NewBadRequestError("could not insert a notification which has an empty name or no run")
	}

	defer observeQueryTime("InsertRunNotification", "all", time.Now())

	_, err := pgSQL.Exec(insertNotification, notification.Name, notification.RunID)
	if err != nil {
		if isErrUniqueViolation(err) {
			return commonerr.NewBadRequestError("notification name is already in use")
		}
		return handleError("insertNotification", err)
	}

	return nil
}

// FindRunNotification retrieves a notification by name.
func (pgSQL *pgSQL) FindRunNotification(name string) (database.RunNotification, error) {
	defer observeQueryTime("FindRunNotification", "all", time.Now())

	notification, err := scanNotification(pgSQL.QueryRow(searchNotification, name))
	if err != nil {
		return notification, handleError("searchNotification", err)
	}

	run, err := pgSQL.FindRun(notification.RunID)
	if err != nil {
		return notification, err
	}
	notification.Run = &run

	return notification, nil
}

// GetAvailableNotification returns the oldest notification that was not
// delivered since the cutoff and is not deleted. The attached run is
// hydrated so senders can build their payload.
func (pgSQL *pgSQL) GetAvailableNotification(notifiedBefore time.Time) (database.RunNotification, error) {
	defer observeQueryTime("GetAvailableNotification", "all", time.Now())

	notification, err := scanNotification(pgSQL.QueryRow(searchNotificationAvailable, notifiedBefore))
	if err != nil {
		return notification, handleError("searchNotificationAvailable", err)
	}

	run, err := pgSQL.FindRun(notification.RunID)
	if err != nil {
		return notification, err
	}
	notification.Run = &run

	return notification, nil
}

func scanNotification(s scanner) (database.RunNotification, error) {
	var (
		notification database.RunNotification
		notified     sql.NullTime
		deleted      sql.NullTime
	)

	err := s.Scan(
		&notification.ID,
		&notification.Name,
		&notification.RunID,
		&notification.Created,
		&notified,
		&deleted,
	)
	if err != nil {
		return notification, err
	}

	if notified.Valid {
		notification.Notified = notified.Time
	}
	if deleted.Valid {
		notification.Deleted = deleted.Time
	}

	return notification, nil
}

// SetNotificationNotified marks a notification as delivered.
func (pgSQL *pgSQL) SetNotificationNotified(name string) error {
	defer observeQueryTime("SetNotificationNotified", "all", time.Now())

	if _, err := pgSQL.Exec(updatedNotificationNotified, name); err != nil {
		return handleError("updatedNotificationNotified", err)
	}
	return nil
}

// DeleteNotification flags a notification as deleted.
func (pgSQL *pgSQL) DeleteNotification(name string) error {
	defer observeQueryTime("DeleteNotification", "all", time.Now())

	result, err := pgSQL.Exec(removeNotification, name)
	if err != nil {
		return handleError("removeNotification", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return handleError("removeNotification.RowsAffected()", err)
	}

	if affected <= 0 {
		return commonerr.ErrNotFound
	}

	return nil
}
