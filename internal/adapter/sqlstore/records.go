package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"timecard/internal/domain"
)

const recordColumns = `id, user_id, domain_id, category_id, title_id, timein, timeout,
external_link, notes, jira_issue_key, jira_worklog_id, jira_synced, jira_sync_error, last_synced_at`

func (s *Store) CreateRecord(ctx context.Context, r *domain.TimeRecord) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO time_records
(user_id, domain_id, category_id, title_id, timein, timeout, external_link, notes, jira_issue_key, jira_synced)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.DomainID, r.CategoryID, r.TitleID, r.TimeIn.UTC(), nullTime(r.TimeOut),
		nullString(r.ExternalLink), nullString(r.Notes), nullString(r.JiraIssueKey), false)
	if err != nil {
		return err
	}
	r.ID, err = res.LastInsertId()
	return err
}

func (s *Store) RecordByID(ctx context.Context, userID, id int64) (domain.TimeRecord, error) {
	return scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM time_records WHERE id = ? AND user_id = ?`, id, userID))
}

// ListRecords returns the user's records ordered by timein. from is
// inclusive and to exclusive.
func (s *Store) ListRecords(ctx context.Context, userID int64, from, to *time.Time) ([]domain.TimeRecord, error) {
	q := `SELECT ` + recordColumns + ` FROM time_records WHERE user_id = ?`
	args := []interface{}{userID}
	if from != nil {
		q += ` AND timein >= ?`
		args = append(args, from.UTC())
	}
	if to != nil {
		q += ` AND timein < ?`
		args = append(args, to.UTC())
	}
	q += ` ORDER BY timein, id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.TimeRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRecord writes the user-editable fields. Sync state is left alone.
func (s *Store) UpdateRecord(ctx context.Context, r domain.TimeRecord) error {
	res, err := s.db.ExecContext(ctx, `UPDATE time_records SET
domain_id = ?, category_id = ?, title_id = ?, timein = ?, timeout = ?,
external_link = ?, notes = ?, jira_issue_key = ?
WHERE id = ? AND user_id = ?`,
		r.DomainID, r.CategoryID, r.TitleID, r.TimeIn.UTC(), nullTime(r.TimeOut),
		nullString(r.ExternalLink), nullString(r.Notes), nullString(r.JiraIssueKey),
		r.ID, r.UserID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// UpdateSyncState writes only the Jira sync columns.
func (s *Store) UpdateSyncState(ctx context.Context, r domain.TimeRecord) error {
	res, err := s.db.ExecContext(ctx, `UPDATE time_records SET
jira_worklog_id = ?, jira_synced = ?, jira_sync_error = ?, last_synced_at = ?
WHERE id = ? AND user_id = ?`,
		nullString(r.JiraWorklogID), r.JiraSynced, nullString(r.JiraSyncError), nullTime(r.LastSyncedAt),
		r.ID, r.UserID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteRecord removes a record together with its sync logs.
func (s *Store) DeleteRecord(ctx context.Context, userID, id int64) (err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM time_records WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if err = requireAffected(res); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM jira_sync_logs WHERE time_record_id = ?`, id); err != nil {
		return fmt.Errorf("delete sync logs: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("time record deleted", slog.Int64("id", id))
	return nil
}

func scanRecord(row rowScanner) (domain.TimeRecord, error) {
	var (
		r                                  domain.TimeRecord
		timeout, lastSynced                sql.NullTime
		link, notes, key, worklog, syncErr sql.NullString
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.DomainID, &r.CategoryID, &r.TitleID, &r.TimeIn, &timeout,
		&link, &notes, &key, &worklog, &r.JiraSynced, &syncErr, &lastSynced); err != nil {
		return domain.TimeRecord{}, notFound(err)
	}
	r.TimeIn = r.TimeIn.UTC()
	r.TimeOut = timePtr(timeout)
	r.ExternalLink = strPtr(link)
	r.Notes = strPtr(notes)
	r.JiraIssueKey = strPtr(key)
	r.JiraWorklogID = strPtr(worklog)
	r.JiraSyncError = strPtr(syncErr)
	r.LastSyncedAt = timePtr(lastSynced)
	return r, nil
}
