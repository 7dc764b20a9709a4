package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"timecard/internal/domain"
)

const connectionColumns = `id, user_id, jira_url, auth_type, email, api_token_encrypted,
oauth_access_token_encrypted, oauth_refresh_token_encrypted, is_active, created_at, updated_at`

func (s *Store) CreateConnection(ctx context.Context, c *domain.JiraConnection) error {
	now := time.Now().UTC().Truncate(time.Second)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt
	res, err := s.db.ExecContext(ctx, `INSERT INTO jira_connections
(user_id, jira_url, auth_type, email, api_token_encrypted, oauth_access_token_encrypted,
 oauth_refresh_token_encrypted, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, c.URL, string(c.AuthType), nullString(c.Email), nullString(c.APITokenEnc),
		nullString(c.OAuthAccessTokenEnc), nullString(c.OAuthRefreshTokenEnc), c.Active,
		c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	c.ID, err = res.LastInsertId()
	return err
}

func (s *Store) ConnectionsByUser(ctx context.Context, userID int64) ([]domain.JiraConnection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+connectionColumns+` FROM jira_connections WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.JiraConnection{}
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ConnectionByID(ctx context.Context, userID, id int64) (domain.JiraConnection, error) {
	return scanConnection(s.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM jira_connections WHERE id = ? AND user_id = ?`, id, userID))
}

// ActiveConnection returns the user's first active connection.
func (s *Store) ActiveConnection(ctx context.Context, userID int64) (domain.JiraConnection, error) {
	return scanConnection(s.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM jira_connections
WHERE user_id = ? AND is_active = ? ORDER BY id LIMIT 1`, userID, true))
}

// UpdateConnection writes every mutable column and bumps updated_at.
func (s *Store) UpdateConnection(ctx context.Context, c domain.JiraConnection) error {
	res, err := s.db.ExecContext(ctx, `UPDATE jira_connections SET
jira_url = ?, auth_type = ?, email = ?, api_token_encrypted = ?, oauth_access_token_encrypted = ?,
oauth_refresh_token_encrypted = ?, is_active = ?, updated_at = ?
WHERE id = ? AND user_id = ?`,
		c.URL, string(c.AuthType), nullString(c.Email), nullString(c.APITokenEnc),
		nullString(c.OAuthAccessTokenEnc), nullString(c.OAuthRefreshTokenEnc), c.Active,
		time.Now().UTC().Truncate(time.Second), c.ID, c.UserID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) DeleteConnection(ctx context.Context, userID, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jira_connections WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) CreateSyncLog(ctx context.Context, l *domain.SyncLog) error {
	if l.SyncedAt.IsZero() {
		l.SyncedAt = time.Now().UTC().Truncate(time.Second)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO jira_sync_logs
(time_record_id, jira_issue_key, jira_worklog_id, sync_status, sync_error, synced_at, synced_by_user_id)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.TimeRecordID, l.IssueKey, nullString(l.WorklogID), string(l.Status), nullString(l.Error),
		l.SyncedAt.UTC(), l.SyncedBy)
	if err != nil {
		return err
	}
	l.ID, err = res.LastInsertId()
	return err
}

// SyncHistory lists the newest sync logs for records owned by userID.
func (s *Store) SyncHistory(ctx context.Context, userID int64, status *domain.SyncStatus, limit int) ([]domain.SyncLog, error) {
	q := `SELECT l.id, l.time_record_id, l.jira_issue_key, l.jira_worklog_id, l.sync_status,
l.sync_error, l.synced_at, l.synced_by_user_id
FROM jira_sync_logs l JOIN time_records t ON t.id = l.time_record_id
WHERE t.user_id = ?`
	args := []interface{}{userID}
	if status != nil {
		q += ` AND l.sync_status = ?`
		args = append(args, string(*status))
	}
	q += ` ORDER BY l.synced_at DESC, l.id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.SyncLog{}
	for rows.Next() {
		var (
			l               domain.SyncLog
			worklog, errMsg sql.NullString
			st              string
		)
		if err := rows.Scan(&l.ID, &l.TimeRecordID, &l.IssueKey, &worklog, &st, &errMsg, &l.SyncedAt, &l.SyncedBy); err != nil {
			return nil, err
		}
		l.WorklogID = strPtr(worklog)
		l.Error = strPtr(errMsg)
		l.Status = domain.SyncStatus(st)
		l.SyncedAt = l.SyncedAt.UTC()
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanConnection(row rowScanner) (domain.JiraConnection, error) {
	var (
		c                         domain.JiraConnection
		authType                  string
		email, token, oAcc, oRefr sql.NullString
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.URL, &authType, &email, &token, &oAcc, &oRefr,
		&c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return domain.JiraConnection{}, notFound(err)
	}
	c.AuthType = domain.AuthType(authType)
	c.Email = strPtr(email)
	c.APITokenEnc = strPtr(token)
	c.OAuthAccessTokenEnc = strPtr(oAcc)
	c.OAuthRefreshTokenEnc = strPtr(oRefr)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}
