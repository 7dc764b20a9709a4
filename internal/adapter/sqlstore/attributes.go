package sqlstore

import (
	"context"
	"database/sql"
	"log/slog"

	"timecard/internal/domain"
)

const attributeColumns = `id, name, parent_id, user_id, level_num, color`

// FindAttribute looks up an exact (user, level, name, parent) match.
func (s *Store) FindAttribute(ctx context.Context, userID int64, level domain.Level, name string, parentID *int64) (domain.RecordAttribute, error) {
	q := `SELECT ` + attributeColumns + ` FROM record_attributes
WHERE user_id = ? AND level_num = ? AND name = ?`
	args := []interface{}{userID, int(level), name}
	if parentID == nil {
		q += ` AND parent_id IS NULL`
	} else {
		q += ` AND parent_id = ?`
		args = append(args, *parentID)
	}
	q += ` ORDER BY id LIMIT 1`
	return scanAttribute(s.db.QueryRowContext(ctx, q, args...))
}

func (s *Store) CreateAttribute(ctx context.Context, a *domain.RecordAttribute) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO record_attributes (name, parent_id, user_id, level_num, color) VALUES (?, ?, ?, ?, ?)`,
		a.Name, nullInt(a.ParentID), a.UserID, int(a.Level), nullString(a.Color))
	if err != nil {
		return err
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}
	s.log.Debug("record attribute created",
		slog.Int64("id", a.ID), slog.String("level", a.Level.String()), slog.String("name", a.Name))
	return nil
}

func (s *Store) AttributeByID(ctx context.Context, userID, id int64) (domain.RecordAttribute, error) {
	return scanAttribute(s.db.QueryRowContext(ctx,
		`SELECT `+attributeColumns+` FROM record_attributes WHERE id = ? AND user_id = ?`, id, userID))
}

func (s *Store) ListAttributes(ctx context.Context, userID int64) ([]domain.RecordAttribute, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attributeColumns+` FROM record_attributes WHERE user_id = ? ORDER BY level_num, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.RecordAttribute{}
	for rows.Next() {
		a, err := scanAttribute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateAttribute(ctx context.Context, a domain.RecordAttribute) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE record_attributes SET name = ?, color = ? WHERE id = ? AND user_id = ?`,
		a.Name, nullString(a.Color), a.ID, a.UserID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAttribute(row rowScanner) (domain.RecordAttribute, error) {
	var (
		a      domain.RecordAttribute
		parent sql.NullInt64
		level  int
		color  sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Name, &parent, &a.UserID, &level, &color); err != nil {
		return domain.RecordAttribute{}, notFound(err)
	}
	a.ParentID = intPtr(parent)
	a.Level = domain.Level(level)
	a.Color = strPtr(color)
	return a, nil
}
