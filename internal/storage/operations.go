package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const upsertTableQuery = `
    INSERT INTO tables (project_id, dataset_id, table_id, rows_inserted, rows_rejected, last_insert)
    VALUES (?, ?, ?, ?, ?, ?)
    ON CONFLICT (project_id, dataset_id, table_id) DO UPDATE SET
        rows_inserted = rows_inserted + excluded.rows_inserted,
        rows_rejected = rows_rejected + excluded.rows_rejected,
        last_insert = MAX(last_insert, excluded.last_insert)`

// RecordInsert adds rows to the inserted count of a table and bumps its
// last insert time
func (s *SQLiteStorage) RecordInsert(ctx context.Context, ref TableRef, rows int) error {
	_, err := s.db.ExecContext(ctx, upsertTableQuery,
		ref.ProjectID,
		ref.DatasetID,
		ref.TableID,
		rows,
		0,
		s.now().Unix())
	return err
}

// RecordRejected saves a rejected row and counts it against its table
func (s *SQLiteStorage) RecordRejected(ctx context.Context, row *RejectedRow) error {
	// Start transaction so the row and the counter stay in step
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	createdAt := row.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	rowQuery := `
        INSERT INTO rejected_rows
        (project_id, dataset_id, table_id, insert_id, reason, message, payload, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, rowQuery,
		row.ProjectID,
		row.DatasetID,
		row.TableID,
		row.InsertID,
		row.Reason,
		row.Message,
		row.Payload,
		createdAt.Unix())
	if err != nil {
		return err
	}

	// last_insert 0 keeps the existing value through MAX()
	if _, err := tx.ExecContext(ctx, upsertTableQuery,
		row.ProjectID,
		row.DatasetID,
		row.TableID,
		0,
		1,
		0); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if id, err := res.LastInsertId(); err == nil {
		row.ID = id
	}
	row.CreatedAt = time.Unix(createdAt.Unix(), 0)
	return nil
}

// GetRejectedRows returns the most recent rejected rows of a table, newest
// first. A limit of zero or less returns all of them.
func (s *SQLiteStorage) GetRejectedRows(ctx context.Context, ref TableRef, limit int) ([]*RejectedRow, error) {
	if limit <= 0 {
		limit = -1
	}

	query := `SELECT id, project_id, dataset_id, table_id, insert_id, reason, message, COALESCE(payload, ''), created_at
              FROM rejected_rows
              WHERE project_id = ? AND dataset_id = ? AND table_id = ?
              ORDER BY id DESC
              LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, ref.ProjectID, ref.DatasetID, ref.TableID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rejected []*RejectedRow
	for rows.Next() {
		r := &RejectedRow{}
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.DatasetID, &r.TableID,
			&r.InsertID, &r.Reason, &r.Message, &r.Payload, &createdAt); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(createdAt, 0)
		rejected = append(rejected, r)
	}
	return rejected, rows.Err()
}

// GetTableStats retrieves table statistics for the given projects, or for
// every project when none are given
func (s *SQLiteStorage) GetTableStats(ctx context.Context, projects []string) ([]*TableStats, error) {
	query := `SELECT project_id, dataset_id, table_id, rows_inserted, rows_rejected, last_insert
              FROM tables`
	var args []interface{}

	if len(projects) > 0 {
		// Build query with placeholders for projects
		placeholders := make([]string, len(projects))
		args = make([]interface{}, len(projects))
		for i, p := range projects {
			placeholders[i] = "?"
			args[i] = p
		}
		query += fmt.Sprintf(" WHERE project_id IN (%s)", strings.Join(placeholders, ","))
	}
	query += " ORDER BY project_id, dataset_id, table_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*TableStats
	for rows.Next() {
		st := &TableStats{}
		var lastInsert int64
		if err := rows.Scan(&st.ProjectID, &st.DatasetID, &st.TableID,
			&st.RowsInserted, &st.RowsRejected, &lastInsert); err != nil {
			return nil, err
		}
		if lastInsert > 0 {
			st.LastInsert = time.Unix(lastInsert, 0)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// GetAllProjects returns all unique project IDs from the database
func (s *SQLiteStorage) GetAllProjects(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT project_id FROM tables ORDER BY project_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var projectID string
		if err := rows.Scan(&projectID); err != nil {
			return nil, err
		}
		projects = append(projects, projectID)
	}
	return projects, rows.Err()
}
