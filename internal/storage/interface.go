package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store defines the interface for all storage operations
type Store interface {
	// Inserts
	RecordInsert(ctx context.Context, ref TableRef, rows int) error
	GetTableStats(ctx context.Context, projects []string) ([]*TableStats, error)

	// Rejected rows
	RecordRejected(ctx context.Context, row *RejectedRow) error
	GetRejectedRows(ctx context.Context, ref TableRef, limit int) ([]*RejectedRow, error)

	// Projects
	GetAllProjects(ctx context.Context) ([]string, error)

	// Lifecycle
	Close() error
}

// TableRef identifies a BigQuery table
type TableRef struct {
	ProjectID string
	DatasetID string
	TableID   string
}

// Name returns the table in project:dataset.table form
func (r TableRef) Name() string {
	return r.ProjectID + ":" + r.DatasetID + "." + r.TableID
}

// ParseTableRef parses "project:dataset.table" or "dataset.table", in which
// case defaultProject is used.
func ParseTableRef(s, defaultProject string) (TableRef, error) {
	project := defaultProject
	rest := s
	if i := strings.Index(s, ":"); i >= 0 {
		project, rest = s[:i], s[i+1:]
	}

	dataset, table, ok := strings.Cut(rest, ".")
	if !ok || project == "" || dataset == "" || table == "" || strings.Contains(table, ".") {
		return TableRef{}, fmt.Errorf("invalid table %q: want [project:]dataset.table", s)
	}
	return TableRef{ProjectID: project, DatasetID: dataset, TableID: table}, nil
}

// TableStats summarizes what was streamed into a table
type TableStats struct {
	TableRef
	RowsInserted int64
	RowsRejected int64
	LastInsert   time.Time // zero if nothing was inserted yet
}

// RejectedRow is a row BigQuery refused, or one that could not be
// inserted at all
type RejectedRow struct {
	ID int64
	TableRef
	InsertID  string
	Reason    string
	Message   string
	Payload   string // JSON
	CreatedAt time.Time
}
