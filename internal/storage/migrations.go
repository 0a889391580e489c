package storage

func (s *SQLiteStorage) migrate() error {
	schema := `
    CREATE TABLE IF NOT EXISTS tables (
        project_id TEXT NOT NULL,
        dataset_id TEXT NOT NULL,
        table_id TEXT NOT NULL,
        rows_inserted INTEGER NOT NULL DEFAULT 0,
        rows_rejected INTEGER NOT NULL DEFAULT 0,
        last_insert INTEGER NOT NULL DEFAULT 0,
        PRIMARY KEY (project_id, dataset_id, table_id)
    );

    CREATE TABLE IF NOT EXISTS rejected_rows (
        id INTEGER PRIMARY KEY,
        project_id TEXT NOT NULL,
        dataset_id TEXT NOT NULL,
        table_id TEXT NOT NULL,
        insert_id TEXT NOT NULL DEFAULT '',
        reason TEXT NOT NULL,
        message TEXT NOT NULL DEFAULT '',
        payload JSON,
        created_at INTEGER NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_rejected_table
        ON rejected_rows(project_id, dataset_id, table_id);
    CREATE INDEX IF NOT EXISTS idx_tables_project
        ON tables(project_id);
    `

	_, err := s.db.Exec(schema)
	return err
}
