package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"custodian/internal/category"
	id "custodian/pkg/domain"
	"custodian/pkg/platform/sentinel"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore persists category records in SQLite. Suitable for
// single-instance deployments where records must survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

const recordsSchema = `
CREATE TABLE IF NOT EXISTS records (
	id           TEXT NOT NULL,
	workspace_id TEXT NOT NULL,
	category     TEXT NOT NULL,
	subject_id   TEXT NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL,
	archived     INTEGER NOT NULL DEFAULT 0,
	data         TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (workspace_id, category, id)
);
CREATE INDEX IF NOT EXISTS idx_records_created ON records (workspace_id, category, created_at);
CREATE INDEX IF NOT EXISTS idx_records_subject ON records (workspace_id, category, subject_id);
`

// NewSQLite opens (and if needed initializes) a SQLite-backed record store.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// WAL improves concurrent read performance for the sweep workloads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if _, err := db.Exec(recordsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize records schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection, for readiness probes.
func (s *SQLiteStore) Ping() error {
	return s.db.Ping()
}

func (s *SQLiteStore) Find(ctx context.Context, workspace id.WorkspaceID, cat category.Category, filter Filter) ([]Record, error) {
	query, args := buildSelect(workspace, cat, filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var found []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		// Conditions compare against JSON payload values, applied here
		// rather than in SQL to keep the schema free of json_extract.
		if !filter.Matches(record) {
			continue
		}
		found = append(found, record)
	}
	return found, rows.Err()
}

func (s *SQLiteStore) BulkDelete(ctx context.Context, workspace id.WorkspaceID, cat category.Category, filter Filter) (int, error) {
	return s.bulkMutate(ctx, workspace, cat, filter,
		"DELETE FROM records WHERE workspace_id = ? AND category = ? AND id = ?")
}

func (s *SQLiteStore) BulkArchive(ctx context.Context, workspace id.WorkspaceID, cat category.Category, filter Filter) (int, error) {
	return s.bulkMutate(ctx, workspace, cat, filter,
		"UPDATE records SET archived = 1 WHERE workspace_id = ? AND category = ? AND id = ? AND archived = 0")
}

// bulkMutate selects matching record ids first, then applies stmt per id.
// Matching happens in Go because Conditions filter on the JSON payload.
func (s *SQLiteStore) bulkMutate(ctx context.Context, workspace id.WorkspaceID, cat category.Category, filter Filter, stmt string) (int, error) {
	withArchived := filter
	withArchived.IncludeArchived = true
	matched, err := s.Find(ctx, workspace, cat, withArchived)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bulk mutation: %w", err)
	}
	defer tx.Rollback()

	affected := 0
	for _, record := range matched {
		res, err := tx.ExecContext(ctx, stmt, workspace.String(), string(cat), record.ID)
		if err != nil {
			return 0, fmt.Errorf("mutate record %s: %w", record.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			affected += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bulk mutation: %w", err)
	}
	return affected, nil
}

func (s *SQLiteStore) Anonymize(ctx context.Context, workspace id.WorkspaceID, cat category.Category, recordID string, fields []string) error {
	row := s.db.QueryRowContext(ctx,
		"SELECT data FROM records WHERE workspace_id = ? AND category = ? AND id = ?",
		workspace.String(), string(cat), recordID)

	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("read record for anonymization: %w", err)
	}

	data := make(map[string]any)
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return fmt.Errorf("decode record payload: %w", err)
	}
	for _, field := range fields {
		if _, ok := data[field]; ok {
			data[field] = AnonymizedPlaceholder
		}
	}
	data["deactivated"] = true

	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode anonymized payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE records SET data = ?, subject_id = ? WHERE workspace_id = ? AND category = ? AND id = ?",
		string(encoded), AnonymizedPlaceholder, workspace.String(), string(cat), recordID)
	if err != nil {
		return fmt.Errorf("write anonymized record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, record Record) (Record, error) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	encoded, err := json.Marshal(record.Data)
	if err != nil {
		return Record{}, fmt.Errorf("encode record payload: %w", err)
	}
	archived := 0
	if record.Archived {
		archived = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (id, workspace_id, category, subject_id, created_at, archived, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (workspace_id, category, id)
		DO UPDATE SET subject_id = excluded.subject_id, archived = excluded.archived, data = excluded.data`,
		record.ID, record.WorkspaceID.String(), string(record.Category), record.SubjectID,
		record.CreatedAt.UTC().UnixNano(), archived, string(encoded))
	if err != nil {
		return Record{}, fmt.Errorf("upsert record: %w", err)
	}
	return record, nil
}

func (s *SQLiteStore) CountGroupedBy(ctx context.Context, workspace id.WorkspaceID) (map[category.Category]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT category, COUNT(*) FROM records WHERE workspace_id = ? GROUP BY category",
		workspace.String())
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	defer rows.Close()

	counts := make(map[category.Category]int)
	for rows.Next() {
		var cat string
		var count int
		if err := rows.Scan(&cat, &count); err != nil {
			return nil, fmt.Errorf("scan record count: %w", err)
		}
		counts[category.Category(cat)] = count
	}
	return counts, rows.Err()
}

func buildSelect(workspace id.WorkspaceID, cat category.Category, filter Filter) (string, []any) {
	query := "SELECT id, workspace_id, category, subject_id, created_at, archived, data FROM records WHERE workspace_id = ? AND category = ?"
	args := []any{workspace.String(), string(cat)}

	if filter.SubjectID != "" {
		query += " AND subject_id = ?"
		args = append(args, filter.SubjectID)
	}
	if filter.CreatedBefore != nil {
		query += " AND created_at < ?"
		args = append(args, filter.CreatedBefore.UTC().UnixNano())
	}
	if filter.CreatedFrom != nil {
		query += " AND created_at >= ?"
		args = append(args, filter.CreatedFrom.UTC().UnixNano())
	}
	if filter.CreatedTo != nil {
		query += " AND created_at <= ?"
		args = append(args, filter.CreatedTo.UTC().UnixNano())
	}
	if !filter.IncludeArchived {
		query += " AND archived = 0"
	}
	return query, args
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		record    Record
		workspace string
		cat       string
		createdAt int64
		archived  int
		raw       string
	)
	if err := rows.Scan(&record.ID, &workspace, &cat, &record.SubjectID, &createdAt, &archived, &raw); err != nil {
		return Record{}, fmt.Errorf("scan record: %w", err)
	}
	ws, err := id.ParseWorkspaceID(workspace)
	if err != nil {
		return Record{}, fmt.Errorf("parse stored workspace id: %w", err)
	}
	record.WorkspaceID = ws
	record.Category = category.Category(cat)
	record.CreatedAt = time.Unix(0, createdAt).UTC()
	record.Archived = archived != 0
	record.Data = make(map[string]any)
	if err := json.Unmarshal([]byte(raw), &record.Data); err != nil {
		return Record{}, fmt.Errorf("decode record payload: %w", err)
	}
	return record, nil
}
