package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
)

// Open connects to Postgres through the pgx driver and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS boards (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	board_id    TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	priority    TEXT NOT NULL DEFAULT 'medium',
	position    INTEGER NOT NULL DEFAULT 0,
	assignee    TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS tasks_board_position_idx ON tasks (board_id, position);
CREATE TABLE IF NOT EXISTS activity (
	id         TEXT PRIMARY KEY,
	board_id   TEXT NOT NULL,
	message    TEXT NOT NULL,
	metadata   JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS activity_board_created_idx ON activity (board_id, created_at DESC);
`

// PostgresStore is a Backend on top of database/sql.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// EnsureSchema creates the tables when they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBoards(ctx context.Context) ([]domain.Board, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM boards ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	var boards []domain.Board
	for rows.Next() {
		var b domain.Board
		if err := rows.Scan(&b.ID, &b.Name, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

func (s *PostgresStore) CreateBoard(ctx context.Context, b domain.Board) (domain.Board, error) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO boards (id, name, created_at) VALUES ($1, $2, $3)`, b.ID, b.Name, b.CreatedAt); err != nil {
		return domain.Board{}, fmt.Errorf("create board: %w", err)
	}
	return b, nil
}

const taskColumns = `id, board_id, title, description, status, priority, position, assignee, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	err := row.Scan(&t.ID, &t.BoardID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Position, &t.Assignee, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (s *PostgresStore) ListTasks(ctx context.Context, boardID string) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE board_id = $1 ORDER BY position ASC, created_at ASC`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, ErrNotFound
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) UpsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	t = prepareUpsert(t, nil, s.now())
	const upsert = `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			board_id = EXCLUDED.board_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			priority = EXCLUDED.priority,
			position = EXCLUDED.position,
			assignee = EXCLUDED.assignee,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + taskColumns
	out, err := scanTask(s.db.QueryRowContext(ctx, upsert,
		t.ID, t.BoardID, t.Title, t.Description, t.Status, t.Priority, t.Position, t.Assignee, t.CreatedAt, t.UpdatedAt))
	if err != nil {
		return domain.Task{}, fmt.Errorf("upsert task: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateTaskFields(ctx context.Context, taskID string, fields domain.MoveFields) (domain.Task, error) {
	if fields.UpdatedAt.IsZero() {
		fields.UpdatedAt = s.now()
	}
	t, err := scanTask(s.db.QueryRowContext(ctx, `
		UPDATE tasks SET status = $2, position = $3, updated_at = $4
		WHERE id = $1
		RETURNING `+taskColumns, taskID, fields.Status, fields.Position, fields.UpdatedAt))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, ErrNotFound
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("update task fields: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) DeleteTask(ctx context.Context, taskID string) (domain.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `DELETE FROM tasks WHERE id = $1 RETURNING `+taskColumns, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, ErrNotFound
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("delete task: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListActivity(ctx context.Context, boardID string, limit int) ([]domain.ActivityEntry, error) {
	query := `SELECT id, board_id, message, metadata, created_at FROM activity WHERE board_id = $1 ORDER BY created_at DESC`
	args := []any{boardID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var entries []domain.ActivityEntry
	for rows.Next() {
		var (
			e        domain.ActivityEntry
			metadata []byte
		)
		if err := rows.Scan(&e.ID, &e.BoardID, &e.Message, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode activity metadata: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) InsertActivity(ctx context.Context, e domain.ActivityEntry) error {
	var metadata []byte
	if len(e.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(e.Metadata); err != nil {
			return fmt.Errorf("encode activity metadata: %w", err)
		}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO activity (id, board_id, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.BoardID, e.Message, metadata, e.CreatedAt); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}
