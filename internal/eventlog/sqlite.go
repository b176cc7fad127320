package eventlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/lumenmed/lumen/internal/model"

	_ "modernc.org/sqlite"
)

const createTasksTable = `
CREATE TABLE IF NOT EXISTS tasks (
    id              TEXT PRIMARY KEY,
    status          TEXT NOT NULL,
    mode            TEXT NOT NULL,
    question        TEXT NOT NULL,
    conversation_id TEXT,
    user_id         TEXT,
    error           TEXT,
    message_id      TEXT,
    created_at      DATETIME NOT NULL,
    finished_at     DATETIME
)`

const createEventsTable = `
CREATE TABLE IF NOT EXISTS events (
    task_id    TEXT NOT NULL,
    idx        INTEGER NOT NULL,
    kind       TEXT NOT NULL,
    step       TEXT,
    content    TEXT,
    data       TEXT,
    created_at DATETIME NOT NULL,
    PRIMARY KEY (task_id, idx)
)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite, so event logs survive process
// restarts and a reconnecting subscriber can replay a task started before the
// restart (for tasks that had already reached a terminal status).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(createTasksTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tasks table: %w", err)
	}
	if _, err := db.Exec(createEventsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// CreateTask inserts a new task record.
func (s *SQLiteStore) CreateTask(ctx context.Context, t *model.Task) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, status, mode, question, conversation_id, user_id, error, message_id, created_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Status, t.Mode, t.Question, t.ConversationID, t.UserID, t.Error, t.MessageID, t.CreatedAt, t.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	t := &model.Task{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, mode, question, conversation_id, user_id, error, message_id, created_at, finished_at
		 FROM tasks WHERE id = ?`, id,
	).Scan(&t.ID, &t.Status, &t.Mode, &t.Question, &t.ConversationID, &t.UserID, &t.Error, &t.MessageID, &t.CreatedAt, &t.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// SetStatus transitions a task to a new status, enforcing the lifecycle.
func (s *SQLiteStore) SetStatus(ctx context.Context, id, status string) error {
	return s.transition(ctx, id, status, nil, nil)
}

// FinishTask records a terminal status, error message and finish time.
func (s *SQLiteStore) FinishTask(ctx context.Context, id, status, errMsg string) error {
	now := time.Now().UTC()
	return s.transition(ctx, id, status, &errMsg, &now)
}

// SetArtifact records the conversation and message the task's artifact was
// persisted to.
func (s *SQLiteStore) SetArtifact(ctx context.Context, id, conversationID, messageID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET conversation_id = ?, message_id = ? WHERE id = ?`,
		conversationID, messageID, id)
	if err != nil {
		return fmt.Errorf("set artifact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set artifact: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// transition performs a validated status update inside a transaction so that
// readers never observe a half-applied terminal state.
func (s *SQLiteStore) transition(ctx context.Context, id, status string, errMsg *string, finishedAt *time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	if !model.ValidTransition(current, status) {
		return ErrInvalidTransition
	}

	if errMsg != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
			status, *errMsg, finishedAt, id)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE id = ?`, status, id)
	}
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return tx.Commit()
}

// Append inserts an event with the next index for the task. The index is
// assigned inside the transaction, so a concurrent ListFrom sees either the
// complete event or nothing.
func (s *SQLiteStore) Append(ctx context.Context, taskID string, ev model.Event) (int, error) {
	var data any
	if len(ev.Data) > 0 {
		raw, err := sonic.Marshal(ev.Data)
		if err != nil {
			return 0, fmt.Errorf("marshal event data: %w", err)
		}
		data = string(raw)
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE id = ?`, taskID).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("check task: %w", err)
	}
	if exists == 0 {
		return 0, ErrNotFound
	}

	var idx int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE task_id = ?`, taskID).Scan(&idx); err != nil {
		return 0, fmt.Errorf("next index: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (task_id, idx, kind, step, content, data, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		taskID, idx, ev.Kind, ev.Step, ev.Content, data, ev.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return idx, nil
}

// ListFrom returns all events with index >= from, in index order.
func (s *SQLiteStore) ListFrom(ctx context.Context, taskID string, from int) ([]model.Event, error) {
	if from < 0 {
		from = 0
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE id = ?`, taskID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check task: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, kind, step, content, data, created_at FROM events WHERE task_id = ? AND idx >= ? ORDER BY idx ASC`,
		taskID, from)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var ev model.Event
		var step, content, data sql.NullString
		if err := rows.Scan(&ev.Index, &ev.Kind, &step, &content, &data, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Step = step.String
		ev.Content = content.String
		if data.Valid && data.String != "" {
			if err := sonic.Unmarshal([]byte(data.String), &ev.Data); err != nil {
				return nil, fmt.Errorf("unmarshal event data: %w", err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Status returns the task's current status.
func (s *SQLiteStore) Status(ctx context.Context, taskID string) (string, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, taskID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get status: %w", err)
	}
	return status, nil
}

// Delete evicts the task record and its event log.
func (s *SQLiteStore) Delete(ctx context.Context, taskID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("delete events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, taskID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return tx.Commit()
}

// Stats aggregates counts and average duration across all live tasks.
func (s *SQLiteStore) Stats(ctx context.Context) (*TaskStats, error) {
	st := &TaskStats{
		CountByStatus: make(map[string]int),
		CountByMode:   make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		st.CountByStatus[status] = n
		st.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	modeRows, err := s.db.QueryContext(ctx, `SELECT mode, COUNT(*) FROM tasks GROUP BY mode`)
	if err != nil {
		return nil, fmt.Errorf("count by mode: %w", err)
	}
	defer modeRows.Close()
	for modeRows.Next() {
		var mode string
		var n int
		if err := modeRows.Scan(&mode, &n); err != nil {
			return nil, fmt.Errorf("scan mode count: %w", err)
		}
		st.CountByMode[mode] = n
	}
	if err := modeRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mode counts: %w", err)
	}

	var avg sql.NullFloat64
	err = s.db.QueryRowContext(ctx,
		`SELECT AVG((julianday(finished_at) - julianday(created_at)) * 86400000.0)
		 FROM tasks WHERE finished_at IS NOT NULL`).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("average duration: %w", err)
	}
	st.AvgDurationMS = avg.Float64

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&st.TotalEvents); err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	return st, nil
}
