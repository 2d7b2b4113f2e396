package store

import (
	"database/sql"
	"time"

	"github.com/andrevros/imovelsync/internal/models"
)

// CreateTask records a new migration attempt for an entry, in status queued.
func (s *Store) CreateTask(entryID int64) (*models.MigrationTask, error) {
	now := time.Now()
	res, err := s.db.Exec(
		"INSERT INTO migration_tasks (entry_id, status, progress, created_at) VALUES (?, 'queued', 0, ?)",
		entryID, now)
	if err != nil {
		return nil, err
	}
	id, _ := res.LastInsertId()
	return &models.MigrationTask{ID: id, EntryID: entryID, Status: "queued", CreatedAt: now}, nil
}

// MarkTaskProcessing moves a task from queued to processing.
func (s *Store) MarkTaskProcessing(id int64) error {
	_, err := s.db.Exec("UPDATE migration_tasks SET status = 'processing' WHERE id = ?", id)
	return err
}

// UpdateTaskProgress changes a task's progress percentage.
func (s *Store) UpdateTaskProgress(id int64, progress int) error {
	_, err := s.db.Exec("UPDATE migration_tasks SET progress = ? WHERE id = ?", progress, id)
	return err
}

// CompleteTask marks a task as successfully completed. Terminal.
func (s *Store) CompleteTask(id int64) error {
	_, err := s.db.Exec(
		"UPDATE migration_tasks SET status = 'completed', progress = 100, completed_at = ? WHERE id = ?",
		time.Now(), id)
	return err
}

// FailTask marks a task as failed with the error text. Terminal; failed
// tasks are not retried automatically.
func (s *Store) FailTask(id int64, message string) error {
	_, err := s.db.Exec(
		"UPDATE migration_tasks SET status = 'failed', error = ?, completed_at = ? WHERE id = ?",
		message, time.Now(), id)
	return err
}

// GetTask retrieves a single migration task.
func (s *Store) GetTask(id int64) (*models.MigrationTask, error) {
	row := s.db.QueryRow(`
		SELECT id, entry_id, status, progress, error, created_at, completed_at
		FROM migration_tasks WHERE id = ?`, id)
	return scanTask(row)
}

// ListTasks returns the most recent migration tasks, newest first.
func (s *Store) ListTasks(limit int) ([]*models.MigrationTask, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, entry_id, status, progress, error, created_at, completed_at
		FROM migration_tasks ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.MigrationTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// ListTasksForEntry returns every migration attempt for one entry.
func (s *Store) ListTasksForEntry(entryID int64) ([]*models.MigrationTask, error) {
	rows, err := s.db.Query(`
		SELECT id, entry_id, status, progress, error, created_at, completed_at
		FROM migration_tasks WHERE entry_id = ? ORDER BY created_at ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.MigrationTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(row scanner) (*models.MigrationTask, error) {
	var task models.MigrationTask
	var errText sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&task.ID, &task.EntryID, &task.Status, &task.Progress,
		&errText, &task.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	task.Error = errText.String
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return &task, nil
}
