package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

const taskColumns = "id, title, detail, priority, deadline, created_at, updated_at, user_id"

// TaskService handles the lifecycle of tasks and their history.
type TaskService struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewTaskService(db *sqlx.DB) *TaskService {
	return &TaskService{db: db, now: time.Now}
}

func getTask(ctx context.Context, q sqlx.QueryerContext, id int64) (Task, error) {
	var task Task
	err := sqlx.GetContext(ctx, q, &task, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Task{}, fmt.Errorf("failed to query task %d: %w", id, err)
	}
	return task, nil
}

// Create inserts a new task. New tasks have no history.
func (s *TaskService) Create(ctx context.Context, in TaskInput) (Task, error) {
	if err := in.Validate(); err != nil {
		return Task{}, err
	}

	now := s.now().UTC()
	var created Task
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := checkOwner(ctx, tx, in.UserID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (title, detail, priority, deadline, created_at, updated_at, user_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			in.Title, in.Detail, in.Priority, in.Deadline, now, now, in.UserID)
		if err != nil {
			return fmt.Errorf("failed to insert task: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read task id: %w", err)
		}

		created, err = getTask(ctx, tx, id)
		return err
	})
	if err != nil {
		return Task{}, err
	}
	return created, nil
}

func (s *TaskService) Get(ctx context.Context, id int64) (Task, error) {
	return getTask(ctx, s.db, id)
}

func (s *TaskService) List(ctx context.Context) ([]Task, error) {
	tasks := []Task{}
	if err := s.db.SelectContext(ctx, &tasks, "SELECT "+taskColumns+" FROM tasks ORDER BY id"); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Update replaces every writable field of task id with in.
func (s *TaskService) Update(ctx context.Context, id int64, in TaskInput) (Task, error) {
	return s.Modify(ctx, id, func(target *TaskInput) error {
		*target = in
		return nil
	})
}

// Modify loads task id, lets apply change its writable fields and stores the
// result. The state before the change is appended to the task's history in
// the same transaction. When apply or validation fails nothing is written.
func (s *TaskService) Modify(ctx context.Context, id int64, apply func(*TaskInput) error) (Task, error) {
	var updated Task
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		current, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}

		in := current.Input()
		if err := apply(&in); err != nil {
			return err
		}
		if err := in.Validate(); err != nil {
			return err
		}
		if err := checkOwner(ctx, tx, in.UserID); err != nil {
			return err
		}

		if _, err := appendTaskHistory(ctx, tx, current, ReasonUpdated); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE tasks SET title = ?, detail = ?, priority = ?, deadline = ?, updated_at = ?, user_id = ?
			WHERE id = ?`,
			in.Title, in.Detail, in.Priority, in.Deadline, s.now().UTC(), in.UserID, id)
		if err != nil {
			return fmt.Errorf("failed to update task %d: %w", id, err)
		}

		updated, err = getTask(ctx, tx, id)
		return err
	})
	if err != nil {
		return Task{}, err
	}
	return updated, nil
}

// Delete removes task id after recording its last state with reason, which
// must be ReasonCompleted or ReasonDeleted. The history survives the task.
func (s *TaskService) Delete(ctx context.Context, id int64, reason Reason) (TaskHistory, error) {
	if err := removalReason(reason); err != nil {
		return TaskHistory{}, err
	}

	var entry TaskHistory
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		current, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}

		entry, err = appendTaskHistory(ctx, tx, current, reason)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete task %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return TaskHistory{}, err
	}

	log.WithFields(log.Fields{"task_id": id, "reason": reason.String()}).Info("task removed")
	return entry, nil
}

// History returns every snapshot of task id in sequence order. It returns
// ErrNotFound only when the task never existed as far as the store knows.
func (s *TaskService) History(ctx context.Context, id int64) ([]TaskHistory, error) {
	entries := []TaskHistory{}
	err := s.db.SelectContext(ctx, &entries, `
		SELECT task_id, history_seq, title, detail, priority, deadline, created_at, updated_at,
			processed_flag, user_id
		FROM task_history WHERE task_id = ? ORDER BY history_seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list task history: %w", err)
	}
	if len(entries) == 0 {
		if _, err := getTask(ctx, s.db, id); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// ListForUser returns the tasks of one user in the requested order, along
// with the number of urgent tasks due today or earlier.
func (s *TaskService) ListForUser(ctx context.Context, q TaskQuery) (TaskListing, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE user_id = ?"
	args := []any{q.UserID}

	if q.HideUndated {
		query += " AND NOT (priority = ? AND deadline IS NOT NULL AND deadline = ?)"
		args = append(args, PriorityLow, NoDeadline)
	}

	switch q.Sort {
	case SortByPriority:
		query += " ORDER BY priority, deadline, id"
	default:
		query += " ORDER BY deadline, priority, id"
	}

	tasks := []Task{}
	if err := s.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return TaskListing{}, fmt.Errorf("failed to list tasks for user %s: %w", q.UserID, err)
	}

	return TaskListing{
		Tasks:         tasks,
		DueTodayCount: countDueToday(tasks, NewDate(s.now())),
	}, nil
}

func countDueToday(tasks []Task, today Date) int {
	count := 0
	for _, task := range tasks {
		if task.Priority != PriorityUrgent || task.Deadline == nil {
			continue
		}
		if !task.Deadline.After(today.Time) {
			count++
		}
	}
	return count
}

// CountByDay counts the tasks of a user due on each of the next seven days,
// starting today, split by priority.
func (s *TaskService) CountByDay(ctx context.Context, userID string) (DailyCounts, error) {
	today := NewDate(s.now())

	dayIndex := make(map[string]int, 7)
	for i := 0; i < 7; i++ {
		dayIndex[today.AddDays(i).String()] = i
	}

	var rows []struct {
		Deadline Date     `db:"deadline"`
		Priority Priority `db:"priority"`
		Count    int      `db:"count"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT deadline, priority, COUNT(*) AS count
		FROM tasks
		WHERE user_id = ? AND deadline >= ? AND deadline <= ?
		GROUP BY deadline, priority`,
		userID, today.String(), today.AddDays(6).String())
	if err != nil {
		return DailyCounts{}, fmt.Errorf("failed to count tasks for user %s: %w", userID, err)
	}

	var counts DailyCounts
	for _, row := range rows {
		i, ok := dayIndex[row.Deadline.String()]
		if !ok {
			continue
		}
		switch row.Priority {
		case PriorityUrgent:
			counts.Priority1[i] += row.Count
		case PriorityWaiting:
			counts.Priority2[i] += row.Count
		case PriorityLow:
			counts.Priority3[i] += row.Count
		}
	}
	return counts, nil
}
