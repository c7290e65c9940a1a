package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"github.com/CrowderSoup/scheduler/validation"
)

// nextHistorySeq returns the sequence number the next snapshot of id takes in
// table. It must be called inside the write transaction that inserts the
// snapshot.
func nextHistorySeq(ctx context.Context, tx *sqlx.Tx, table, idColumn string, id int64) (int64, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(history_seq), 0) FROM %s WHERE %s = ?", table, idColumn)

	var last int64
	if err := tx.GetContext(ctx, &last, query, id); err != nil {
		return 0, fmt.Errorf("failed to read last %s sequence: %w", table, err)
	}
	return last + 1, nil
}

// appendTaskHistory records the state of task as it was before the change
// identified by reason.
func appendTaskHistory(ctx context.Context, tx *sqlx.Tx, task Task, reason Reason) (TaskHistory, error) {
	seq, err := nextHistorySeq(ctx, tx, "task_history", "task_id", task.ID)
	if err != nil {
		return TaskHistory{}, err
	}

	entry := TaskHistory{
		TaskID:     task.ID,
		HistorySeq: seq,
		Title:      task.Title,
		Detail:     cloneString(task.Detail),
		Priority:   task.Priority,
		Deadline:   cloneDate(task.Deadline),
		CreatedAt:  task.CreatedAt,
		UpdatedAt:  task.UpdatedAt,
		Reason:     reason,
		UserID:     cloneString(task.UserID),
	}
	if errs := validation.Struct(entry); errs != nil {
		return TaskHistory{}, &HistoryError{Entity: "task", ID: task.ID, Err: errs}
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO task_history (task_id, history_seq, title, detail, priority, deadline,
			created_at, updated_at, processed_flag, user_id)
		VALUES (:task_id, :history_seq, :title, :detail, :priority, :deadline,
			:created_at, :updated_at, :processed_flag, :user_id)`, entry)
	if err != nil {
		return TaskHistory{}, fmt.Errorf("failed to insert task history: %w", err)
	}

	historyRowsTotal.WithLabelValues("task", reason.String()).Inc()
	log.WithFields(log.Fields{"task_id": task.ID, "seq": seq, "reason": reason.String()}).Debug("task history appended")
	return entry, nil
}

// appendNoteHistory records the state of note as it was before the change
// identified by reason.
func appendNoteHistory(ctx context.Context, tx *sqlx.Tx, note Note, reason Reason) (NoteHistory, error) {
	seq, err := nextHistorySeq(ctx, tx, "note_history", "note_id", note.ID)
	if err != nil {
		return NoteHistory{}, err
	}

	entry := NoteHistory{
		NoteID:     note.ID,
		HistorySeq: seq,
		Body:       cloneString(note.Body),
		CreatedAt:  note.CreatedAt,
		UpdatedAt:  note.UpdatedAt,
		Reason:     reason,
		UserID:     cloneString(note.UserID),
	}
	if errs := validation.Struct(entry); errs != nil {
		return NoteHistory{}, &HistoryError{Entity: "note", ID: note.ID, Err: errs}
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO note_history (note_id, history_seq, body, created_at, updated_at,
			processed_flag, user_id)
		VALUES (:note_id, :history_seq, :body, :created_at, :updated_at,
			:processed_flag, :user_id)`, entry)
	if err != nil {
		return NoteHistory{}, fmt.Errorf("failed to insert note history: %w", err)
	}

	historyRowsTotal.WithLabelValues("note", reason.String()).Inc()
	log.WithFields(log.Fields{"note_id": note.ID, "seq": seq, "reason": reason.String()}).Debug("note history appended")
	return entry, nil
}

// removalReason checks that reason is one a delete may record.
func removalReason(reason Reason) error {
	if reason != ReasonCompleted && reason != ReasonDeleted {
		return fmt.Errorf("%w: %s", ErrInvalidReason, reason)
	}
	return nil
}
