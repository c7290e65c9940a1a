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

const noteColumns = "id, body, created_at, updated_at, processed_flag, user_id"

// NoteService handles the lifecycle of notes and their history.
type NoteService struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewNoteService(db *sqlx.DB) *NoteService {
	return &NoteService{db: db, now: time.Now}
}

func getNote(ctx context.Context, q sqlx.QueryerContext, id int64) (Note, error) {
	var note Note
	err := sqlx.GetContext(ctx, q, &note, "SELECT "+noteColumns+" FROM notes WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Note{}, fmt.Errorf("note %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Note{}, fmt.Errorf("failed to query note %d: %w", id, err)
	}
	return note, nil
}

func (s *NoteService) Create(ctx context.Context, in NoteInput) (Note, error) {
	if err := in.Validate(); err != nil {
		return Note{}, err
	}

	now := s.now().UTC()
	var created Note
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := checkOwner(ctx, tx, in.UserID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO notes (body, created_at, updated_at, processed_flag, user_id)
			VALUES (?, ?, ?, ?, ?)`,
			in.Body, now, now, in.ProcessedFlag, in.UserID)
		if err != nil {
			return fmt.Errorf("failed to insert note: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read note id: %w", err)
		}

		created, err = getNote(ctx, tx, id)
		return err
	})
	if err != nil {
		return Note{}, err
	}
	return created, nil
}

func (s *NoteService) Get(ctx context.Context, id int64) (Note, error) {
	return getNote(ctx, s.db, id)
}

func (s *NoteService) List(ctx context.Context) ([]Note, error) {
	notes := []Note{}
	if err := s.db.SelectContext(ctx, &notes, "SELECT "+noteColumns+" FROM notes ORDER BY id"); err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

func (s *NoteService) Update(ctx context.Context, id int64, in NoteInput) (Note, error) {
	return s.Modify(ctx, id, func(target *NoteInput) error {
		*target = in
		return nil
	})
}

// Modify works like TaskService.Modify for notes.
func (s *NoteService) Modify(ctx context.Context, id int64, apply func(*NoteInput) error) (Note, error) {
	var updated Note
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		current, err := getNote(ctx, tx, id)
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

		if _, err := appendNoteHistory(ctx, tx, current, ReasonUpdated); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE notes SET body = ?, processed_flag = ?, updated_at = ?, user_id = ?
			WHERE id = ?`,
			in.Body, in.ProcessedFlag, s.now().UTC(), in.UserID, id)
		if err != nil {
			return fmt.Errorf("failed to update note %d: %w", id, err)
		}

		updated, err = getNote(ctx, tx, id)
		return err
	})
	if err != nil {
		return Note{}, err
	}
	return updated, nil
}

func (s *NoteService) Delete(ctx context.Context, id int64, reason Reason) (NoteHistory, error) {
	if err := removalReason(reason); err != nil {
		return NoteHistory{}, err
	}

	var entry NoteHistory
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		current, err := getNote(ctx, tx, id)
		if err != nil {
			return err
		}

		entry, err = appendNoteHistory(ctx, tx, current, reason)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete note %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return NoteHistory{}, err
	}

	log.WithFields(log.Fields{"note_id": id, "reason": reason.String()}).Info("note removed")
	return entry, nil
}

func (s *NoteService) History(ctx context.Context, id int64) ([]NoteHistory, error) {
	entries := []NoteHistory{}
	err := s.db.SelectContext(ctx, &entries, `
		SELECT note_id, history_seq, body, created_at, updated_at, processed_flag, user_id
		FROM note_history WHERE note_id = ? ORDER BY history_seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list note history: %w", err)
	}
	if len(entries) == 0 {
		if _, err := getNote(ctx, s.db, id); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// ListForUser returns every note of userID ordered by id.
func (s *NoteService) ListForUser(ctx context.Context, userID string) ([]Note, error) {
	notes := []Note{}
	err := s.db.SelectContext(ctx, &notes, "SELECT "+noteColumns+" FROM notes WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes for user %s: %w", userID, err)
	}
	return notes, nil
}
