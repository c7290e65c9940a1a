package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 10, 9, 30, 0, 0, time.Local)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "scheduler.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestServices(t *testing.T) (*UserService, *TaskService, *NoteService) {
	t.Helper()
	db := newTestDB(t)
	tasks := NewTaskService(db)
	tasks.now = func() time.Time { return fixedNow }
	notes := NewNoteService(db)
	notes.now = func() time.Time { return fixedNow }
	return NewUserService(db), tasks, notes
}

func seedUser(t *testing.T, users *UserService, id string) {
	t.Helper()
	_, err := users.Create(context.Background(), UserInput{UserID: id, UserName: id + " name", Password: "secret"})
	require.NoError(t, err)
}

func strPtr(s string) *string {
	return &s
}

func datePtr(t *testing.T, value string) *Date {
	t.Helper()
	d, err := ParseDate(value)
	require.NoError(t, err)
	return &d
}

func titles(tasks []Task) []string {
	result := make([]string, 0, len(tasks))
	for _, task := range tasks {
		result = append(result, task.Title)
	}
	return result
}
