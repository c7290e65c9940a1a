package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrowderSoup/scheduler/database"
)

func TestTaskLifecycle(t *testing.T) {
	deps := newTestDeps(t)
	seedUser(t, deps, "alice")
	router := NewRouter(deps)

	rec := do(t, router, http.MethodPost, "/tasks/", map[string]any{
		"tasktitle": "Write report",
		"detail":    "quarterly numbers",
		"priority":  2,
		"deadline":  "2030-01-15",
		"user":      "alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[database.Task](t, rec)
	assert.NotZero(t, created.ID)
	assert.Equal(t, database.PriorityWaiting, created.Priority)

	taskPath := fmt.Sprintf("/tasks/%d/", created.ID)

	rec = do(t, router, http.MethodGet, taskPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fetched := decode[database.Task](t, rec)
	assert.Equal(t, "Write report", fetched.Title)
	assert.Equal(t, "quarterly numbers", *fetched.Detail)
	assert.Equal(t, "2030-01-15", fetched.Deadline.String())
	assert.Equal(t, "alice", *fetched.UserID)

	rec = do(t, router, http.MethodPatch, taskPath, `{"priority": 1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patched := decode[database.Task](t, rec)
	assert.Equal(t, database.PriorityUrgent, patched.Priority)
	assert.Equal(t, "Write report", patched.Title)
	assert.Equal(t, "quarterly numbers", *patched.Detail)

	rec = do(t, router, http.MethodPut, taskPath, map[string]any{
		"tasktitle": "Write final report",
		"priority":  3,
		"user":      "alice",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	replaced := decode[database.Task](t, rec)
	assert.Equal(t, "Write final report", replaced.Title)
	assert.Equal(t, database.PriorityLow, replaced.Priority)
	require.NotNil(t, replaced.Detail)
	assert.Equal(t, "quarterly numbers", *replaced.Detail)
	require.NotNil(t, replaced.Deadline)
	assert.Equal(t, "2030-01-15", replaced.Deadline.String())

	rec = do(t, router, http.MethodGet, taskPath+"history/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]database.TaskHistory](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, int64(1), history[0].HistorySeq)
	assert.Equal(t, database.PriorityWaiting, history[0].Priority)
	assert.Equal(t, database.ReasonUpdated, history[0].Reason)
	assert.Equal(t, int64(2), history[1].HistorySeq)
	assert.Equal(t, database.PriorityUrgent, history[1].Priority)

	rec = do(t, router, http.MethodDelete, taskPath+"?reason=deleted", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(t, router, http.MethodGet, taskPath, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail": "Not found."}`, rec.Body.String())

	rec = do(t, router, http.MethodGet, taskPath+"history/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history = decode[[]database.TaskHistory](t, rec)
	require.Len(t, history, 3)
	assert.Equal(t, int64(3), history[2].HistorySeq)
	assert.Equal(t, database.ReasonDeleted, history[2].Reason)
	assert.Equal(t, "Write final report", history[2].Title)
}

func TestPutTaskKeepsOmittedFields(t *testing.T) {
	deps := newTestDeps(t)
	seedUser(t, deps, "alice")
	router := NewRouter(deps)

	rec := do(t, router, http.MethodPost, "/tasks/", map[string]any{
		"tasktitle": "Book flights",
		"detail":    "window seat",
		"priority":  2,
		"deadline":  "2030-03-01",
		"user":      "alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	taskPath := fmt.Sprintf("/tasks/%d/", decode[database.Task](t, rec).ID)

	rec = do(t, router, http.MethodPut, taskPath, `{"tasktitle": "renamed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[database.Task](t, rec)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, database.PriorityWaiting, updated.Priority)
	require.NotNil(t, updated.UserID)
	assert.Equal(t, "alice", *updated.UserID)
	require.NotNil(t, updated.Detail)
	assert.Equal(t, "window seat", *updated.Detail)
	require.NotNil(t, updated.Deadline)
	assert.Equal(t, "2030-03-01", updated.Deadline.String())

	rec = do(t, router, http.MethodGet, "/tasks/get_tasks_for_user/?id=alice&sort_state=0&display_state=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decode[database.TaskListing](t, rec)
	require.Len(t, listing.Tasks, 1)
	assert.Equal(t, "renamed", listing.Tasks[0].Title)

	// PUT still requires the title.
	rec = do(t, router, http.MethodPut, taskPath, `{"priority": 3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string][]string](t, rec), "tasktitle")

	rec = do(t, router, http.MethodGet, taskPath+"history/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]database.TaskHistory](t, rec), 1)
}

func TestDeleteTaskDefaultsToCompleted(t *testing.T) {
	deps := newTestDeps(t)
	router := NewRouter(deps)

	rec := do(t, router, http.MethodPost, "/tasks/", `{"tasktitle": "Call bank"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[database.Task](t, rec)
	assert.Equal(t, database.PriorityUrgent, created.Priority)
	taskPath := fmt.Sprintf("/tasks/%d/", created.ID)

	rec = do(t, router, http.MethodDelete, taskPath+"?reason=updated", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string][]string](t, rec), "reason")

	rec = do(t, router, http.MethodGet, taskPath, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodDelete, taskPath, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodGet, taskPath+"history/", nil)
	history := decode[[]database.TaskHistory](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, int64(1), history[0].HistorySeq)
	assert.Equal(t, database.ReasonCompleted, history[0].Reason)
}

func TestTaskRequestErrors(t *testing.T) {
	deps := newTestDeps(t)
	router := NewRouter(deps)

	rec := do(t, router, http.MethodPost, "/tasks/", `{"tasktitle": "Seed"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	seeded := decode[database.Task](t, rec)
	seededPath := fmt.Sprintf("/tasks/%d/", seeded.ID)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		field  string
	}{
		{name: "missing title", method: http.MethodPost, path: "/tasks/", body: `{"priority": 2}`, status: http.StatusBadRequest, field: "tasktitle"},
		{name: "bad priority", method: http.MethodPost, path: "/tasks/", body: `{"tasktitle": "x", "priority": 7}`, status: http.StatusBadRequest, field: "priority"},
		{name: "unknown owner", method: http.MethodPost, path: "/tasks/", body: `{"tasktitle": "x", "user": "ghost"}`, status: http.StatusBadRequest, field: "user"},
		{name: "malformed json", method: http.MethodPost, path: "/tasks/", body: `{"tasktitle":`, status: http.StatusBadRequest, field: "detail"},
		{name: "bad date", method: http.MethodPatch, path: seededPath, body: `{"deadline": "tomorrow"}`, status: http.StatusBadRequest, field: "detail"},
		{name: "invalid patch", method: http.MethodPatch, path: seededPath, body: `{"tasktitle": ""}`, status: http.StatusBadRequest, field: "tasktitle"},
		{name: "unknown get", method: http.MethodGet, path: "/tasks/999/", status: http.StatusNotFound, field: "detail"},
		{name: "unknown patch", method: http.MethodPatch, path: "/tasks/999/", body: `{"priority": 2}`, status: http.StatusNotFound, field: "detail"},
		{name: "unknown delete", method: http.MethodDelete, path: "/tasks/999/", status: http.StatusNotFound, field: "detail"},
		{name: "unknown history", method: http.MethodGet, path: "/tasks/999/history/", status: http.StatusNotFound, field: "detail"},
		{name: "non numeric id", method: http.MethodGet, path: "/tasks/abc/", status: http.StatusNotFound, field: "detail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Contains(t, decode[map[string]any](t, rec), tt.field)
		})
	}

	// Failed requests leave no history behind.
	rec = do(t, router, http.MethodGet, seededPath+"history/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestTasksForUser(t *testing.T) {
	deps := newTestDeps(t)
	seedUser(t, deps, "alice")
	seedUser(t, deps, "bob")
	router := NewRouter(deps)

	day := today()
	create := func(title string, priority database.Priority, deadline, user string) {
		t.Helper()
		body := map[string]any{"tasktitle": title, "priority": priority, "user": user}
		if deadline != "" {
			body["deadline"] = deadline
		}
		rec := do(t, router, http.MethodPost, "/tasks/", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	create("overdue", database.PriorityUrgent, day.AddDays(-2).String(), "alice")
	create("today low", database.PriorityLow, day.String(), "alice")
	create("tomorrow urgent", database.PriorityUrgent, day.AddDays(1).String(), "alice")
	create("someday", database.PriorityLow, database.NoDeadline, "alice")
	create("today urgent", database.PriorityUrgent, day.String(), "alice")
	create("bob's", database.PriorityUrgent, day.String(), "bob")

	tests := []struct {
		name   string
		query  string
		titles []string
	}{
		{
			name:   "priority first",
			query:  "?id=alice&sort_state=0&display_state=0",
			titles: []string{"overdue", "today urgent", "tomorrow urgent", "today low", "someday"},
		},
		{
			name:   "deadline first",
			query:  "?id=alice&sort_state=1&display_state=0",
			titles: []string{"overdue", "today urgent", "today low", "tomorrow urgent", "someday"},
		},
		{
			name:   "hide undated",
			query:  "?id=alice&sort_state=0&display_state=1",
			titles: []string{"overdue", "today urgent", "tomorrow urgent", "today low"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, "/tasks/get_tasks_for_user/"+tt.query, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			listing := decode[database.TaskListing](t, rec)
			got := make([]string, 0, len(listing.Tasks))
			for _, task := range listing.Tasks {
				got = append(got, task.Title)
			}
			assert.Equal(t, tt.titles, got)
			assert.Equal(t, 2, listing.DueTodayCount)
		})
	}

	rec := do(t, router, http.MethodGet, "/tasks/get_tasks_for_user/?id=nobody&sort_state=0&display_state=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tasks": [], "due_today_count": 0}`, rec.Body.String())
}

func TestTasksForUserMissingParams(t *testing.T) {
	deps := newTestDeps(t)

	rec := do(t, NewRouter(deps), http.MethodGet, "/tasks/get_tasks_for_user/?id=alice", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errs := decode[map[string][]string](t, rec)
	assert.Equal(t, []string{"This field is required."}, errs["sort_state"])
	assert.Equal(t, []string{"This field is required."}, errs["display_state"])
	assert.NotContains(t, errs, "id")

	rec = do(t, NewRouter(deps), http.MethodGet, "/tasks/get_tasks_count_for_user/", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	deps.LenientQueryParams = true
	lenient := NewRouter(deps)

	rec = do(t, lenient, http.MethodGet, "/tasks/get_tasks_for_user/?id=alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(t, lenient, http.MethodGet, "/tasks/get_tasks_count_for_user/", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTaskCountForUser(t *testing.T) {
	deps := newTestDeps(t)
	seedUser(t, deps, "alice")
	router := NewRouter(deps)

	day := today()
	for _, task := range []struct {
		priority database.Priority
		offset   int
	}{
		{database.PriorityUrgent, 0},
		{database.PriorityUrgent, 0},
		{database.PriorityWaiting, 3},
		{database.PriorityLow, 6},
		{database.PriorityLow, 7},
		{database.PriorityUrgent, -1},
	} {
		rec := do(t, router, http.MethodPost, "/tasks/", map[string]any{
			"tasktitle": "t",
			"priority":  task.priority,
			"deadline":  day.AddDays(task.offset).String(),
			"user":      "alice",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := do(t, router, http.MethodGet, "/tasks/get_tasks_count_for_user/?id=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"priority_1_count": [2, 0, 0, 0, 0, 0, 0],
		"priority_2_count": [0, 0, 0, 1, 0, 0, 0],
		"priority_3_count": [0, 0, 0, 0, 0, 0, 1]
	}`, rec.Body.String())
}
