package handlers

import (
	"net/http"

	"github.com/CrowderSoup/scheduler/database"
)

// TaskHandler serves the /tasks/ endpoints.
type TaskHandler struct {
	tasks   *database.TaskService
	events  Publisher
	lenient bool
}

func NewTaskHandler(tasks *database.TaskService, events Publisher, lenient bool) *TaskHandler {
	return &TaskHandler{
		tasks:   tasks,
		events:  events,
		lenient: lenient,
	}
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	in := database.NewTaskInput()
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	task, err := h.tasks.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	publish(h.events, "task.created", task, task.UserID)
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	task, err := h.tasks.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Update applies the body to the task. tasktitle must be sent; other fields
// missing from the body keep their current value.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	task, err := h.tasks.Modify(r.Context(), id, func(in *database.TaskInput) error {
		in.Title = ""
		return decodeInto(body, in)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	publish(h.events, "task.updated", task, task.UserID)
	writeJSON(w, http.StatusOK, task)
}

// Patch changes only the fields present in the body.
func (h *TaskHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	task, err := h.tasks.Modify(r.Context(), id, func(in *database.TaskInput) error {
		return decodeInto(body, in)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	publish(h.events, "task.updated", task, task.UserID)
	writeJSON(w, http.StatusOK, task)
}

// Delete removes the task. The reason query parameter is completed (the
// default) or deleted.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	reason, err := deleteReason(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := h.tasks.Delete(r.Context(), id, reason)
	if err != nil {
		writeError(w, r, err)
		return
	}

	publish(h.events, "task."+reason.String(), entry, entry.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	history, err := h.tasks.History(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// ForUser lists a user's tasks. sort_state=0 orders by priority first, any
// other value by deadline first; display_state=1 hides low priority tasks
// without a deadline.
func (h *TaskHandler) ForUser(w http.ResponseWriter, r *http.Request) {
	params, ok, err := requireQuery(r, h.lenient, "id", "sort_state", "display_state")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	query := database.TaskQuery{
		UserID:      params["id"],
		Sort:        database.SortByDeadline,
		HideUndated: params["display_state"] == "1",
	}
	if params["sort_state"] == "0" {
		query.Sort = database.SortByPriority
	}

	listing, err := h.tasks.ListForUser(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// CountForUser returns, per priority, the number of the user's tasks due on
// each of the next seven days.
func (h *TaskHandler) CountForUser(w http.ResponseWriter, r *http.Request) {
	params, ok, err := requireQuery(r, h.lenient, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	counts, err := h.tasks.CountByDay(r.Context(), params["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func deleteReason(r *http.Request) (database.Reason, error) {
	raw := r.URL.Query().Get("reason")
	if raw == "" {
		return database.ReasonCompleted, nil
	}
	return database.ParseReason(raw)
}
