package handlers

import (
	"net/http"

	"github.com/CrowderSoup/scheduler/database"
)

// NoteHandler serves the /notes/ endpoints.
type NoteHandler struct {
	notes   *database.NoteService
	events  Publisher
	lenient bool
}

func NewNoteHandler(notes *database.NoteService, events Publisher, lenient bool) *NoteHandler {
	return &NoteHandler{
		notes:   notes,
		events:  events,
		lenient: lenient,
	}
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	notes, err := h.notes.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	in := database.NewNoteInput()
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	note, err := h.notes.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	publish(h.events, "note.created", note, note.UserID)
	writeJSON(w, http.StatusCreated, note)
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	note, err := h.notes.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Update applies the body to the note. Fields missing from the body keep
// their current value.
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	note, err := h.notes.Modify(r.Context(), id, func(in *database.NoteInput) error {
		return decodeInto(body, in)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	publish(h.events, "note.updated", note, note.UserID)
	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) Patch(w http.ResponseWriter, r *http.Request) {
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

	note, err := h.notes.Modify(r.Context(), id, func(in *database.NoteInput) error {
		return decodeInto(body, in)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	publish(h.events, "note.updated", note, note.UserID)
	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	entry, err := h.notes.Delete(r.Context(), id, reason)
	if err != nil {
		writeError(w, r, err)
		return
	}

	publish(h.events, "note."+reason.String(), entry, entry.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *NoteHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	history, err := h.notes.History(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *NoteHandler) ForUser(w http.ResponseWriter, r *http.Request) {
	params, ok, err := requireQuery(r, h.lenient, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	notes, err := h.notes.ListForUser(r.Context(), params["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}
