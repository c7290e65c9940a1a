package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/CrowderSoup/scheduler/database"
)

// UserHandler serves the /users/ endpoints. Passwords are never echoed back.
type UserHandler struct {
	users  *database.UserService
	events Publisher
}

func NewUserHandler(users *database.UserService, events Publisher) *UserHandler {
	return &UserHandler{
		users:  users,
		events: events,
	}
}

func publicUser(u database.User) database.User {
	u.Password = ""
	return u
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	for i := range users {
		users[i] = publicUser(users[i])
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in database.UserInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user = publicUser(user)
	publish(h.events, "user.created", user, &user.UserID)
	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, publicUser(user))
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	// The primary key is fixed; a body without userId is still complete.
	in := database.UserInput{UserID: userID}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.Update(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user = publicUser(user)
	publish(h.events, "user.updated", user, &user.UserID)
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Patch(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	body, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.Modify(r.Context(), userID, func(in *database.UserInput) error {
		return decodeInto(body, in)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	user = publicUser(user)
	publish(h.events, "user.updated", user, &user.UserID)
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	if err := h.users.Delete(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}

	publish(h.events, "user.deleted", map[string]string{"userId": userID}, &userID)
	w.WriteHeader(http.StatusNoContent)
}
