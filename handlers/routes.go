package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CrowderSoup/scheduler/database"
	"github.com/CrowderSoup/scheduler/services"
)

// Deps are the services the router dispatches to. Hub may be nil, in which
// case no change events are published and /ws/ is not served.
type Deps struct {
	Users              *database.UserService
	Tasks              *database.TaskService
	Notes              *database.NoteService
	Auth               *services.AuthService
	Hub                *services.Hub
	AuthEnabled        bool
	LenientQueryParams bool
}

// NewRouter wires every route of the API.
func NewRouter(deps Deps) *mux.Router {
	var events Publisher
	if deps.Hub != nil {
		events = deps.Hub
	}

	authMiddleware := NewAuthMiddleware(deps.Auth, deps.AuthEnabled)
	authHandler := NewAuthHandler(deps.Auth, deps.Users)
	userHandler := NewUserHandler(deps.Users, events)
	taskHandler := NewTaskHandler(deps.Tasks, events, deps.LenientQueryParams)
	noteHandler := NewNoteHandler(deps.Notes, events, deps.LenientQueryParams)

	r := mux.NewRouter()
	r.Use(RequestID, Instrument)

	// Public routes
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/auth/login/", authHandler.Login).Methods(http.MethodPost)
	r.HandleFunc("/auth/verify/", authHandler.VerifyToken).Methods(http.MethodGet)

	// Protected routes
	api := r.NewRoute().Subrouter()
	api.Use(authMiddleware.Auth)

	api.HandleFunc("/users/", userHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/users/", userHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/users/{id}/", userHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/", userHandler.Update).Methods(http.MethodPut)
	api.HandleFunc("/users/{id}/", userHandler.Patch).Methods(http.MethodPatch)
	api.HandleFunc("/users/{id}/", userHandler.Delete).Methods(http.MethodDelete)

	// Custom list routes come before the {id} routes
	api.HandleFunc("/tasks/get_tasks_for_user/", taskHandler.ForUser).Methods(http.MethodGet)
	api.HandleFunc("/tasks/get_tasks_count_for_user/", taskHandler.CountForUser).Methods(http.MethodGet)
	api.HandleFunc("/tasks/", taskHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/tasks/", taskHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id:[0-9]+}/", taskHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id:[0-9]+}/", taskHandler.Update).Methods(http.MethodPut)
	api.HandleFunc("/tasks/{id:[0-9]+}/", taskHandler.Patch).Methods(http.MethodPatch)
	api.HandleFunc("/tasks/{id:[0-9]+}/", taskHandler.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{id:[0-9]+}/history/", taskHandler.History).Methods(http.MethodGet)

	api.HandleFunc("/notes/get_notes_for_user/", noteHandler.ForUser).Methods(http.MethodGet)
	api.HandleFunc("/notes/", noteHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/notes/", noteHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/notes/{id:[0-9]+}/", noteHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/notes/{id:[0-9]+}/", noteHandler.Update).Methods(http.MethodPut)
	api.HandleFunc("/notes/{id:[0-9]+}/", noteHandler.Patch).Methods(http.MethodPatch)
	api.HandleFunc("/notes/{id:[0-9]+}/", noteHandler.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/notes/{id:[0-9]+}/history/", noteHandler.History).Methods(http.MethodGet)

	if deps.Hub != nil {
		api.HandleFunc("/ws/", NewEventHandler(deps.Hub).HandleWebSocket).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not found.")
	})

	return r
}
