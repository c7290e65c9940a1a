package handlers

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/CrowderSoup/scheduler/database"
	"github.com/CrowderSoup/scheduler/services"
	"github.com/CrowderSoup/scheduler/validation"
)

// AuthHandler handles authentication-related endpoints
type AuthHandler struct {
	authService *services.AuthService
	users       *database.UserService
}

func NewAuthHandler(authService *services.AuthService, users *database.UserService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		users:       users,
	}
}

// Login exchanges a user id and password for a bearer token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"userId"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	errs := validation.FieldErrors{}
	if req.UserID == "" {
		errs.Add("userId", "This field is required.")
	}
	if req.Password == "" {
		errs.Add("password", "This field is required.")
	}
	if len(errs) > 0 {
		writeError(w, r, errs)
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.UserID, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, err := h.authService.CreateJWT(user.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.Printf("User %s logged in", user.UserID)
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  publicUser(user),
	})
}

// VerifyToken checks if a JWT token is valid
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	tokenString, err := bearerToken(r)
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
		return
	}

	userID, err := h.authService.VerifyJWT(tokenString)
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "Invalid token.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"userId": userID,
		"status": "valid",
	})
}
