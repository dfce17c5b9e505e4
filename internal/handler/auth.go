package handler

import (
	"net/http"
	"time"

	"github.com/msomdec/snapgram/internal/queries"
	"github.com/msomdec/snapgram/internal/service"
)

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	q            *queries.Client
	cookieSecure bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(q *queries.Client, cookieSecure bool) *AuthHandler {
	return &AuthHandler{q: q, cookieSecure: cookieSecure}
}

// HandleRegister processes a JSON registration request.
// POST /api/auth/register
// Request:  {"name":"...","username":"...","email":"...","password":"..."}
// Response: {"user": {...}}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	user, err := h.q.CreateUserAccount(r.Context(), service.NewAccount{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, "register user", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user": toAccountDTO(user),
	})
}

// HandleLogin processes a JSON login request. The session token is set as
// the auth_token cookie and also returned for Bearer clients.
// POST /api/auth/login
// Request:  {"email":"...","password":"..."}
// Response: {"token":"...","expiresAt":"...","user": {...}}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	token, session, err := h.q.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, "login user", err)
		return
	}

	user, err := h.q.CurrentUser(r.Context(), token)
	if err != nil {
		writeServiceError(w, "get user after login", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  session.ExpiresAt,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresAt": session.ExpiresAt.Format(time.RFC3339),
		"user":      toAccountDTO(user),
	})
}

// HandleLogout revokes the session and clears the auth cookie.
// POST /api/auth/logout
// Response: 204 No Content
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.q.SignOut(r.Context(), TokenFromContext(r.Context())); err != nil {
		writeServiceError(w, "logout user", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the currently authenticated user with their saves.
// GET /api/auth/me
// Response: {"user": {...}} or 401
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user": toAccountDTO(user),
	})
}
