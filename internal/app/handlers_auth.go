package app

import (
	"errors"
	"net/http"

	"timecard/internal/domain"
)

type credentialsRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Email    *string `json:"email"`
}

func (a *App) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, "message", err)
		return
	}
	_, err := a.auth.Register(r.Context(), req.Username, req.Password, req.Email)
	if errors.Is(err, domain.ErrConflict) {
		writeMessage(w, http.StatusConflict, "message", "User already exists")
		return
	}
	if err != nil {
		a.writeError(w, r, "message", err)
		return
	}
	writeMessage(w, http.StatusCreated, "message", "User created successfully")
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusUnauthorized, "message", "Invalid request")
		return
	}
	pair, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, domain.ErrUnauthorized) {
		writeMessage(w, http.StatusUnauthorized, "message", "Bad username or password")
		return
	}
	if err != nil {
		a.writeError(w, r, "message", err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (a *App) refresh(w http.ResponseWriter, r *http.Request) {
	token, err := a.auth.Refresh(r.Context(), userID(r))
	if err != nil {
		a.writeError(w, r, "message", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
}
