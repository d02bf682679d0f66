/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/friendsincode/worktime/internal/accounts"
)

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req accounts.NewUser
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := a.accounts.Register(r.Context(), actor(r), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username_and_password_required")
		return
	}

	res, err := a.accounts.Login(r.Context(), actor(r), req.Username, req.Password)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.accounts.Logout(r.Context(), actor(r)); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := a.accounts.Me(r.Context(), actor(r))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleListEngineers(w http.ResponseWriter, r *http.Request) {
	users, err := a.accounts.ListEngineers(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"engineers": users})
}
