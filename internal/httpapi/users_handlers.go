package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"adminconsole.org/internal/audit"
	"adminconsole.org/internal/authz"
	"adminconsole.org/internal/directory"
	"adminconsole.org/internal/ids"
	"adminconsole.org/internal/sessionsvc"
)

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	r, user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.listUsers(w, r, user)
	case http.MethodPost:
		a.createUser(w, r, user)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	r, user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getUser(w, r, user, id)
	case http.MethodPut:
		a.updateUser(w, r, user, id)
	case http.MethodDelete:
		a.deleteUser(w, r, user, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request, user authz.User) {
	if !requirePermission(w, r, user, authz.PermUsersRead) {
		return
	}
	users, err := a.dir.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "list failed")
		return
	}
	if users == nil {
		users = []*directory.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, user authz.User, id string) {
	if !requirePermission(w, r, user, authz.PermUsersRead) {
		return
	}
	rec, err := a.dir.Find(r.Context(), id)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request, user authz.User) {
	if !requirePermission(w, r, user, authz.PermUsersWrite) {
		return
	}
	var req directory.CreateUser
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = directory.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}
	hash, err := sessionsvc.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "create failed")
		return
	}
	rec := &directory.User{
		ID:           ids.New(),
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     req.IsActive,
		Roles:        req.Roles,
		CreatedAt:    time.Now().UTC(),
		PasswordHash: hash,
	}
	if err := a.dir.Create(r.Context(), rec); err != nil {
		if errors.Is(err, directory.ErrAlreadyExists) {
			writeError(w, r, http.StatusConflict, "email already registered")
			return
		}
		if errors.Is(err, directory.ErrInvalidInput) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, "create failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "users.created", map[string]any{
		"target_id":    rec.ID,
		"target_email": rec.Email,
	})
	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, user authz.User, id string) {
	if !requirePermission(w, r, user, authz.PermUsersWrite) {
		return
	}
	var req directory.UpdateUser
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := a.dir.Find(r.Context(), id)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "lookup failed")
		return
	}
	if req.Email != nil {
		rec.Email = directory.NormalizeEmail(*req.Email)
	}
	if req.FirstName != nil {
		rec.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		rec.LastName = *req.LastName
	}
	if req.IsActive != nil {
		rec.IsActive = *req.IsActive
	}
	if req.Roles != nil {
		rec.Roles = *req.Roles
	}
	if err := a.dir.Update(r.Context(), rec); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not found")
			return
		}
		if errors.Is(err, directory.ErrAlreadyExists) {
			writeError(w, r, http.StatusConflict, "email already registered")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "update failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "users.updated", map[string]any{"target_id": rec.ID})
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, user authz.User, id string) {
	if !requirePermission(w, r, user, authz.PermUsersWrite) {
		return
	}
	if id == user.ID {
		writeError(w, r, http.StatusBadRequest, "cannot delete your own account")
		return
	}
	if err := a.dir.Delete(r.Context(), id); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "delete failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "users.deleted", map[string]any{"target_id": id})
	w.WriteHeader(http.StatusNoContent)
}
