package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"taskhive.org/internal/auth"
)

// addUserResponse carries the generated credential exactly once; it is
// never retrievable again.
type addUserResponse struct {
	User         *auth.User `json:"user"`
	TempPassword string     `json:"temp_password"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		users, err := a.identity.ListUsers(r.Context(), actor)
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		if users == nil {
			users = []*auth.User{}
		}
		writeJSON(w, http.StatusOK, users)
	case http.MethodPost:
		var req auth.AddUserInput
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, tempPassword, err := a.identity.AddUser(r.Context(), actor, req)
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
		writeJSON(w, http.StatusCreated, addUserResponse{User: user, TempPassword: tempPassword})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		if id == "me" {
			principal, _ := auth.PrincipalFromContext(r.Context())
			writeJSON(w, http.StatusOK, principal)
			return
		}
		user, err := a.identity.GetUser(r.Context(), actor, id)
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		if err := a.identity.RemoveUser(r.Context(), actor, id); err != nil {
			handleCoreError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}
