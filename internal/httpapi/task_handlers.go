package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"taskhive.org/internal/task"
)

// updateTaskRequest distinguishes an absent field from an explicit null.
// Raw messages are kept so "assignee_id": null can be told apart from a
// payload that never mentions the assignee.
type updateTaskRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Completed   *bool            `json:"completed"`
	AssigneeID  *json.RawMessage `json:"assignee_id"`
}

func (req updateTaskRequest) toUpdate() (task.Update, error) {
	upd := task.Update{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	}
	if req.AssigneeID != nil {
		upd.AssigneeSet = true
		if string(*req.AssigneeID) != "null" {
			var id string
			if err := json.Unmarshal(*req.AssigneeID, &id); err != nil {
				return task.Update{}, errors.New("assignee_id must be a string or null")
			}
			upd.AssigneeID = &id
		}
	}
	return upd, nil
}

func (a *API) handleTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		tasks, err := a.tasks.List(r.Context(), actor)
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		if tasks == nil {
			tasks = []*task.Task{}
		}
		writeJSON(w, http.StatusOK, tasks)
	case http.MethodPost:
		var req task.CreateInput
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		t, err := a.tasks.Create(r.Context(), actor, req)
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/v1/tasks/%s", t.ID))
		writeJSON(w, http.StatusCreated, t)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTaskResource(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/tasks/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		t, err := a.tasks.Get(r.Context(), actor, id)
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	case http.MethodPatch:
		var req updateTaskRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		upd, err := req.toUpdate()
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		t, err := a.tasks.ApplyUpdate(r.Context(), actor, id, upd)
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	case http.MethodDelete:
		if err := a.tasks.Delete(r.Context(), actor, id); err != nil {
			handleCoreError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}
