package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/nhle/studysync/internal/model"
	"github.com/nhle/studysync/internal/store"
	"github.com/nhle/studysync/internal/tasks"
)

func (s *server) listTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := taskFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list, err := s.Tasks.List(r.Context(), ownerFrom(r), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, orEmpty(list))
}

func taskFilter(r *http.Request) (store.TaskFilter, error) {
	q := r.URL.Query()
	f := store.TaskFilter{SortBy: q.Get("sort"), SortDesc: q.Get("order") == "desc"}
	if v := q.Get("status"); v != "" {
		st := model.TaskStatus(v)
		f.Status = &st
	}
	if v := q.Get("priority"); v != "" {
		p := model.Priority(v)
		f.Priority = &p
	}
	if v := q.Get("q"); v != "" {
		f.Query = &v
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("%w: %s must be a non-negative integer", errBadInput, name)
		}
		*dst = n
	}
	return f, nil
}

func (s *server) createTask(w http.ResponseWriter, r *http.Request) {
	var in tasks.CreateInput
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	task, err := s.Tasks.Create(r.Context(), ownerFrom(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, task)
}

func (s *server) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.Tasks.Get(r.Context(), ownerFrom(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, task)
}

func (s *server) updateTask(w http.ResponseWriter, r *http.Request) {
	var in tasks.UpdateInput
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	task, err := s.Tasks.Update(r.Context(), ownerFrom(r), mux.Vars(r)["id"], in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, task)
}

func (s *server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.Tasks.Delete(r.Context(), ownerFrom(r), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) setTaskStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status model.TaskStatus `json:"status"`
	}
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	task, err := s.Tasks.SetStatus(r.Context(), ownerFrom(r), mux.Vars(r)["id"], body.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, task)
}

func (s *server) addSubtask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	task, err := s.Tasks.AddSubtask(r.Context(), ownerFrom(r), mux.Vars(r)["id"], body.Title)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, task)
}

func (s *server) toggleSubtask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	task, err := s.Tasks.ToggleSubtask(r.Context(), ownerFrom(r), vars["id"], vars["sid"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, task)
}

func (s *server) removeSubtask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	task, err := s.Tasks.RemoveSubtask(r.Context(), ownerFrom(r), vars["id"], vars["sid"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, task)
}
