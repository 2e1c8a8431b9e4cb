package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/drylogs/internal/engine"
	"github.com/sells-group/drylogs/internal/model"
	"github.com/sells-group/drylogs/internal/store"
	"github.com/sells-group/drylogs/internal/workflow"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	filter := store.JobFilter{Status: model.JobStatus(r.URL.Query().Get("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, r, eris.Wrapf(engine.ErrInvalid, "api: unknown job status %q", filter.Status))
		return
	}
	var err error
	if filter.Limit, err = intParam(r, "limit"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.Offset, err = intParam(r, "offset"); err != nil {
		writeError(w, r, err)
		return
	}

	jobs, err := s.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var job model.Job
	if err := decode(w, r, &job); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.svc.Create(r.Context(), job, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	events, err := s.svc.Events(r.Context(), chi.URLParam(r, "jobID"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if events == nil {
		events = []store.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) sizeJob(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Size(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) sizeDraft(w http.ResponseWriter, r *http.Request) {
	var job model.Job
	if err := decode(w, r, &job); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.SizeJob(job))
}

func (s *Server) detectFlags(w http.ResponseWriter, r *http.Request) {
	flags, err := s.svc.DetectFlags(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if flags == nil {
		flags = []model.RedFlag{}
	}
	writeJSON(w, http.StatusOK, flags)
}

func (s *Server) priority(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Priority(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) curves(w http.ResponseWriter, r *http.Request) {
	curves, err := s.svc.DryingCurves(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, curves)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request) {
	var req workflow.Request
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.Transition(r.Context(), chi.URLParam(r, "jobID"), req, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) addVisit(w http.ResponseWriter, r *http.Request) {
	var v model.Visit
	if err := decode(w, r, &v); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := s.svc.AddVisit(r.Context(), chi.URLParam(r, "jobID"), v, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type holdRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) hold(w http.ResponseWriter, r *http.Request) {
	var req holdRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := s.svc.Hold(r.Context(), chi.URLParam(r, "jobID"), req.Reason, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) release(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.Release(r.Context(), chi.URLParam(r, "jobID"), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type resolveRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) resolveFlag(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := s.svc.ResolveFlag(r.Context(), chi.URLParam(r, "jobID"), chi.URLParam(r, "flagID"), req.Notes, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) rescan(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.Rescan(r.Context(), chi.URLParam(r, "jobID"), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type importResponse struct {
	Submitted int   `json:"submitted"`
	Written   int64 `json:"written"`
}

func (s *Server) importJobs(w http.ResponseWriter, r *http.Request) {
	var jobs []model.Job
	if err := decode(w, r, &jobs); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.svc.Import(r.Context(), jobs, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Submitted: len(jobs), Written: n})
}

func (s *Server) queue(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter := store.JobFilter{Status: model.JobStatus(r.URL.Query().Get("status"))}
	items, err := s.svc.ReviewQueue(r.Context(), filter, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) bottlenecks(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Bottlenecks(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) analytics(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Analytics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, eris.Wrapf(engine.ErrInvalid, "api: %s must be a non-negative integer", name)
	}
	return n, nil
}
