package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/famtree/pkg/chart"
	"github.com/matzehuels/famtree/pkg/errors"
	"github.com/matzehuels/famtree/pkg/payload"
	"github.com/matzehuels/famtree/pkg/session"
	"github.com/matzehuels/famtree/pkg/viewport"
)

const maxBodyBytes = 64 << 10

type openRequest struct {
	Root     string `json:"root"`
	Depth    *int   `json:"depth,omitempty"`
	MaxNodes int    `json:"max_nodes,omitempty"`
}

type expandable struct {
	Family          string `json:"family"`
	MissingParents  int    `json:"missing_parents"`
	MissingChildren int    `json:"missing_children"`
}

type summary struct {
	ID         string         `json:"id"`
	Root       string         `json:"root"`
	Revision   int            `json:"revision"`
	Selection  string         `json:"selection,omitempty"`
	Status     string         `json:"status,omitempty"`
	Busy       bool           `json:"busy"`
	Nodes      int            `json:"nodes"`
	Edges      int            `json:"edges"`
	View       *viewport.View `json:"view,omitempty"`
	Expandable []expandable   `json:"expandable"`
	ExpiresAt  time.Time      `json:"expires_at"`
}

type eventResponse struct {
	Update    *chart.Update  `json:"update"`
	Revision  int            `json:"revision"`
	Selection string         `json:"selection,omitempty"`
	Status    string         `json:"status,omitempty"`
	View      *viewport.View `json:"view,omitempty"`
}

type errorResponse struct {
	Code      string `json:"code"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "request body must be JSON with a root person id"))
		return
	}
	depth := -1
	if req.Depth != nil {
		depth = *req.Depth
	}

	st, err := s.dispatcher.Open(r.Context(), req.Root, depth, req.MaxNodes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess := session.New(st, s.cfg.TTL)
	if err := s.store.Set(r.Context(), sess); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "save chart"))
		return
	}
	w.Header().Set("Location", "/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, s.summarize(sess))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess, err := session.Load(r.Context(), s.store, chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.summarize(sess))
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	sess, err := session.Load(r.Context(), s.store, chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.Delete(r.Context(), sess.ID); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "delete chart"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	sess, err := session.Load(r.Context(), s.store, chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.dispatcher.Document(r.Context(), sess.Chart)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "read event"))
		return
	}
	ev, err := chart.DecodeEvent(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := session.Load(ctx, s.store, chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	base := sess.Chart.Revision

	up, err := s.dispatcher.Dispatch(ctx, sess.Chart, ev)
	if err != nil {
		// The status message of a failed event is kept with the chart.
		if !errors.Is(err, errors.ErrCodeBusy) {
			if saveErr := s.save(r, sess, base); saveErr != nil {
				s.logger.Debug("status not saved", "session", sess.ID, "error", saveErr)
			}
		}
		s.writeError(w, r, err)
		return
	}
	if err := s.save(r, sess, base); err != nil {
		s.writeError(w, r, err)
		return
	}
	st := sess.Chart
	writeJSON(w, http.StatusOK, eventResponse{
		Update:    up,
		Revision:  st.Revision,
		Selection: st.Selection,
		Status:    st.Status,
		View:      st.View,
	})
}

// save writes sess back unless another request re-laid the chart out since
// it was loaded at revision base.
func (s *Server) save(r *http.Request, sess *session.Session, base int) error {
	ctx := r.Context()
	stored, err := s.store.Get(ctx, sess.ID)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "load chart")
	}
	if stored != nil && stored.Chart.Revision != base {
		return errors.New(errors.ErrCodeBusy, "the chart changed while this event was applied; reload it")
	}
	sess.Touch(s.cfg.TTL)
	if err := s.store.Set(ctx, sess); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "save chart")
	}
	return nil
}

func (s *Server) summarize(sess *session.Session) summary {
	st := sess.Chart
	x := payload.NewIndex(st.Payload)
	out := summary{
		ID:         sess.ID,
		Root:       st.Root,
		Revision:   st.Revision,
		Selection:  st.Selection,
		Status:     st.Status,
		Busy:       s.dispatcher.Busy(st.ID),
		Nodes:      x.Len(),
		Edges:      len(x.Edges()),
		View:       st.View,
		Expandable: []expandable{},
		ExpiresAt:  sess.ExpiresAt,
	}
	for _, e := range x.Partial() {
		out.Expandable = append(out.Expandable, expandable{
			Family:          e.Family,
			MissingParents:  e.MissingParents(),
			MissingChildren: e.MissingChildren(),
		})
	}
	return out
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{
		Code:      string(code),
		Error:     errors.UserMessage(err),
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
