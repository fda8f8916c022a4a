package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/optionsflow/optionsflow/src/eventconsumers"
	"github.com/optionsflow/optionsflow/src/experiment"
	"github.com/optionsflow/optionsflow/src/pipeline"
)

// Server exposes the pipeline and the experiment coordinator over HTTP.
// Failed runs come back as 200 with status=failed: the run boundary never
// throws, consumers branch on the status field.
type Server struct {
	orchestrator *pipeline.Orchestrator
	coordinator  *experiment.Coordinator
	source       eventconsumers.SnapshotSource
	profileA     experiment.Profile
	profileB     experiment.Profile
	decoder      *schema.Decoder
}

func NewServer(orchestrator *pipeline.Orchestrator, coordinator *experiment.Coordinator, source eventconsumers.SnapshotSource, profileA, profileB experiment.Profile) *Server {
	return &Server{
		orchestrator: orchestrator,
		coordinator:  coordinator,
		source:       source,
		profileA:     profileA,
		profileB:     profileB,
		decoder:      schema.NewDecoder(),
	}
}

func (s *Server) SetupRouter(router *mux.Router) {
	s.handle(router, http.MethodPost, "/scan/run", s.handleScanRun)
	s.handle(router, http.MethodPost, "/experiment/start", s.handleExperimentStart)
	s.handle(router, http.MethodPost, "/experiment/stop", s.handleExperimentStop)
	s.handle(router, http.MethodGet, "/experiment/status", s.handleExperimentStatus)
	s.handle(router, http.MethodPost, "/experiment/rollback", s.handleExperimentRollback)
}

func (s *Server) handle(router *mux.Router, method, pattern string, handlerFn http.HandlerFunc) {
	handler := otelhttp.WithRouteTag(pattern, handlerFn)
	router.Handle(pattern, handler).Methods(method)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Errorf("api: failed to encode response: %v", err)
	}
}

type errorDTO struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, statusCode int, err error) {
	log.Errorf("api: %v", err)
	writeJSON(w, statusCode, errorDTO{Error: err.Error()})
}

func (s *Server) handleScanRun(w http.ResponseWriter, r *http.Request) {
	snapshot, currentPrice, err := s.source.Next(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	result, err := s.orchestrator.Run(r.Context(), snapshot, currentPrice)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExperimentStart(w http.ResponseWriter, r *http.Request) {
	// the session must outlive this request
	session, err := s.coordinator.Start(context.Background(), s.profileA, s.profileB, s.source)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleExperimentStop(w http.ResponseWriter, r *http.Request) {
	summary, err := s.coordinator.Stop()
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

type experimentStatusRequest struct {
	Verbose bool `schema:"verbose"`
}

func (s *Server) handleExperimentStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var req experimentStatusRequest
	if err := s.decoder.Decode(&req, r.Form); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	status, err := s.coordinator.GetStatus()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if !req.Verbose {
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
	})
}

type rollbackRequest struct {
	Target string `json:"target"`
}

func (s *Server) handleExperimentRollback(w http.ResponseWriter, r *http.Request) {
	var req rollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.coordinator.ConfirmRollback(req.Target); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"rolled_back": req.Target})
}
