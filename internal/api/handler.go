package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/honeycomb/internal/agent"
	"github.com/nidhogg/honeycomb/internal/command"
	"github.com/nidhogg/honeycomb/internal/contextdb"
	"github.com/nidhogg/honeycomb/internal/coordinator"
	"github.com/nidhogg/honeycomb/internal/notify"
	"github.com/nidhogg/honeycomb/internal/task"
	"go.uber.org/zap"
)

const defaultContextLimit = 10

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	tasks    *task.Queue
	agents   *agent.Registry
	cx       *contextdb.Store
	coord    *coordinator.Coordinator
	commands *command.Registry
	events   *notify.Broadcaster
	logger   *zap.Logger
}

// NewHandler creates a new API handler. commands and events may be nil.
func NewHandler(
	tasks *task.Queue,
	agents *agent.Registry,
	cx *contextdb.Store,
	coord *coordinator.Coordinator,
	commands *command.Registry,
	events *notify.Broadcaster,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		tasks:    tasks,
		agents:   agents,
		cx:       cx,
		coord:    coord,
		commands: commands,
		events:   events,
		logger:   logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Get("/tasks", h.listTasks)
		r.Post("/tasks", h.createTask)
		r.Get("/tasks/{id}", h.getTask)
		r.Post("/tasks/{id}/run", h.runTask)

		r.Get("/agents", h.listAgents)
		r.Post("/agents", h.registerAgent)
		r.Get("/agents/{id}", h.getAgent)

		r.Post("/process", h.processPending)
		r.Get("/context", h.latestContext)
		r.Post("/context", h.appendContext)
		r.Post("/summary", h.summarize)

		r.Post("/command", h.runCommand)
		r.Get("/events", h.listEvents)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.ListByStatus(r.Context(), task.Status(r.URL.Query().Get("status")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

type createTaskRequest struct {
	Description string         `json:"description"`
	Type        string         `json:"type"`
	Params      map[string]any `json:"params"`
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Type) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type is required"})
		return
	}
	id, err := h.tasks.Create(r.Context(), req.Description, req.Type, req.Params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	t, err := h.tasks.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.tasks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) runTask(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.coord.RunTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) listAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.agents.List())
}

type registerAgentRequest struct {
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

func (h *Handler) registerAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Name == "" || req.Specialty == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and specialty are required"})
		return
	}
	id, err := h.agents.Register(r.Context(), req.Name, req.Specialty)
	if err != nil {
		h.writeError(w, err)
		return
	}
	a, _ := h.agents.Get(id)
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) getAgent(w http.ResponseWriter, r *http.Request) {
	a, ok := h.agents.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": agent.ErrNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) processPending(w http.ResponseWriter, r *http.Request) {
	report, err := h.coord.ProcessPending(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) latestContext(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r, defaultContextLimit)
	if !ok {
		return
	}
	entries, err := h.cx.Latest(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type appendContextRequest struct {
	Content string `json:"content"`
	Type    string `json:"type"`
	TaskID  string `json:"task_id"`
}

func (h *Handler) appendContext(w http.ResponseWriter, r *http.Request) {
	var req appendContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	id, err := h.cx.Append(r.Context(), contextdb.Entry{Content: req.Content, Type: req.Type, TaskID: req.TaskID})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

type summaryRequest struct {
	Limit int `json:"limit"`
}

type summaryResponse struct {
	Task    *task.Task          `json:"task,omitempty"`
	Outcome coordinator.Outcome `json:"outcome"`
}

func (h *Handler) summarize(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}
	t, outcome, err := h.coord.Summarize(r.Context(), req.Limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{Task: t, Outcome: outcome})
}

type commandRequest struct {
	Command  string `json:"command"`
	UserName string `json:"user_name,omitempty"`
}

func (h *Handler) runCommand(w http.ResponseWriter, r *http.Request) {
	if h.commands == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "commands not initialized"})
		return
	}
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	res, err := h.commands.Dispatch(r.Context(), req.Command, &command.CommandContext{Source: "api", UserName: req.UserName})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeJSON(w, http.StatusOK, []notify.Event{})
		return
	}
	limit, ok := queryLimit(w, r, 50)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.events.History(limit))
}

func queryLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
		return 0, false
	}
	return n, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, task.ErrNotFound), errors.Is(err, agent.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, task.ErrInvalidTransition):
		status = http.StatusConflict
	default:
		h.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
