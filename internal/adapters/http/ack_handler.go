package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/bft-labs/actlife/pkg/activity"
	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/configuration"
	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/log"
)

// Engine is the part of the activity engine reachable from clients.
type Engine interface {
	OnClientAcknowledged(tok activity.Token, kind activity.AckKind, payload activity.AckPayload) error
	AttachProcess(name string, handle client.Handle, sandboxed bool) error
	HandleAppDied(process string) error
	RequestFinish(tok activity.Token, resultCode int, data, reason string) (activity.FinishResult, error)
	SetDisplayConfiguration(displayID int, cfg configuration.Configuration) error
	StartActivity(req activity.StartRequest) (activity.Token, error)
	Activity(tok activity.Token) (activity.Snapshot, error)
}

// AckRequest is the body of POST /v1/acks.
type AckRequest struct {
	Token           activity.Token   `json:"token"`
	Ack             activity.AckKind `json:"ack"`
	SavedState      []byte           `json:"savedState,omitempty"`
	PersistentState []byte           `json:"persistentState,omitempty"`
}

// AttachRequest is the body of POST /v1/processes.
type AttachRequest struct {
	Name      string        `json:"name"`
	Endpoint  client.Handle `json:"endpoint"`
	Sandboxed bool          `json:"sandboxed,omitempty"`
}

// FinishRequest is the body of POST /v1/activities/{token}/finish.
type FinishRequest struct {
	ResultCode int    `json:"resultCode"`
	Data       string `json:"data,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// DisplayRequest is the body of PUT /v1/displays/{id}. Rotation is in
// degrees.
type DisplayRequest struct {
	Seq       int     `json:"seq,omitempty"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Density   int     `json:"density,omitempty"`
	Rotation  int     `json:"rotation,omitempty"`
	UIMode    string  `json:"uiMode,omitempty"`
	FontScale float64 `json:"fontScale,omitempty"`
	Locale    string  `json:"locale,omitempty"`
}

// StartRequest is the body of POST /v1/activities.
type StartRequest struct {
	Task        activity.TaskID `json:"task,omitempty"`
	Display     int             `json:"display,omitempty"`
	Info        activity.Info   `json:"info"`
	Intent      client.Intent   `json:"intent,omitempty"`
	ResultTo    activity.Token  `json:"resultTo,omitempty"`
	RequestCode int             `json:"requestCode,omitempty"`
	ResultWho   string          `json:"resultWho,omitempty"`
}

// ActivityResponse is the body returned by GET /v1/activities/{token}.
type ActivityResponse struct {
	Token       activity.Token  `json:"token"`
	Task        activity.TaskID `json:"task"`
	Component   string          `json:"component"`
	Process     string          `json:"process"`
	State       lifecycle.State `json:"state"`
	Finishing   bool            `json:"finishing,omitempty"`
	Visible     bool            `json:"visible,omitempty"`
	LaunchCount int             `json:"launchCount"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves the client-facing API: acknowledgements, process
// registration and finish requests.
type Handler struct {
	engine Engine
	sender *Sender
	logger log.Logger
	mux    *http.ServeMux

	mu    sync.Mutex
	procs map[client.Handle]string
}

// NewHandler routes client requests to engine. When sender is non-nil an
// attaching process has its gone mark cleared.
func NewHandler(engine Engine, sender *Sender, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	h := &Handler{
		engine: engine,
		sender: sender,
		logger: logger,
		mux:    http.NewServeMux(),
		procs:  make(map[client.Handle]string),
	}
	h.mux.HandleFunc("POST /v1/acks", h.ack)
	h.mux.HandleFunc("POST /v1/processes", h.attach)
	h.mux.HandleFunc("POST /v1/processes/{name}/died", h.died)
	h.mux.HandleFunc("PUT /v1/displays/{id}", h.display)
	h.mux.HandleFunc("POST /v1/activities", h.start)
	h.mux.HandleFunc("GET /v1/activities/{token}", h.getActivity)
	h.mux.HandleFunc("POST /v1/activities/{token}/finish", h.finish)
	h.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// ProcessFor returns the process last registered at endpoint.
func (h *Handler) ProcessFor(endpoint client.Handle) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	name, ok := h.procs[endpoint]
	return name, ok
}

func (h *Handler) ack(w http.ResponseWriter, r *http.Request) {
	var req AckRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.engine.OnClientAcknowledged(req.Token, req.Ack, activity.AckPayload{
		SavedState:      req.SavedState,
		PersistentState: req.PersistentState,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) attach(w http.ResponseWriter, r *http.Request) {
	var req AttachRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.Endpoint == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name and endpoint are required"})
		return
	}
	if h.sender != nil {
		h.sender.Forget(req.Endpoint)
	}
	if err := h.engine.AttachProcess(req.Name, req.Endpoint, req.Sandboxed); err != nil {
		h.fail(w, err)
		return
	}
	h.mu.Lock()
	h.procs[req.Endpoint] = req.Name
	h.mu.Unlock()
	h.logger.Debug("process endpoint registered",
		log.String("process", req.Name),
		log.String("endpoint", string(req.Endpoint)),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) died(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.HandleAppDied(r.PathValue("name")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) display(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "display id must be a non-negative integer"})
		return
	}
	var req DisplayRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "width and height must be positive"})
		return
	}
	rot, err := configuration.RotationFromDegrees(req.Rotation)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	cfg := configuration.Display{
		Width:     req.Width,
		Height:    req.Height,
		Density:   req.Density,
		Rotation:  rot,
		UIMode:    configuration.ParseUIModeType(req.UIMode),
		FontScale: req.FontScale,
		Locale:    req.Locale,
	}.Configuration(req.Seq)
	if err := h.engine.SetDisplayConfiguration(id, cfg); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if !decode(w, r, &req) {
		return
	}
	tok, err := h.engine.StartActivity(activity.StartRequest{
		TaskID:      req.Task,
		DisplayID:   req.Display,
		Info:        req.Info,
		Intent:      req.Intent,
		ResultTo:    req.ResultTo,
		RequestCode: req.RequestCode,
		ResultWho:   req.ResultWho,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]activity.Token{"token": tok})
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Activity(activity.Token(r.PathValue("token")))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ActivityResponse{
		Token:       snap.Token,
		Task:        snap.Task,
		Component:   snap.Component,
		Process:     snap.Process,
		State:       snap.State,
		Finishing:   snap.Finishing,
		Visible:     snap.Visible,
		LaunchCount: snap.LaunchCount,
	})
}

func (h *Handler) finish(w http.ResponseWriter, r *http.Request) {
	var req FinishRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.RequestFinish(activity.Token(r.PathValue("token")), req.ResultCode, req.Data, req.Reason)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": res.String()})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, activity.ErrUnknownActivity), errors.Is(err, activity.ErrUnknownProcess),
		errors.Is(err, activity.ErrUnknownTask), errors.Is(err, activity.ErrUnknownDisplay):
		status = http.StatusNotFound
	case errors.Is(err, activity.ErrInvalidRequest):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("client request failed", log.Err(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
