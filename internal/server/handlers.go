package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/muurk/botrelay/internal/api"
	"github.com/muurk/botrelay/internal/logging"
	"github.com/muurk/botrelay/internal/protocol"
	"github.com/muurk/botrelay/internal/relay"
)

// maxBodyBytes caps JSON request bodies on the command API.
const maxBodyBytes = 1 << 20

func (s *Server) routes() http.Handler {
	mux := chi.NewRouter()
	mux.Use(chimw.Recoverer)
	mux.Use(requestLogger)

	// Device connections
	mux.Get("/", s.handleWebSocket)
	mux.Get(api.PathWebSocket, s.handleWebSocket)

	mux.Get(api.PathHealth, s.handleHealth)
	mux.Get(api.PathStatus, s.handleStatus)
	mux.Handle(api.PathMetrics, s.metrics.Handler())

	mux.Post(api.PathLED, handleCommand(relay.CapabilityLED, s.controller.LED))
	mux.Post(api.PathDisplay, handleCommand(relay.CapabilityDisplay, s.controller.Display))
	mux.Post(api.PathServo, handleCommand(relay.CapabilityServo, s.controller.Servo))
	mux.Post(api.PathSend, s.handleSend)
	mux.Post(api.PathEvents, s.handleEvent)

	return mux
}

// requestLogger logs API requests at debug level. WebSocket upgrades are
// logged by the connection handler instead.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.Debug("HTTP request",
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
		)
	})
}

func websocketUpgrade(r *http.Request) bool {
	return r.Header.Get("Upgrade") != ""
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Status())
}

// handleCommand adapts a typed controller operation to a JSON route.
func handleCommand[C any](capability string, op func(ctx context.Context, user string, cmd C) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.CommandRequest[C]
		if err := decodeJSON(w, r, &req); err != nil {
			writeCommandError(w, http.StatusBadRequest, api.CodeBadRequest, err.Error())
			return
		}

		result, err := op(r.Context(), userOrDefault(req.User), req.Command)
		if err != nil {
			writeCommandFailure(w, capability, err)
			return
		}
		writeJSON(w, http.StatusOK, api.CommandResponse{Result: result})
	}
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req api.SendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeCommandError(w, http.StatusBadRequest, api.CodeBadRequest, err.Error())
		return
	}
	if req.Command == "" {
		writeCommandError(w, http.StatusBadRequest, api.CodeBadRequest, "command is required")
		return
	}

	d, err := s.controller.SendCustom(r.Context(), userOrDefault(req.User), req.Command)
	if err != nil {
		writeCommandFailure(w, relay.CapabilityCustom, err)
		return
	}
	writeJSON(w, http.StatusOK, api.CommandResponse{
		Result:   fmt.Sprintf("Command sent to %d device(s)", d.Delivered),
		Delivery: &d,
	})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev protocol.ChatEvent
	if err := decodeJSON(w, r, &ev); err != nil {
		writeCommandError(w, http.StatusBadRequest, api.CodeBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.EventResponse{Delivered: s.controller.Forward(r.Context(), ev)})
}

func userOrDefault(user string) string {
	if user == "" {
		return api.DefaultUser
	}
	return user
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeCommandFailure(w http.ResponseWriter, capability string, err error) {
	code := api.ErrorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case api.CodeValidation:
		status = http.StatusUnprocessableEntity
	case api.CodeNoDevices:
		status = http.StatusConflict
	case api.CodeNotDelivered:
		status = http.StatusBadGateway
	}
	writeCommandError(w, status, code, relay.DescribeError(capability, err))
}

func writeCommandError(w http.ResponseWriter, status int, code, result string) {
	writeJSON(w, status, api.CommandResponse{Result: result, Error: code})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
