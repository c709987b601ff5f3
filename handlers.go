package orakle

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/orakle-run/orakle/config"
	"github.com/orakle-run/orakle/supervisor"
)

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status   string                       `json:"status"`
	Services map[string]supervisor.Health `json:"services,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.Supervisor != nil {
		resp.Services = map[string]supervisor.Health{
			"skills-host":   s.Supervisor.Health("skills-host"),
			"python-bridge": s.Supervisor.Health("python-bridge"),
		}
		for _, h := range resp.Services {
			if h == supervisor.HealthDown {
				resp.Status = "degraded"
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleChat serves POST /framework/chat: it drives one Engine.Turn and
// streams its multiplexed events back as application/x-ndjson, one Event
// envelope per line, flushed after every write.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	queue := s.Engine.Turn(r.Context(), req)
	enc := json.NewEncoder(w)
	for {
		event, ok := queue.Next()
		if !ok {
			return
		}
		if err := enc.Encode(event); err != nil {
			s.Logger.Error("failed to encode event", "error", err)
			return
		}
		flusher.Flush()
	}
}

func (s *Server) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	showSensitive := r.URL.Query().Get("show_sensitive") == "true"
	body, err := config.Render(s.Config.Snapshot(), showSensitive)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render config")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (s *Server) handleConfigPut(w http.ResponseWriter, r *http.Request) {
	patch, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if err := s.Config.Put(patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	body, err := config.Render(s.Config.Snapshot(), false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render config")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (s *Server) handleConfigDefaults(w http.ResponseWriter, r *http.Request) {
	body, err := config.Render(config.Defaults(), false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render defaults")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Registry.Catalog())
}

// handleProviders, handleTestLLM, handleTestSkillKey and
// handleHardwareAcceleration are thin proxies onto the python-bridge
// collaborator: the façade itself holds no provider credentials or
// hardware-detection logic, it forwards to Server.BridgeBaseURL, which
// cmd/orakled builds from the python-bridge's configured port.
func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	s.proxyBridge(w, r, http.MethodGet, "/providers")
}

func (s *Server) handleTestLLM(w http.ResponseWriter, r *http.Request) {
	s.proxyBridge(w, r, http.MethodPost, "/test-llm")
}

func (s *Server) handleTestSkillKey(w http.ResponseWriter, r *http.Request) {
	s.proxyBridge(w, r, http.MethodPost, "/test-skill-key")
}

func (s *Server) handleHardwareAcceleration(w http.ResponseWriter, r *http.Request) {
	s.proxyBridge(w, r, http.MethodGet, "/hardware/acceleration")
}

func (s *Server) proxyBridge(w http.ResponseWriter, r *http.Request, method, path string) {
	if s.BridgeBaseURL == "" {
		writeError(w, http.StatusServiceUnavailable, "python-bridge is not configured")
		return
	}
	req, err := http.NewRequestWithContext(r.Context(), method, s.BridgeBaseURL+path, r.Body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build bridge request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, "python-bridge request failed")
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
