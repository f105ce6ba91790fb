package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

const maxShimBody = 1 << 20

// registerShimRoutes mounts the REST-style discovery and invocation routes
func (s *Server) registerShimRoutes(mux *http.ServeMux) {
	for _, path := range []string{"/mcp/tools/list", "/tools/list"} {
		mux.HandleFunc("GET "+path, s.handleShimList)
		mux.HandleFunc("POST "+path, s.handleShimList)
	}

	mux.HandleFunc("POST /call_tool", s.handleShimCall("tool_name"))
	mux.HandleFunc("POST /tools/call", s.handleShimCall("name"))
	mux.HandleFunc("POST /mcp/tools/call", s.handleShimCall("name"))

	for _, prefix := range []string{"/tools/", "/invoke/", "/mcp/"} {
		mux.HandleFunc("POST "+prefix+"{name}", s.handleShimPathCall)
	}

	mux.HandleFunc("GET /read-file", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, StaticText)
	})
}

func (s *Server) handleShimList(w http.ResponseWriter, _ *http.Request) {
	tools := s.toolbox.List()
	out := make([]any, 0, len(tools))
	for _, t := range tools {
		out = append(out, t.Descriptor())
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

// handleShimCall serves envelope routes whose body names the tool in nameField
func (s *Server) handleShimCall(nameField string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readShimBody(w, r)
		if !ok {
			return
		}

		name := gjson.GetBytes(body, nameField).String()
		if name == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing field " + nameField})
			return
		}

		s.callFromShim(w, r, name, objectAt(body, "arguments"))
	}
}

// handleShimPathCall serves routes that carry the tool name in the path
// and the bare arguments as the body.
func (s *Server) handleShimPathCall(w http.ResponseWriter, r *http.Request) {
	body, ok := readShimBody(w, r)
	if !ok {
		return
	}
	s.callFromShim(w, r, r.PathValue("name"), objectAt(body, "@this"))
}

func (s *Server) callFromShim(w http.ResponseWriter, r *http.Request, name string, args map[string]any) {
	ctx := withClient(r.Context(), "http", r.RemoteAddr)

	text, err := s.toolbox.Call(ctx, name, args)
	if errors.Is(err, ErrUnknownTool) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, callResult(text, err))
}

func readShimBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxShimBody))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return nil, false
	}
	if len(body) > 0 && !gjson.ValidBytes(body) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "request body is not valid JSON"})
		return nil, false
	}
	return body, true
}

// objectAt returns the JSON object at path, or an empty map
func objectAt(body []byte, path string) map[string]any {
	if len(body) == 0 {
		return map[string]any{}
	}
	if m, ok := gjson.GetBytes(body, path).Value().(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
