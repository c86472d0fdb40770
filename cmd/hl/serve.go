package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/qbradley/hyperlight/call"
	"github.com/qbradley/hyperlight/sandbox"
)

var serveCmd = &cobra.Command{
	Use:   "serve [guest]",
	Short: "Serve guest calls over HTTP",
	Long: `Start an HTTP server exposing a guest's functions.

Endpoints:
  POST   /call                 Call a function (state resets afterward)
  POST   /contexts             Open a call context, returns {"context_id":"..."}
  POST   /contexts/{id}/call   Call in a context (state persists)
  DELETE /contexts/{id}        Discard the context
  GET    /health               Health check

Call request body:

  {"function": "Echo", "args": ["str:hello"], "ret": "str"}

Each context runs in its own sandbox, so contexts never see each
other's state. Idle contexts are discarded after the TTL.`,
	Args: cobra.ExactArgs(1),
	Run:  runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().Duration("context-ttl", 15*time.Minute, "Discard idle contexts after this long")
	rootCmd.AddCommand(serveCmd)
}

// contextManager tracks the server's open call contexts, each backed by
// its own sandbox.
type contextManager struct {
	newSandbox func() (*sandbox.Sandbox, error)
	ttl        time.Duration

	mu       sync.Mutex
	contexts map[string]*serverContext
}

type serverContext struct {
	sb       *sandbox.Sandbox
	cc       *sandbox.CallContext
	lastUsed time.Time
}

func newContextManager(newSandbox func() (*sandbox.Sandbox, error), ttl time.Duration) *contextManager {
	m := &contextManager{
		newSandbox: newSandbox,
		ttl:        ttl,
		contexts:   make(map[string]*serverContext),
	}
	go m.cleanup()
	return m
}

func (m *contextManager) create() (string, error) {
	sb, err := m.newSandbox()
	if err != nil {
		return "", err
	}
	cc, err := sb.NewContext()
	if err != nil {
		sb.Close()
		return "", err
	}

	id := generateContextID()
	m.mu.Lock()
	m.contexts[id] = &serverContext{sb: sb, cc: cc, lastUsed: time.Now()}
	m.mu.Unlock()
	return id, nil
}

func (m *contextManager) get(id string) (*sandbox.CallContext, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.contexts[id]
	if !ok {
		return nil, false
	}
	sc.lastUsed = time.Now()
	return sc.cc, true
}

func (m *contextManager) close(id string) bool {
	m.mu.Lock()
	sc, ok := m.contexts[id]
	if ok {
		sc.cc.Discard()
		delete(m.contexts, id)
	}
	m.mu.Unlock()
	return ok
}

func (m *contextManager) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		m.mu.Lock()
		now := time.Now()
		for id, sc := range m.contexts {
			if now.Sub(sc.lastUsed) > m.ttl {
				sc.cc.Discard()
				delete(m.contexts, id)
			}
		}
		m.mu.Unlock()
	}
}

func (m *contextManager) closeAll() {
	m.mu.Lock()
	for id, sc := range m.contexts {
		sc.cc.Discard()
		delete(m.contexts, id)
	}
	m.mu.Unlock()
}

func generateContextID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x", b)
}

type callRequest struct {
	Function string   `json:"function"`
	Args     []string `json:"args,omitempty"`
	Ret      string   `json:"ret,omitempty"`
	Timeout  string   `json:"timeout,omitempty"`
}

type callResponse struct {
	Result     string `json:"result,omitempty"`
	Type       string `json:"type,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	Code       string `json:"code,omitempty"`
}

type createContextResponse struct {
	ContextID string `json:"context_id"`
}

// server routes guest calls to a shared sandbox for stateless calls and
// to per-context sandboxes for stateful ones.
type server struct {
	shared   *sandbox.Sandbox
	contexts *contextManager
	mux      *http.ServeMux
}

func newServer(shared *sandbox.Sandbox, newSandbox func() (*sandbox.Sandbox, error), ttl time.Duration) *server {
	s := &server{
		shared:   shared,
		contexts: newContextManager(newSandbox, ttl),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/call", s.handleCall)
	mux.HandleFunc("/contexts", s.handleCreateContext)
	mux.HandleFunc("/contexts/", s.handleContext)
	mux.HandleFunc("/health", s.handleHealth)
	s.mux = mux
	return s
}

func (s *server) handleCall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, ret, params, ok := decodeCallRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, s.runCall(r.Context(), s.shared, req, ret, params))
}

func (s *server) handleCreateContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := s.contexts.create()
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to create context: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, createContextResponse{ContextID: id})
}

func (s *server) handleContext(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/contexts/")
	parts := strings.SplitN(path, "/", 2)
	contextID := parts[0]
	if contextID == "" {
		http.Error(w, "context_id required", http.StatusBadRequest)
		return
	}

	if r.Method == http.MethodDelete {
		if s.contexts.close(contextID) {
			w.WriteHeader(http.StatusNoContent)
		} else {
			http.Error(w, "context not found", http.StatusNotFound)
		}
		return
	}

	if r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "call" {
		cc, ok := s.contexts.get(contextID)
		if !ok {
			http.Error(w, "context not found", http.StatusNotFound)
			return
		}
		req, ret, params, ok := decodeCallRequest(w, r)
		if !ok {
			return
		}
		writeJSON(w, s.runCall(r.Context(), cc, req, ret, params))
		return
	}

	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *server) runCall(ctx context.Context, c sandbox.Caller, req callRequest, ret call.Type, params []call.Value) callResponse {
	if req.Timeout != "" {
		if d, err := time.ParseDuration(req.Timeout); err == nil {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
	}

	start := time.Now()
	v, err := c.Call(ctx, req.Function, ret, params...)
	resp := callResponse{DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		resp.Error = err.Error()
		var cerr *call.Error
		if errors.As(err, &cerr) {
			resp.Code = cerr.Code.String()
		}
		return resp
	}
	if v.Tag != call.TypeVoid {
		resp.Result = v.String()
		resp.Type = v.Tag.String()
	}
	return resp
}

func decodeCallRequest(w http.ResponseWriter, r *http.Request) (callRequest, call.Type, []call.Value, bool) {
	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return req, call.TypeVoid, nil, false
	}
	if req.Function == "" {
		http.Error(w, "function required", http.StatusBadRequest)
		return req, call.TypeVoid, nil, false
	}
	ret, err := parseType(req.Ret)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return req, call.TypeVoid, nil, false
	}
	params, err := parseArgs(req.Args)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return req, call.TypeVoid, nil, false
	}
	return req, ret, params, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func runServe(cmd *cobra.Command, args []string) {
	port, _ := cmd.Flags().GetInt("port")
	ttl, _ := cmd.Flags().GetDuration("context-ttl")

	shared, err := startSandbox(cmd.Context(), cmd, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer shared.Close()

	newSandbox := func() (*sandbox.Sandbox, error) {
		return startSandbox(context.Background(), cmd, args[0])
	}
	srv := newServer(shared, newSandbox, ttl)
	defer srv.contexts.closeAll()

	addr := fmt.Sprintf(":%d", port)
	fmt.Fprintf(os.Stderr, "hl serving guest %s on %s\n", shared.Guest().Name(), addr)
	if err := http.ListenAndServe(addr, srv.mux); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
