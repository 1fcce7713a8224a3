// Package githubtest provides an in-memory fake of the GitHub contents API
// for tests of the client, the publish pipeline and the admin panel.
package githubtest

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
)

// Write records one accepted PUT.
type Write struct {
	Path    string
	Message string
	Branch  string
	SHA     string
	Content []byte
}

// Failure forces a response for a matching request.
type Failure struct {
	Method  string
	Path    string
	Status  int
	Message string
}

// Server is a fake contents API backed by a map of path -> content.
type Server struct {
	*httptest.Server

	Token string

	mu       sync.Mutex
	files    map[string][]byte
	writes   []Write
	failures []Failure
	requests int
}

// New starts a fake server that accepts token as the bearer credential.
func New(token string) *Server {
	s := &Server{Token: token, files: make(map[string][]byte)}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/{owner}/{repo}/contents/{path...}", s.handleGet)
	mux.HandleFunc("PUT /repos/{owner}/{repo}/contents/{path...}", s.handlePut)
	mux.HandleFunc("GET /repos/{owner}/{repo}/git/ref/heads/{branch...}", s.handleRef)
	s.Server = httptest.NewServer(s.auth(mux))
	return s
}

// Put seeds a file.
func (s *Server) Put(path string, content []byte) {
	s.mu.Lock()
	s.files[path] = content
	s.mu.Unlock()
}

// File returns a stored file.
func (s *Server) File(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[path]
	return b, ok
}

// SHA returns the blob sha of a stored file.
func (s *Server) SHA(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[path]
	if !ok {
		return ""
	}
	return blobSHA(b)
}

// Paths returns every stored path, sorted.
func (s *Server) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Writes returns accepted writes in arrival order.
func (s *Server) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.writes...)
}

// Requests returns the number of authenticated requests served.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Fail forces status for requests matching method and path.
func (s *Server) Fail(f Failure) {
	s.mu.Lock()
	s.failures = append(s.failures, f)
	s.mu.Unlock()
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.Token {
			writeError(w, http.StatusUnauthorized, "Bad credentials")
			return
		}
		s.mu.Lock()
		s.requests++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) forced(method, path string) (Failure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.failures {
		if f.Method == method && f.Path == path {
			return f, true
		}
	}
	return Failure{}, false
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.PathValue("path"), "/")
	if f, ok := s.forced(http.MethodGet, path); ok {
		writeError(w, f.Status, f.Message)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if content, ok := s.files[path]; ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"type":     "file",
			"name":     path[strings.LastIndex(path, "/")+1:],
			"path":     path,
			"sha":      blobSHA(content),
			"encoding": "base64",
			"content":  wrap(base64.StdEncoding.EncodeToString(content), 60),
		})
		return
	}

	prefix := path + "/"
	seen := map[string]bool{}
	var entries []map[string]any
	for p, content := range s.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		name, _, isDir := strings.Cut(rest, "/")
		if seen[name] {
			continue
		}
		seen[name] = true
		entry := map[string]any{"name": name, "path": prefix + name, "type": "file", "sha": blobSHA(content)}
		if isDir {
			entry["type"] = "dir"
			entry["sha"] = ""
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i]["name"].(string) < entries[j]["name"].(string)
	})
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.PathValue("path"), "/")
	if f, ok := s.forced(http.MethodPut, path); ok {
		writeError(w, f.Status, f.Message)
		return
	}

	var payload struct {
		Message string `json:"message"`
		Content string `json:"content"`
		Branch  string `json:"branch"`
		SHA     string `json:"sha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Problems parsing JSON")
		return
	}
	content, err := base64.StdEncoding.DecodeString(payload.Content)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "content is not valid Base64")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.files[path]
	switch {
	case exists && payload.SHA == "":
		writeError(w, http.StatusUnprocessableEntity, `Invalid request. "sha" wasn't supplied.`)
		return
	case exists && payload.SHA != blobSHA(existing):
		writeError(w, http.StatusConflict, fmt.Sprintf("%s does not match %s", path, payload.SHA))
		return
	case !exists && payload.SHA != "":
		writeError(w, http.StatusConflict, fmt.Sprintf("%s does not match %s", path, payload.SHA))
		return
	}

	s.files[path] = content
	sha := blobSHA(content)
	s.writes = append(s.writes, Write{
		Path:    path,
		Message: payload.Message,
		Branch:  payload.Branch,
		SHA:     payload.SHA,
		Content: content,
	})
	status := http.StatusCreated
	if exists {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"content": map[string]any{"path": path, "sha": sha},
		"commit":  map[string]any{"sha": blobSHA([]byte(payload.Message + sha))},
	})
}

func (s *Server) handleRef(w http.ResponseWriter, r *http.Request) {
	branch := r.PathValue("branch")
	if f, ok := s.forced(http.MethodGet, "ref/"+branch); ok {
		writeError(w, f.Status, f.Message)
		return
	}
	s.mu.Lock()
	head := blobSHA([]byte(fmt.Sprintf("%s:%d", branch, len(s.writes))))
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"ref":    "refs/heads/" + branch,
		"object": map[string]any{"sha": head, "type": "commit"},
	})
}

func blobSHA(b []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(b))
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}

func wrap(s string, width int) string {
	var b strings.Builder
	for len(s) > width {
		b.WriteString(s[:width])
		b.WriteByte('\n')
		s = s[width:]
	}
	b.WriteString(s)
	return b.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
