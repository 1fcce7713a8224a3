// Package contents is a thin client for the GitHub repository contents API.
// It reads and writes single files, lists directories and resolves branch
// heads. The client performs no retries; every failure is returned to the
// caller immediately as an *APIError or a wrapped sentinel.
package contents

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultBaseURL is the public GitHub REST endpoint.
const DefaultBaseURL = "https://api.github.com"

const (
	acceptHeader = "application/vnd.github+json"
	apiVersion   = "2022-11-28"
	maxErrorBody = 64 << 10
)

// File is a decoded file read from the repository.
type File struct {
	Path    string
	Content []byte
	SHA     string
}

// Entry is one item of a directory listing.
type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

// Ref is a resolved branch head.
type Ref struct {
	Name string
	SHA  string
}

// WriteRequest describes a create-or-update of a single file. An empty SHA
// creates the file; a non-empty SHA is the update precondition.
type WriteRequest struct {
	Path    string
	Content []byte
	Message string
	Branch  string
	SHA     string
}

// Client talks to one repository.
type Client struct {
	owner   string
	repo    string
	baseURL string
	http    *http.Client
	session *Session
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root (GitHub Enterprise, tests).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithHTTPClient replaces the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a Client for owner/repo that authenticates with sess.
func New(owner, repo string, sess *Session, opts ...Option) *Client {
	c := &Client{
		owner:   owner,
		repo:    repo,
		baseURL: DefaultBaseURL,
		http:    http.DefaultClient,
		session: sess,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Owner returns the repository owner.
func (c *Client) Owner() string { return c.owner }

// Repo returns the repository name.
func (c *Client) Repo() string { return c.repo }

type fileResponse struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type writePayload struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch,omitempty"`
	SHA     string `json:"sha,omitempty"`
}

type writeResponse struct {
	Content *struct {
		Path string `json:"path"`
		SHA  string `json:"sha"`
	} `json:"content"`
}

type refResponse struct {
	Ref    string `json:"ref"`
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// ReadFile fetches path at ref (branch, tag or commit; empty for the default branch).
func (c *Client) ReadFile(ctx context.Context, path, ref string) (File, error) {
	var resp fileResponse
	if err := c.do(ctx, http.MethodGet, c.contentsPath(path), refQuery(ref), nil, &resp); err != nil {
		return File{}, err
	}
	if resp.Type != "" && resp.Type != "file" {
		return File{}, fmt.Errorf("%w: %s is a %s, not a file", ErrMalformedResponse, path, resp.Type)
	}
	if resp.Encoding != "" && resp.Encoding != "base64" {
		return File{}, fmt.Errorf("%w: %s has unsupported encoding %q", ErrMalformedResponse, path, resp.Encoding)
	}
	data, err := decodeContent(resp.Content)
	if err != nil {
		return File{}, fmt.Errorf("%w: decode %s: %v", ErrMalformedResponse, path, err)
	}
	return File{Path: resp.Path, Content: data, SHA: resp.SHA}, nil
}

// WriteFile creates or updates a file and returns the new blob sha.
func (c *Client) WriteFile(ctx context.Context, req WriteRequest) (string, error) {
	if strings.TrimSpace(req.Path) == "" {
		return "", fmt.Errorf("contents: write requires a path")
	}
	payload := writePayload{
		Message: req.Message,
		Content: base64.StdEncoding.EncodeToString(req.Content),
		Branch:  req.Branch,
		SHA:     req.SHA,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	var resp writeResponse
	if err := c.do(ctx, http.MethodPut, c.contentsPath(req.Path), nil, body, &resp); err != nil {
		return "", err
	}
	if resp.Content == nil {
		return "", fmt.Errorf("%w: write %s returned no content", ErrMalformedResponse, req.Path)
	}
	return resp.Content.SHA, nil
}

// ListDirectory returns the entries of the directory at path.
func (c *Client) ListDirectory(ctx context.Context, path, ref string) ([]Entry, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.contentsPath(path), refQuery(ref), nil, &raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrMalformedResponse, path)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return entries, nil
}

// ReadRef resolves the head commit of branch.
func (c *Client) ReadRef(ctx context.Context, branch string) (Ref, error) {
	p := fmt.Sprintf("/repos/%s/%s/git/ref/heads/%s", url.PathEscape(c.owner), url.PathEscape(c.repo), escapePath(branch))
	var resp refResponse
	if err := c.do(ctx, http.MethodGet, p, nil, nil, &resp); err != nil {
		return Ref{}, err
	}
	if resp.Object.SHA == "" {
		return Ref{}, fmt.Errorf("%w: ref %s has no object sha", ErrMalformedResponse, branch)
	}
	return Ref{Name: resp.Ref, SHA: resp.Object.SHA}, nil
}

func (c *Client) contentsPath(path string) string {
	return fmt.Sprintf("/repos/%s/%s/contents/%s", url.PathEscape(c.owner), url.PathEscape(c.repo), escapePath(path))
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	token := c.session.Token()
	if token == "" {
		return ErrMissingCredential
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(data))
		var er errorResponse
		if json.Unmarshal(data, &er) == nil && er.Message != "" {
			msg = er.Message
		}
		return &APIError{
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Message: msg,
			Kind:    classify(resp.StatusCode, msg),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, method, path, err)
	}
	return nil
}

func refQuery(ref string) url.Values {
	if ref == "" {
		return nil
	}
	return url.Values{"ref": {ref}}
}

// escapePath escapes each segment of a slash separated repository path.
func escapePath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// decodeContent decodes the API's base64 payload, which is wrapped at 60 columns.
func decodeContent(s string) ([]byte, error) {
	s = strings.NewReplacer("\n", "", "\r", "").Replace(s)
	return base64.StdEncoding.DecodeString(s)
}
