// Package fakeapi is an in-memory file manager backend for tests and local demos.
//
// It serves every endpoint the client uses under /v1, enforces protected-folder passwords with
// the production 403 messages, records each request, and can be told to fail requests for a
// given id.
package fakeapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/protocol"
)

// Call is one recorded request.
type Call struct {
	Method   string
	Path     string
	Query    string
	Password string
}

type failure struct {
	status  int
	message string
}

type folderRecord struct {
	folder   models.Folder
	password string
}

type fileRecord struct {
	file    models.File
	content []byte
}

// Server is the fake backend. It is safe for concurrent use.
type Server struct {
	mu       sync.Mutex
	folders  map[string]*folderRecord
	files    map[string]*fileRecord
	blobs    map[string]string // signature -> file id
	calls    []Call
	failures map[string]failure
	delay    time.Duration
	now      func() time.Time

	// Token, when set, is the bearer token every API request must carry.
	Token string
}

// New creates an empty backend.
func New() *Server {
	return &Server{
		folders:  make(map[string]*folderRecord),
		files:    make(map[string]*fileRecord),
		blobs:    make(map[string]string),
		failures: make(map[string]failure),
		now:      time.Now,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := httprouter.New()

	// "browse" and "upload-multiple" share a path segment with :id, which httprouter cannot
	// register side by side; handleFolder and handleFileAction dispatch on the id.
	r.GET(protocol.APIPrefix+"/folders", s.api(s.handleListFolders))
	r.POST(protocol.APIPrefix+"/folders", s.api(s.handleCreateFolder))
	r.GET(protocol.APIPrefix+"/folders/:id", s.api(s.handleFolder))
	r.PATCH(protocol.APIPrefix+"/folders/:id", s.api(s.handleUpdateFolder))
	r.DELETE(protocol.APIPrefix+"/folders/:id", s.api(s.handleDeleteFolder))
	r.GET(protocol.APIPrefix+"/folders/:id/breadcrumbs", s.api(s.handleBreadcrumbs))
	r.POST(protocol.APIPrefix+"/folders/:id/check-password", s.api(s.handleCheckPassword))

	r.POST(protocol.APIPrefix+"/files/:id", s.api(s.handleFileAction))
	r.PATCH(protocol.APIPrefix+"/files/:id", s.api(s.handleUpdateFile))
	r.DELETE(protocol.APIPrefix+"/files/:id", s.api(s.handleDeleteFile))
	r.GET(protocol.APIPrefix+"/files/:id/download", s.api(s.handleDownload))

	for _, kind := range []models.EntityKind{models.KindFile, models.KindFolder} {
		base := protocol.APIPrefix + "/" + kind.Resource() + "/:id"
		r.GET(base+"/share", s.api(s.shareHandler(kind, s.handleListShares)))
		r.POST(base+"/share", s.api(s.shareHandler(kind, s.handleShare)))
		r.PATCH(base+"/share/:principalId", s.api(s.shareHandler(kind, s.handleUpdateShare)))
		r.DELETE(base+"/share/:principalId", s.api(s.shareHandler(kind, s.handleUnshare)))
		r.GET(base+"/share-roles", s.api(s.shareHandler(kind, s.handleListRoleShares)))
		r.POST(base+"/share-roles", s.api(s.shareHandler(kind, s.handleShareRole)))
		r.PATCH(base+"/share-roles/:roleId", s.api(s.shareHandler(kind, s.handleUpdateRoleShare)))
		r.DELETE(base+"/share-roles/:roleId", s.api(s.shareHandler(kind, s.handleUnshareRole)))
	}

	// Signed blob URLs are not under the API and do not take the bearer token.
	r.GET("/blobs/:sig", s.handleBlob)
	return r
}

// api records the call, checks the token and applies injected failures.
func (s *Server) api(h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Method:   r.Method,
			Path:     r.URL.Path,
			Query:    r.URL.RawQuery,
			Password: r.Header.Get(protocol.FolderPasswordHeader),
		})
		delay := s.delay
		f, failing := s.failures[failKey(r.Method, targetID(r, ps))]
		s.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
			s.sendError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if failing {
			s.sendError(w, f.status, f.message)
			return
		}
		h(w, r, ps)
	}
}

// targetID is the entity a request acts on: the :id parameter, or parentId for browse.
func targetID(r *http.Request, ps httprouter.Params) string {
	id := ps.ByName("id")
	if id == "browse" {
		return r.URL.Query().Get("parentId")
	}
	return id
}

func failKey(method, id string) string {
	return method + " " + id
}

// Fail makes every request of method targeting id fail with status and message until
// ClearFailures. For browse the target is the parent folder.
func (s *Server) Fail(method, id string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[failKey(method, id)] = failure{status: status, message: message}
}

// ClearFailures removes every injected failure.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]failure)
}

// SetDelay slows every API request down.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Calls returns the recorded requests in order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CountCalls counts recorded requests with the method whose path has the prefix.
func (s *Server) CountCalls(method, pathPrefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method && strings.HasPrefix(c.Path, pathPrefix) {
			n++
		}
	}
	return n
}

// ResetCalls forgets the recorded requests.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	s.sendJSON(w, code, protocol.ErrorResponse{
		Message:    message,
		Error:      http.StatusText(code),
		StatusCode: code,
	})
}

// sendValidationError answers like the production backend does for schema failures: message is
// a list.
func (s *Server) sendValidationError(w http.ResponseWriter, messages ...string) {
	s.sendJSON(w, http.StatusBadRequest, map[string]interface{}{
		"message":    messages,
		"error":      http.StatusText(http.StatusBadRequest),
		"statusCode": http.StatusBadRequest,
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.sendValidationError(w, "invalid JSON body")
		return false
	}
	return true
}

func newID() string {
	return uuid.NewString()
}
