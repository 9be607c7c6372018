// Package storetest provides an in-process fake of the record store for
// tests: the same wire shape the real service speaks (bearer auth, formula
// filters, records envelopes, patch by row id) backed by in-memory tables.
package storetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"vouchsafe/internal/platform/config"
	"vouchsafe/internal/store"
)

const (
	// BaseID is the fake's base path segment; any value works as long as the
	// client config and the server agree.
	BaseID = "appTEST"
	// APIKey is the bearer token the fake accepts.
	APIKey = "key-storetest"
)

// Server is the fake record store.
type Server struct {
	mu          sync.Mutex
	httpServer  *httptest.Server
	tables      map[string][]store.Record
	autoNumber  map[string]string
	nextAuto    map[string]int64
	forcedCode  int
	forcedBody  string
	nextID      int
}

// Option configures the fake.
type Option func(*Server)

// WithAutoNumber makes the fake assign an incrementing number to the given
// field on every row created in table, mimicking the store's autonumber
// columns (the voucher reference).
func WithAutoNumber(table, field string) Option {
	return func(s *Server) {
		s.autoNumber[table] = field
	}
}

// New starts the fake. Callers own shutdown via Close.
func New(opts ...Option) *Server {
	s := &Server{
		tables:     make(map[string][]store.Record),
		autoNumber: make(map[string]string),
		nextAuto:   make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.httpServer = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Close shuts the fake down.
func (s *Server) Close() {
	s.httpServer.Close()
}

// Config returns a store client configuration pointed at the fake.
func (s *Server) Config() config.Store {
	return config.Store{
		BaseURL: s.httpServer.URL + "/v0",
		BaseID:  BaseID,
		APIKey:  APIKey,
		Timeout: 5 * time.Second,
	}
}

// Seed inserts a row directly, bypassing the wire. Returns the stored record.
func (s *Server) Seed(table string, fields map[string]any) store.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(table, fields)
}

// Records returns a snapshot of a table for assertions.
func (s *Server) Records(table string) []store.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Record, len(s.tables[table]))
	copy(out, s.tables[table])
	return out
}

// FailNext forces the next request to fail with the given status and body.
func (s *Server) FailNext(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forcedCode = status
	s.forcedBody = body
}

func (s *Server) insert(table string, fields map[string]any) store.Record {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	if field, ok := s.autoNumber[table]; ok {
		if _, present := copied[field]; !present {
			s.nextAuto[table]++
			copied[field] = float64(s.nextAuto[table])
		}
	}
	s.nextID++
	rec := store.Record{ID: fmt.Sprintf("rec%06d", s.nextID), Fields: copied}
	s.tables[table] = append(s.tables[table], rec)
	return rec
}

var filterPattern = regexp.MustCompile(`^\{([^}]+)\}='?([^']*)'?$`)

// matches applies the supported formula subset: {Field}=number and
// {Field}='string', exact equality only.
func matches(rec store.Record, formula string) bool {
	if formula == "" {
		return true
	}
	groups := filterPattern.FindStringSubmatch(formula)
	if groups == nil {
		return false
	}
	field, want := groups[1], groups[2]
	raw, ok := rec.Fields[field]
	if !ok {
		return false
	}
	switch v := raw.(type) {
	case string:
		return v == want
	case float64:
		n, err := strconv.ParseFloat(want, 64)
		return err == nil && v == n
	case bool:
		return strconv.FormatBool(v) == want
	default:
		return false
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+APIKey {
		http.Error(w, `{"error":"AUTHENTICATION_REQUIRED"}`, http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.forcedCode != 0 {
		code, body := s.forcedCode, s.forcedBody
		s.forcedCode, s.forcedBody = 0, ""
		http.Error(w, body, code)
		return
	}

	// Paths: /v0/{base}/{table} and /v0/{base}/{table}/{record}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v0/"+BaseID+"/"), "/")
	table := parts[0]

	switch {
	case r.Method == http.MethodGet && len(parts) == 1:
		var matched []store.Record
		formula := r.URL.Query().Get("filterByFormula")
		for _, rec := range s.tables[table] {
			if matches(rec, formula) {
				matched = append(matched, rec)
			}
		}
		writeJSON(w, map[string]any{"records": matched})

	case r.Method == http.MethodPost && len(parts) == 1:
		var envelope struct {
			Records []struct {
				Fields map[string]any `json:"fields"`
			} `json:"records"`
		}
		if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil || len(envelope.Records) == 0 {
			http.Error(w, `{"error":"INVALID_REQUEST_BODY"}`, http.StatusUnprocessableEntity)
			return
		}
		created := make([]store.Record, 0, len(envelope.Records))
		for _, in := range envelope.Records {
			created = append(created, s.insert(table, in.Fields))
		}
		writeJSON(w, map[string]any{"records": created})

	case r.Method == http.MethodPatch && len(parts) == 2:
		var patch struct {
			Fields map[string]any `json:"fields"`
		}
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, `{"error":"INVALID_REQUEST_BODY"}`, http.StatusUnprocessableEntity)
			return
		}
		for i, rec := range s.tables[table] {
			if rec.ID != parts[1] {
				continue
			}
			for k, v := range patch.Fields {
				s.tables[table][i].Fields[k] = v
			}
			writeJSON(w, s.tables[table][i])
			return
		}
		http.Error(w, `{"error":"NOT_FOUND"}`, http.StatusNotFound)

	default:
		http.Error(w, `{"error":"UNSUPPORTED"}`, http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
