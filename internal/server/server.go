// Package server exposes a Store over a small json http api. Every store
// call is serialized behind a single mutex, including snapshot writes.
package server

import (
	"context"
	"encoding/json"
	"github.com/denismitr/lime"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const maxBodyBytes = 4 << 20
const shutdownTimeout = 10 * time.Second

type Server struct {
	store *lime.Store
	log   *slog.Logger
	mu    sync.Mutex
}

func New(store *lime.Store, log *slog.Logger) *Server {
	return &Server{store: store, log: log}
}

// request is the envelope shared by all endpoints. Unused fields are simply
// ignored by a handler.
type request struct {
	table string
	id    string
	data  lime.M
	query lime.M
}

type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/insert", s.route(http.MethodPost, s.handleInsert))
	mux.HandleFunc("/api/find", s.route(http.MethodGet, s.handleFind))
	mux.HandleFunc("/api/update", s.route(http.MethodPut, s.handleUpdate))
	mux.HandleFunc("/api/delete", s.route(http.MethodDelete, s.handleDelete))
	mux.HandleFunc("/api/tables", s.route(http.MethodGet, s.handleTables))
	mux.HandleFunc("/api/count", s.route(http.MethodGet, s.handleCount))
	mux.HandleFunc("/api/save", s.route(http.MethodPost, s.handleSave))

	return mux
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.log.Info("server listening", "addr", addr)

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server shutdown failed")
	}

	return nil
}

type handlerFunc func(req *request) (*response, int)

func (s *Server) route(method string, h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeResponse(w, http.StatusMethodNotAllowed, &response{Error: "method not allowed"})
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeResponse(w, http.StatusBadRequest, &response{Error: "could not read request body"})
			return
		}

		req, err := parseRequest(body)
		if err != nil {
			writeResponse(w, http.StatusBadRequest, &response{Error: err.Error()})
			return
		}

		start := time.Now()
		resp, status := h(req)

		s.log.Info("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"elapsed", time.Since(start),
		)

		writeResponse(w, status, resp)
	}
}

func parseRequest(body []byte) (*request, error) {
	if len(body) == 0 {
		return &request{}, nil
	}

	if !gjson.ValidBytes(body) {
		return nil, errors.New("request body is not valid json")
	}

	root := gjson.ParseBytes(body)

	req := &request{
		table: root.Get("table").String(),
		id:    root.Get("id").String(),
	}

	if data := root.Get("data"); data.Exists() {
		m, err := lime.ParseData([]byte(data.Raw))
		if err != nil {
			return nil, errors.Wrap(err, "data")
		}
		req.data = m
	}

	if q := root.Get("query"); q.Exists() {
		m, err := lime.ParseData([]byte(q.Raw))
		if err != nil {
			return nil, errors.Wrap(err, "query")
		}
		req.query = m
	}

	return req, nil
}

func (s *Server) handleInsert(req *request) (*response, int) {
	if req.table == "" {
		return badRequest("table is required")
	}
	if req.data == nil {
		return badRequest("data is required")
	}

	s.mu.Lock()
	rec, err := s.store.Insert(req.table, req.data)
	s.mu.Unlock()

	if err != nil {
		return failure(err)
	}

	return &response{Success: true, Data: map[string]string{"id": rec.ID}}, http.StatusOK
}

func (s *Server) handleFind(req *request) (*response, int) {
	if req.table == "" {
		return badRequest("table is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.id != "" {
		rec, ok, err := s.store.FindByID(req.table, req.id)
		if err != nil {
			return failure(err)
		}
		if !ok {
			return &response{Error: "record not found"}, http.StatusNotFound
		}

		return &response{Success: true, Data: rec}, http.StatusOK
	}

	if req.query != nil {
		records, err := s.store.FindWhere(req.table, matches(req.query))
		if err != nil {
			return failure(err)
		}

		return &response{Success: true, Data: records}, http.StatusOK
	}

	records, err := s.store.FindAll(req.table)
	if err != nil {
		return failure(err)
	}

	return &response{Success: true, Data: records}, http.StatusOK
}

func (s *Server) handleUpdate(req *request) (*response, int) {
	if req.table == "" || req.id == "" {
		return badRequest("table and id are required")
	}
	if req.data == nil {
		return badRequest("data is required")
	}

	s.mu.Lock()
	_, err := s.store.Update(req.table, req.id, req.data)
	s.mu.Unlock()

	if err != nil {
		return failure(err)
	}

	return &response{Success: true, Message: "record updated"}, http.StatusOK
}

func (s *Server) handleDelete(req *request) (*response, int) {
	if req.table == "" || req.id == "" {
		return badRequest("table and id are required")
	}

	s.mu.Lock()
	err := s.store.Delete(req.table, req.id)
	s.mu.Unlock()

	if err != nil {
		return failure(err)
	}

	return &response{Success: true, Message: "record deleted"}, http.StatusOK
}

func (s *Server) handleTables(_ *request) (*response, int) {
	s.mu.Lock()
	tables, err := s.store.ListTables()
	s.mu.Unlock()

	if err != nil {
		return failure(err)
	}

	return &response{Success: true, Data: tables}, http.StatusOK
}

func (s *Server) handleCount(req *request) (*response, int) {
	if req.table == "" {
		return badRequest("table is required")
	}

	s.mu.Lock()
	n, err := s.store.Count(req.table)
	s.mu.Unlock()

	if err != nil {
		return failure(err)
	}

	return &response{Success: true, Data: map[string]interface{}{"table": req.table, "count": n}}, http.StatusOK
}

func (s *Server) handleSave(_ *request) (*response, int) {
	s.mu.Lock()
	err := s.store.SaveAll()
	s.mu.Unlock()

	if err != nil {
		return failure(err)
	}

	return &response{Success: true, Message: "all tables saved"}, http.StatusOK
}

// matches builds an equality predicate over the query fields. Every field
// must be structurally equal to the record field of the same name.
func matches(query lime.M) func(*lime.Record) bool {
	return func(rec *lime.Record) bool {
		for field, want := range query {
			got, ok := rec.Data[field]
			if !ok || !got.Equal(want) {
				return false
			}
		}

		return true
	}
}

func badRequest(msg string) (*response, int) {
	return &response{Error: msg}, http.StatusBadRequest
}

func failure(err error) (*response, int) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, lime.ErrTableNotFound), errors.Is(err, lime.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, lime.ErrDuplicateID):
		status = http.StatusConflict
	case errors.Is(err, lime.ErrValueTooDeep),
		errors.Is(err, lime.ErrInvalidTableName),
		errors.Is(err, lime.ErrInvalidData):
		status = http.StatusBadRequest
	}

	return &response{Error: err.Error()}, status
}

func writeResponse(w http.ResponseWriter, status int, resp *response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
