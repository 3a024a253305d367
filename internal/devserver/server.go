// Package devserver is a local ingestion endpoint for manual testing. It
// accepts /batch and /decide?v=2 requests and exposes admin routes for
// inspecting captured events, setting flags and injecting failures.
package devserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/patrickmn/go-cache"

	"github.com/Tap30/courier-go/adapters"
)

const (
	// DefaultAddr is the listen address of the serve command.
	DefaultAddr = "localhost:3000"

	dedupeTTL     = time.Hour
	maxBodyBytes  = 5 << 20
	triggerErrKey = "trigger_error"
)

// Options configures a Server.
type Options struct {
	// APIKey, when set, must match the api_key of every request.
	APIKey string
	Logger adapters.LoggerAdapter
}

// Server stores captured events in memory.
type Server struct {
	apiKey string
	logger adapters.LoggerAdapter
	seen   *cache.Cache

	mu         sync.RWMutex
	events     []adapters.Event
	duplicates int
	flags      ldvalue.ValueMap
	failures   []int
}

// New creates a Server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = adapters.NewNoOpLoggerAdapter()
	}
	return &Server{
		apiKey: opts.APIKey,
		logger: logger,
		seen:   cache.New(dedupeTTL, 10*time.Minute),
	}
}

// Handler returns the router serving the ingestion and admin routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(s.faultInjection)
		r.Post("/batch", s.handleBatch)
		r.Post("/batch/", s.handleBatch)
		r.Post("/decide", s.handleDecide)
		r.Post("/decide/", s.handleDecide)
	})

	r.Get("/admin/events", s.handleListEvents)
	r.Delete("/admin/events", s.handleResetEvents)
	r.Get("/admin/feature-flags", s.handleGetFlags)
	r.Post("/admin/feature-flags", s.handleSetFlags)
	r.Post("/admin/fail", s.handleFail)
	return r
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Events returns the captured events in arrival order.
func (s *Server) Events() []adapters.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]adapters.Event(nil), s.events...)
}

// Duplicates returns how many events were dropped as already seen.
func (s *Server) Duplicates() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.duplicates
}

// SetFlags replaces the flags served by /decide.
func (s *Server) SetFlags(flags ldvalue.ValueMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = flags
}

// FailNext makes the next n ingestion or decide requests fail with status.
func (s *Server) FailNext(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.failures = append(s.failures, status)
	}
}

func (s *Server) faultInjection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status := 0
		if len(s.failures) > 0 {
			status = s.failures[0]
			s.failures = s.failures[1:]
		}
		s.mu.Unlock()

		if status != 0 {
			s.logger.Info("Injected failure %d for %s", status, r.URL.Path)
			writeError(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type batchRequest struct {
	apiKey string
	sentAt string
	events []adapters.Event
}

func decodeBatchRequest(body []byte) (batchRequest, error) {
	var req batchRequest
	r := jreader.NewReader(body)
	for obj := r.Object().WithRequiredProperties([]string{"batch"}); obj.Next(); {
		switch string(obj.Name()) {
		case "api_key":
			req.apiKey = r.String()
		case "sent_at":
			req.sentAt = r.String()
		case "batch":
			for arr := r.Array(); arr.Next(); {
				var e adapters.Event
				e.ReadFromJSONReader(&r)
				if r.Error() == nil {
					req.events = append(req.events, e)
				}
			}
		}
	}
	if err := r.Error(); err != nil {
		return batchRequest{}, err
	}
	return req, nil
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	req, err := decodeBatchRequest(body)
	if err != nil {
		s.logger.Warn("Rejected malformed batch: %v", err)
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !s.authorized(req.apiKey) {
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}

	for _, e := range req.events {
		if e.Properties.Get(triggerErrKey).BoolValue() {
			s.logger.Info("Client should retry this request (error triggered)")
			writeError(w, http.StatusInternalServerError, "simulated server error")
			return
		}
	}

	accepted := 0
	s.mu.Lock()
	for _, e := range req.events {
		if err := s.seen.Add(e.MessageID, struct{}{}, cache.DefaultExpiration); err != nil {
			s.duplicates++
			continue
		}
		s.events = append(s.events, e)
		accepted++
	}
	s.mu.Unlock()

	s.logger.Info("Received batch of %d events (%d new), sent at %s", len(req.events), accepted, req.sentAt)
	writeStatus(w, http.StatusOK, func(obj *jwriter.ObjectState) {
		obj.Name("status").Int(1)
		obj.Name("received").Int(accepted)
	})
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	var apiKey, distinctID string
	jr := jreader.NewReader(body)
	for obj := jr.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "api_key":
			apiKey = jr.String()
		case "distinct_id":
			distinctID = jr.String()
		}
	}
	if err := jr.Error(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !s.authorized(apiKey) {
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}

	s.mu.RLock()
	flags := s.flags
	s.mu.RUnlock()

	s.logger.Debug("Resolved %d flags for %s", flags.Count(), distinctID)
	writeStatus(w, http.StatusOK, func(obj *jwriter.ObjectState) {
		adapters.WriteValueMap(obj.Name("feature_flags"), flags)
		obj.Name("errors_while_computing_flags").Bool(false)
	})
}

// handleListEvents handles GET /admin/events with optional ?event= and
// ?distinct_id= filters.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	eventFilter := r.URL.Query().Get("event")
	distinctIDFilter := r.URL.Query().Get("distinct_id")

	var events []adapters.Event
	for _, e := range s.Events() {
		if eventFilter != "" && e.Name != eventFilter {
			continue
		}
		if distinctIDFilter != "" && e.DistinctID != distinctIDFilter {
			continue
		}
		events = append(events, e)
	}

	writeStatus(w, http.StatusOK, func(obj *jwriter.ObjectState) {
		adapters.WriteEvents(obj.Name("events"), events)
		obj.Name("total").Int(len(events))
		obj.Name("duplicates").Int(s.Duplicates())
	})
}

func (s *Server) handleResetEvents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.events = nil
	s.duplicates = 0
	s.mu.Unlock()
	s.seen.Flush()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetFlags(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	flags := s.flags
	s.mu.RUnlock()
	data, _ := adapters.EncodeValueMap(flags)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleSetFlags replaces the flags with the posted JSON object.
func (s *Server) handleSetFlags(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	flags, err := adapters.DecodeValueMap(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s.SetFlags(flags)
	writeStatus(w, http.StatusOK, func(obj *jwriter.ObjectState) {
		obj.Name("count").Int(flags.Count())
	})
}

// handleFail handles POST /admin/fail?count=N&status=S.
func (s *Server) handleFail(w http.ResponseWriter, r *http.Request) {
	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || count < 1 {
		count = 1
	}
	status, err := strconv.Atoi(r.URL.Query().Get("status"))
	if err != nil || status < 100 || status > 599 {
		status = http.StatusServiceUnavailable
	}
	s.FailNext(count, status)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) authorized(apiKey string) bool {
	return s.apiKey == "" || s.apiKey == apiKey
}

func writeStatus(w http.ResponseWriter, status int, fields func(obj *jwriter.ObjectState)) {
	jw := jwriter.NewWriter()
	obj := jw.Object()
	fields(&obj)
	obj.End()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(jw.Bytes())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeStatus(w, status, func(obj *jwriter.ObjectState) {
		obj.Name("status").Int(0)
		obj.Name("error").String(message)
	})
}
