package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"smc-predictor/internal/model"
	"smc-predictor/internal/recorder"
)

// SymbolRunner 按需分析单个品种
type SymbolRunner interface {
	Run(ctx context.Context, symbol string, hint *model.VisualHint) (*model.Prediction, error)
}

// Server 是只读查询加按需分析的 HTTP 服务
type Server struct {
	router  *mux.Router
	server  *http.Server
	rec     recorder.Recorder
	runner  SymbolRunner
	metrics http.Handler
	logger  *zap.Logger
}

func New(addr string, rec recorder.Recorder, runner SymbolRunner, metrics http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:  mux.NewRouter(),
		rec:     rec,
		runner:  runner,
		metrics: metrics,
		logger:  logger,
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)

	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/predictions", s.listPredictions).Methods(http.MethodGet)
	api.HandleFunc("/predictions/{id}", s.getPrediction).Methods(http.MethodGet)
	api.HandleFunc("/accuracy", s.accuracy).Methods(http.MethodGet)
	api.HandleFunc("/analyze/{symbol}", s.analyze).Methods(http.MethodPost)
}

// Handler 供测试直接调用
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", zap.String("Addr", s.server.Addr))
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID)))
	})
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		requestID, _ := r.Context().Value(requestIDKey).(string)
		s.logger.Debug("HTTP request",
			zap.String("RequestID", requestID),
			zap.String("Method", r.Method),
			zap.String("Path", r.URL.Path),
			zap.Int("Status", wrapper.statusCode),
			zap.Duration("Took", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listPredictions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	preds, err := s.rec.Recent(r.Context(), r.URL.Query().Get("symbol"), limit)
	if err != nil {
		s.logger.Error("List predictions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if preds == nil {
		preds = []recorder.StoredPrediction{}
	}
	writeJSON(w, http.StatusOK, preds)
}

func (s *Server) getPrediction(w http.ResponseWriter, r *http.Request) {
	sp, err := s.rec.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, recorder.ErrNotFound) {
		writeError(w, http.StatusNotFound, "prediction not found")
		return
	}
	if err != nil {
		s.logger.Error("Get prediction failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (s *Server) accuracy(w http.ResponseWriter, r *http.Request) {
	stats, err := s.rec.Accuracy(r.Context())
	if err != nil {
		s.logger.Error("Accuracy query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if stats == nil {
		stats = []model.Accuracy{}
	}
	writeJSON(w, http.StatusOK, stats)
}

// analyze 请求体可选，为图片分析给出的 VisualHint
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis disabled")
		return
	}
	var hint *model.VisualHint
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	if len(body) > 0 {
		hint = &model.VisualHint{}
		if err := json.Unmarshal(body, hint); err != nil {
			writeError(w, http.StatusBadRequest, "invalid visual hint")
			return
		}
	}

	pred, err := s.runner.Run(r.Context(), mux.Vars(r)["symbol"], hint)
	if err != nil {
		s.logger.Warn("On-demand analysis failed", zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pred)
}
