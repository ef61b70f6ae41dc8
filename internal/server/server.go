package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/veridian-network/veridian-api/internal/analytics/store"
	"github.com/veridian-network/veridian-api/internal/configs"
	"github.com/veridian-network/veridian-api/internal/register"
	"github.com/veridian-network/veridian-api/internal/tx"
)

// 证件照 + 自拍的 base64 体积上限
const maxBodyBytes = 50 << 20

// Registrar runs one registration application end to end
type Registrar interface {
	Register(ctx context.Context, req *register.Request) (*register.Result, error)
}

type Server struct {
	registrar Registrar
	store     store.Store
	limiter   *IPLimiter
	cfg       *configs.Config
	logger    *slog.Logger
}

func New(registrar Registrar, st store.Store, limiter *IPLimiter, cfg *configs.Config, logger *slog.Logger) *Server {
	return &Server{
		registrar: registrar,
		store:     st,
		limiter:   limiter,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Get("/analytics", s.handleAnalytics)
		r.Get("/health", s.handleHealth)
	})

	return r
}

type registerRequest struct {
	Address     string `json:"address"`
	IDImage     string `json:"idImage"`
	SelfieImage string `json:"selfieImage,omitempty"`
	Affiliate   string `json:"referredBy,omitempty"`
}

type registerResponse struct {
	Success bool   `json:"success"`
	Hash    string `json:"hash,omitempty"` // 身份摘要，链上的唯一标识
	Status  string `json:"status,omitempty"`
	TxHash  string `json:"txhash,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var body registerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, registerResponse{Error: "invalid request body"})
		return
	}

	ip := clientIP(r)
	if !s.limiter.Allow(ip) {
		writeJSON(w, http.StatusTooManyRequests, registerResponse{Error: "registration limit reached, try again later"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout())
	defer cancel()

	result, err := s.registrar.Register(ctx, &register.Request{
		Address:     body.Address,
		IDImage:     body.IDImage,
		SelfieImage: body.SelfieImage,
		Affiliate:   body.Affiliate,
	})
	if err != nil {
		s.writeRegisterError(w, r, err)
		return
	}

	s.limiter.Record(ip)
	writeJSON(w, http.StatusOK, registerResponse{
		Success: true,
		Hash:    result.IDHash,
		Status:  string(result.Outcome.Status),
		TxHash:  result.Outcome.TxHash,
	})
}

// writeRegisterError 按错误类别映射状态码，预期内的拒绝不打 error 日志
func (s *Server) writeRegisterError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *register.ValidationError
	var rejected *register.VerificationRejectedError

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, registerResponse{Error: validation.Error()})

	case errors.As(err, &rejected):
		s.logger.Info("registration rejected", "reason", rejected.Reason)
		writeJSON(w, http.StatusUnprocessableEntity, registerResponse{Error: rejected.Error()})

	case errors.Is(err, register.ErrDuplicateRegistration):
		writeJSON(w, http.StatusConflict, registerResponse{Error: err.Error()})

	case errors.Is(err, tx.ErrInsufficientBalance):
		s.logger.Error("registration wallet underfunded")
		writeJSON(w, http.StatusServiceUnavailable, registerResponse{Error: "service temporarily unavailable"})

	case errors.Is(err, context.DeadlineExceeded):
		// 交易可能已经广播出去，只是没等到确认
		writeJSON(w, http.StatusGatewayTimeout, registerResponse{Error: "request timed out, the transaction may still be processing"})

	default:
		s.logger.Error("registration failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, registerResponse{Error: "internal server error"})
	}
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	history, err := s.store.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("failed to read analytics history", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := map[string]any{"history": history}
	if len(history) > 0 {
		resp["latest"] = history[len(history)-1]
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// cors 只放行配置过的来源，预检请求直接短路
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe blocks until the context is cancelled, then drains in-flight
// requests before returning.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
