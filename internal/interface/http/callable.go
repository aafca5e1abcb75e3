package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campus-portal/portal-core/config"
	"github.com/campus-portal/portal-core/internal/domain/account"
	"github.com/campus-portal/portal-core/internal/domain/shared"
	"github.com/campus-portal/portal-core/pkg/logger"
)

// Callable names as invoked by clients.
const (
	CallableGetPlacementReadiness = "getPlacementReadiness"
	CallableAnalyzeSkillGap       = "analyzeSkillGap"
	CallableSetUserRole           = "setUserRole"
	CallableGenerateDigitalID     = "generateDigitalID"
	CallableVerifyDigitalID       = "verifyDigitalID"
)

var errUnauthenticated = shared.ErrNoCaller

// callable decodes its input from the request data and runs one handler.
type callable func(ctx context.Context, data json.RawMessage) (any, error)

// bind adapts a typed handler to a callable. Absent or null data decodes to
// the zero input.
func bind[In, Out any](handle func(context.Context, In) (Out, error)) callable {
	return func(ctx context.Context, data json.RawMessage) (any, error) {
		var in In
		if len(data) > 0 && string(data) != "null" {
			if err := json.Unmarshal(data, &in); err != nil {
				return nil, shared.WrapError("callable", "Decode", shared.ErrInvalidArgument, "malformed request data", err)
			}
		}
		return handle(ctx, in)
	}
}

func (s *Server) buildCallables() map[string]callable {
	d := s.deps
	m := make(map[string]callable)
	if d.PlacementReadiness != nil {
		m[CallableGetPlacementReadiness] = bind(d.PlacementReadiness.Handle)
	}
	if d.AnalyzeSkillGap != nil {
		m[CallableAnalyzeSkillGap] = bind(d.AnalyzeSkillGap.Handle)
	}
	if d.SetUserRole != nil {
		m[CallableSetUserRole] = bind(d.SetUserRole.Handle)
	}
	if d.GenerateDigitalID != nil {
		m[CallableGenerateDigitalID] = bind(d.GenerateDigitalID.Handle)
	}
	if d.VerifyDigitalID != nil {
		m[CallableVerifyDigitalID] = bind(d.VerifyDigitalID.Handle)
	}
	return m
}

// callableFeatures gates optional callables behind a feature flag.
var callableFeatures = map[string]string{
	CallableVerifyDigitalID: config.FeatureVerifyDigitalID,
}

// ══════════════════════════════════════════════════════════════════════════════
// ENVELOPES
// ══════════════════════════════════════════════════════════════════════════════

type callableRequest struct {
	Data json.RawMessage `json:"data"`
}

type callableResponse struct {
	Result any `json:"result"`
}

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleCallable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	start := time.Now()

	fn, ok := s.callables[name]
	if ok {
		if flag, gated := callableFeatures[name]; gated && s.deps.Features != nil {
			caller, _ := account.CallerFromContext(r.Context())
			ok = s.deps.Features.EnabledFor(flag, caller.UID)
		}
	}
	if !ok {
		writeError(w, http.StatusNotFound, shared.CodeNotFound, "unknown callable "+name)
		return
	}

	var req callableRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.finishCallable(w, r, name, start, nil, err)
		return
	}

	result, err := fn(r.Context(), req.Data)
	s.finishCallable(w, r, name, start, result, err)
}

func (s *Server) finishCallable(w http.ResponseWriter, r *http.Request, name string, start time.Time, result any, err error) {
	s.deps.Metrics.ObserveCallable(name, shared.CodeOf(err), time.Since(start))

	if err != nil {
		code := shared.CodeOf(err)
		if code == shared.CodeInternal {
			logger.FromContext(r.Context()).Error("callable failed",
				logger.Callable(name),
				logger.Err(err),
			)
		}
		writeError(w, statusFor(code), code, shared.MessageOf(err))
		return
	}
	writeJSON(w, http.StatusOK, callableResponse{Result: result})
}

// rejectCallable answers a callable request that failed authentication.
func (s *Server) rejectCallable(w http.ResponseWriter, r *http.Request, err error) {
	name := chi.URLParam(r, "name")
	s.deps.Metrics.ObserveCallable(name, shared.CodeUnauthenticated, 0)
	writeError(w, http.StatusUnauthorized, shared.CodeUnauthenticated, shared.MessageOf(err))
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if s.deps.SignIn == nil {
		writeError(w, http.StatusNotFound, shared.CodeNotFound, "sign-in is not configured")
		return
	}

	var req tokenRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, shared.CodeInvalidArgument, shared.MessageOf(err))
		return
	}

	tok, err := s.deps.SignIn.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		code := shared.CodeOf(err)
		if code == shared.CodeInternal {
			logger.FromContext(r.Context()).Error("sign-in failed", logger.Err(err))
		}
		writeError(w, statusFor(code), code, shared.MessageOf(err))
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return shared.WrapError("callable", "Decode", shared.ErrInvalidArgument, "request body must be a JSON object", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

// statusFor maps an error category to its HTTP status.
func statusFor(code string) int {
	switch code {
	case shared.CodeUnauthenticated:
		return http.StatusUnauthorized
	case shared.CodePermissionDenied:
		return http.StatusForbidden
	case shared.CodeInvalidArgument:
		return http.StatusBadRequest
	case shared.CodeNotFound:
		return http.StatusNotFound
	case shared.CodeAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Status: code, Message: message}})
}
