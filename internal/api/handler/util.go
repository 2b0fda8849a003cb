package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ayo6706/treasury-governance/internal/api/middleware"
	"github.com/ayo6706/treasury-governance/internal/api/problem"
	"github.com/ayo6706/treasury-governance/internal/rbac"
	"github.com/ayo6706/treasury-governance/internal/repository"
	"github.com/ayo6706/treasury-governance/internal/service"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// respondServiceError maps domain errors to problem responses. Unknown errors are
// logged and reported as 500 without leaking their text.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if status, problemType, title, ok := problem.FromError(err); ok {
		problem.Write(w, r, status, problemType, title, err.Error())
		return
	}
	if errors.Is(err, repository.ErrStaleRevision) {
		RespondError(w, r, http.StatusConflict, "governance/stale-revision", "proposal was changed by another instance, retry the request")
		return
	}
	if status, problemType, message, ok := mapDBError(err); ok {
		RespondError(w, r, status, problemType, message)
		return
	}
	zap.L().Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("trace_id", middleware.TraceIDFromContext(r.Context())),
		zap.Error(err),
	)
	RespondError(w, r, http.StatusInternalServerError, "internal-server-error", "unexpected server error")
}

// requestActor builds the acting identity from the verified token claims.
func requestActor(r *http.Request) (service.Actor, error) {
	actorID := middleware.ActorIDFromContext(r.Context())
	if actorID == "" {
		return service.Actor{}, errors.New("missing actor in auth context")
	}
	actor := service.Actor{ID: actorID}
	if name := middleware.RoleFromContext(r.Context()); name != "" {
		role, err := rbac.ParseRole(name)
		if err != nil {
			return service.Actor{}, err
		}
		actor.Role = role
	}
	if name := middleware.SystemRoleFromContext(r.Context()); name != "" {
		role, err := rbac.ParseSystemRole(name)
		if err != nil {
			return service.Actor{}, err
		}
		actor.SystemRole = role
	}
	return actor, nil
}

// withActor resolves the caller or answers 401.
func withActor(w http.ResponseWriter, r *http.Request) (service.Actor, bool) {
	actor, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-token-claims", err.Error())
		return service.Actor{}, false
	}
	return actor, true
}

// decodeJSON strictly decodes a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "request body must contain a single JSON object")
		return false
	}
	return true
}

// invalid answers 422 for request fields the service never sees.
func invalid(w http.ResponseWriter, r *http.Request, format string, args ...any) {
	problem.Write(w, r, http.StatusUnprocessableEntity, problem.Type("request/validation"), "Validation failed", fmt.Sprintf(format, args...))
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "40001": // serialization_failure
		return http.StatusConflict, "db/serialization-failure", "concurrent update, retry the request", true
	default:
		return 0, "", "", false
	}
}
