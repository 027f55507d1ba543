package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"spycats/internal/engine"
	"spycats/internal/metrics"
	"spycats/internal/repo"
)

const DefaultBasePath = "/api/v1"

// Config for the HTTP API handler.
type Config struct {
	Engine      engine.Engine
	BasePath    string
	CORSOrigins []string
	Logger      *zap.Logger
	Metrics     *metrics.Recorder
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"assignment_rejected"`
	Message string         `json:"message" example:"cannot assign cat 1 to mission 2: cat is on active mission 1"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"mission_id\":2}"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

var overrideErrorsOnce sync.Once

// New returns an HTTP handler exposing the Spy Cat Agency API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = DefaultBasePath
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimSuffix(basePath, "/")
	if basePath == "" {
		return nil, fmt.Errorf("base path must not be the root")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	overrideErrorsOnce.Do(func() {
		huma.DefaultArrayNullable = false
		huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
			return newAPIError(status, "", msg, errorDetails(errs))
		}
		huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
			if status == http.StatusUnprocessableEntity {
				// request schema violations are plain bad requests
				status = http.StatusBadRequest
				return newAPIError(status, "validation_failed", msg, errorDetails(errs))
			}
			return newAPIError(status, "", msg, errorDetails(errs))
		}
	})

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestID)
	router.Use(accessLog(logger, cfg.Metrics))
	router.Use(corsPolicy(cfg.CORSOrigins))

	hcfg := huma.DefaultConfig("Spy Cat Agency API", "1.0.0")
	hcfg.Info.Description = "Manage spy cats, their missions and the targets within each mission."
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerRoot(api)
	registerHealth(api, "health")
	registerHealth(group, "api-health")
	registerCats(group, cfg.Engine)
	registerMissions(group, cfg.Engine)
	registerTargets(group, cfg.Engine)
	registerSpec(router, api, basePath)
	if cfg.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	return router, nil
}

func errorDetails(errs []error) map[string]any {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return map[string]any{"errors": msgs}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = errorCode(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve *engine.ValidationError
	if errors.As(err, &ve) {
		details := map[string]any{"field": ve.Field}
		if ve.Err != nil {
			details["cause"] = ve.Err.Error()
		}
		return newAPIError(http.StatusBadRequest, "validation_failed", err.Error(), details)
	}
	var ae *engine.AssignmentError
	if errors.As(err, &ae) {
		details := map[string]any{"mission_id": ae.MissionID, "cat_id": ae.CatID}
		if ae.ActiveMissionID != 0 {
			details["active_mission_id"] = ae.ActiveMissionID
		}
		return newAPIError(http.StatusBadRequest, "assignment_rejected", err.Error(), details)
	}
	var re *engine.RejectedError
	if errors.As(err, &re) {
		code := "target_update_rejected"
		if errors.Is(re.Err, engine.ErrTargetLocked) {
			code = "target_locked"
		}
		return newAPIError(http.StatusBadRequest, code, err.Error(), map[string]any{"target_id": re.TargetID})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func notFound(kind string, id int64) huma.StatusError {
	return newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("%s %d not found", kind, id), map[string]any{"id": id})
}

func registerRoot(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "root",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Welcome message",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MessageResponse `json:"body"`
	}, error) {
		return &struct {
			Body MessageResponse `json:"body"`
		}{Body: MessageResponse{Message: "Welcome to the Spy Cat Agency API"}}, nil
	})
}

func registerHealth(api huma.API, operationID string) {
	huma.Register(api, huma.Operation{
		OperationID: operationID,
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body HealthResponse `json:"body"`
	}, error) {
		return &struct {
			Body HealthResponse `json:"body"`
		}{Body: HealthResponse{Status: "healthy"}}, nil
	})
}
