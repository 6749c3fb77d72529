package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/matzehuels/deptree/pkg/deps"
	apperr "github.com/matzehuels/deptree/pkg/errors"
)

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      apperr.Code `json:"code"`
	Message   string      `json:"message"`
	Package   string      `json:"package,omitempty"`
	Version   string      `json:"version,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := s.logger.With("request_id", RequestIDFromContext(r.Context()))

	if s.opts.LegacyErrors {
		logger.Debug("request failed", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, err.Error())
		return
	}

	status := apperr.HTTPStatus(err)
	detail := errorDetail{
		Code:      apperr.GetCode(err),
		Message:   apperr.UserMessage(err),
		RequestID: RequestIDFromContext(r.Context()),
	}
	if detail.Code == "" {
		detail.Code = apperr.ErrCodeInternal
	}
	var rerr *deps.ResolveError
	if errors.As(err, &rerr) {
		detail.Package = rerr.Ref.Name
		detail.Version = rerr.Ref.Version
	}

	switch {
	case errors.Is(err, context.Canceled):
		logger.Debug("request cancelled", "path", r.URL.Path)
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "path", r.URL.Path, "error", err)
	default:
		logger.Debug("request rejected", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: detail})
}

func errRouteNotFound(r *http.Request) error {
	return apperr.New(apperr.ErrCodeNotFound, "no route for %s %s", r.Method, r.URL.Path)
}
