package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/franz/top-movies/internal/library"
	"github.com/franz/top-movies/internal/report"
	"go.uber.org/zap"
)

// statusFor maps a library error onto an HTTP status
func statusFor(err error) int {
	switch library.KindOf(err) {
	case library.KindNotFound:
		return http.StatusNotFound
	case library.KindValidation:
		return http.StatusUnprocessableEntity
	case library.KindDuplicate:
		return http.StatusConflict
	case library.KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse renders err as an error page with the matching status
func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	page := errorPage{
		Status:     status,
		StatusText: http.StatusText(status),
		RequestID:  report.RequestID(r.Context()),
	}

	switch library.KindOf(err) {
	case library.KindNotFound:
		page.Message = "That movie could not be found."
	case library.KindValidation:
		page.Message = err.Error()
	case library.KindDuplicate:
		page.Message = "That movie is already on your list."
		var le *library.Error
		if errors.As(err, &le) && le.ExistingID != 0 {
			page.Link = fmt.Sprintf("/edit?id=%d", le.ExistingID)
			page.LinkText = "Rate it instead"
		}
	case library.KindProvider:
		page.Message = "The movie database could not be reached or sent an unusable answer. Try again later."
	default:
		page.Message = "Something went wrong on our side."
	}

	s.logError(r, status, err)
	s.renderPage(w, r, status, page)
}

// clientError renders an error page for a malformed request
func (s *Server) clientError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.renderPage(w, r, status, errorPage{
		Status:     status,
		StatusText: http.StatusText(status),
		Message:    message,
		RequestID:  report.RequestID(r.Context()),
	})
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, page errorPage) {
	if err := s.tmpl.render(w, status, "error.html", page); err != nil {
		s.log.Error("failed to render error page", zap.Error(err), zap.String("request_id", page.RequestID))
		http.Error(w, page.StatusText, status)
	}
}

func (s *Server) logError(r *http.Request, status int, err error) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("path", r.URL.Path),
		zap.String("request_id", report.RequestID(r.Context())),
	}
	if status >= 500 {
		s.log.Error("request failed", fields...)
	} else {
		s.log.Debug("request rejected", fields...)
	}
}
