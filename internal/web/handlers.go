package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/franz/top-movies/internal/library"
	"github.com/franz/top-movies/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	formAdd  = "add"
	formEdit = "edit"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	movies, err := s.lib.List(r.Context())
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	page := indexPage{Movies: make([]movieView, 0, len(movies))}
	for _, m := range movies {
		page.Movies = append(page.Movies, newMovieView(m))
	}

	s.render(w, r, http.StatusOK, "index.html", page)
}

func (s *Server) handleAddForm(w http.ResponseWriter, r *http.Request) {
	s.renderAdd(w, r, http.StatusOK, "", nil)
}

func (s *Server) handleAddSubmit(w http.ResponseWriter, r *http.Request) {
	if !s.checkForm(w, r, formAdd) {
		return
	}

	title := strings.TrimSpace(r.PostForm.Get("title"))
	if title == "" {
		s.renderAdd(w, r, http.StatusUnprocessableEntity, title, map[string]string{"title": "This field is required."})
		return
	}

	candidates, err := s.lib.Search(r.Context(), title)
	if err != nil {
		if field, msg, ok := fieldError(err); ok {
			s.renderAdd(w, r, http.StatusUnprocessableEntity, title, map[string]string{field: msg})
			return
		}
		s.errorResponse(w, r, err)
		return
	}

	s.render(w, r, http.StatusOK, "select.html", selectPage{Query: title, Candidates: candidates})
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	externalID := strings.TrimSpace(r.URL.Query().Get("id"))
	if externalID == "" {
		s.clientError(w, r, http.StatusBadRequest, "No movie was selected.")
		return
	}

	id, err := s.lib.Import(r.Context(), externalID)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/edit?id=%d", id), http.StatusFound)
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	movie, ok := s.movieFromQuery(w, r)
	if !ok {
		return
	}

	rating := ""
	if movie.Rated() {
		rating = formatRating(*movie.Rating)
	}
	s.renderEdit(w, r, http.StatusOK, movie, rating, movie.Review, nil)
}

func (s *Server) handleEditSubmit(w http.ResponseWriter, r *http.Request) {
	movie, ok := s.movieFromQuery(w, r)
	if !ok {
		return
	}
	if !s.checkForm(w, r, formEdit) {
		return
	}

	rating := r.PostForm.Get("rating")
	review := r.PostForm.Get("review")

	if err := s.lib.Edit(r.Context(), movie.ID, rating, review); err != nil {
		if field, msg, ok := fieldError(err); ok {
			s.renderEdit(w, r, http.StatusUnprocessableEntity, movie, rating, review, map[string]string{field: msg})
			return
		}
		s.errorResponse(w, r, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "movieID"), 10, 64)
	if err != nil || id <= 0 {
		s.clientError(w, r, http.StatusNotFound, "That movie could not be found.")
		return
	}

	if err := s.lib.Delete(r.Context(), id); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

type movieJSON struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Year        int       `json:"year"`
	Description string    `json:"description"`
	Rating      *float64  `json:"rating"`
	Ranking     *int      `json:"ranking"`
	Review      string    `json:"review,omitempty"`
	ImgURL      string    `json:"img_url"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Server) handleAPIMovies(w http.ResponseWriter, r *http.Request) {
	movies, err := s.lib.List(r.Context())
	if err != nil {
		status := statusFor(err)
		s.logError(r, status, err)
		writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return
	}

	out := make([]movieJSON, 0, len(movies))
	for _, m := range movies {
		out = append(out, movieJSON{
			ID:          m.ID,
			Title:       m.Title,
			Year:        m.Year,
			Description: m.Description,
			Rating:      m.Rating,
			Ranking:     m.Ranking,
			Review:      m.Review,
			ImgURL:      m.ImgURL,
			CreatedAt:   m.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"movies": out})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// movieFromQuery loads the movie named by ?id=, rendering a 404 when it cannot
func (s *Server) movieFromQuery(w http.ResponseWriter, r *http.Request) (*store.Movie, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		s.clientError(w, r, http.StatusNotFound, "That movie could not be found.")
		return nil, false
	}

	movie, err := s.lib.Get(r.Context(), id)
	if err != nil {
		s.errorResponse(w, r, err)
		return nil, false
	}
	return movie, true
}

// checkForm parses a POST body and verifies its token
func (s *Server) checkForm(w http.ResponseWriter, r *http.Request, form string) bool {
	if err := r.ParseForm(); err != nil {
		s.clientError(w, r, http.StatusBadRequest, "The form could not be read.")
		return false
	}
	if err := s.tokens.verify(r.PostForm.Get("token"), form); err != nil {
		s.log.Debug("rejected form token", zap.String("form", form), zap.Error(err))
		s.clientError(w, r, http.StatusBadRequest, "The form has expired. Reload the page and try again.")
		return false
	}
	return true
}

func (s *Server) renderAdd(w http.ResponseWriter, r *http.Request, status int, title string, errs map[string]string) {
	token, err := s.tokens.issue(formAdd)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if errs == nil {
		errs = map[string]string{}
	}
	s.render(w, r, status, "add.html", addPage{Token: token, Title: title, Errors: errs})
}

func (s *Server) renderEdit(w http.ResponseWriter, r *http.Request, status int, movie *store.Movie, rating, review string, errs map[string]string) {
	token, err := s.tokens.issue(formEdit)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if errs == nil {
		errs = map[string]string{}
	}
	s.render(w, r, status, "edit.html", editPage{
		Token:  token,
		Movie:  newMovieView(movie),
		Rating: rating,
		Review: review,
		Errors: errs,
	})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	if err := s.tmpl.render(w, status, page, data); err != nil {
		s.errorResponse(w, r, err)
	}
}

// fieldError extracts the form field and message from a validation error
func fieldError(err error) (field, msg string, ok bool) {
	var le *library.Error
	if !errors.As(err, &le) || le.Kind != library.KindValidation || le.Field == "" {
		return "", "", false
	}
	msg = le.Err.Error()
	if len(msg) > 0 {
		msg = strings.ToUpper(msg[:1]) + msg[1:] + "."
	}
	return le.Field, msg, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
