package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/franz/top-movies/internal/store"
	"github.com/franz/top-movies/internal/tmdb"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{"index.html", "add.html", "select.html", "edit.html", "error.html"}

type templates map[string]*template.Template

func parseTemplates() (templates, error) {
	t := make(templates, len(pages))
	for _, page := range pages {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		t[page] = tmpl
	}
	return t, nil
}

// render executes a page into a buffer first so a template error never
// leaves a half-written response
func (t templates) render(w http.ResponseWriter, status int, page string, data any) error {
	tmpl, ok := t[page]
	if !ok {
		return fmt.Errorf("unknown template %s", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

type movieView struct {
	ID          int64
	Title       string
	Year        int
	Description string
	Rating      string
	Ranking     int
	Review      string
	ImgURL      string
}

func newMovieView(m *store.Movie) movieView {
	v := movieView{
		ID:          m.ID,
		Title:       m.Title,
		Year:        m.Year,
		Description: m.Description,
		Rating:      "not rated yet",
		Review:      m.Review,
		ImgURL:      m.ImgURL,
	}
	if m.Rated() {
		v.Rating = formatRating(*m.Rating)
	}
	if m.Ranking != nil {
		v.Ranking = *m.Ranking
	}
	return v
}

func formatRating(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}

type indexPage struct {
	Movies []movieView
}

type addPage struct {
	Token  string
	Title  string
	Errors map[string]string
}

type selectPage struct {
	Query      string
	Candidates []tmdb.Candidate
}

type editPage struct {
	Token  string
	Movie  movieView
	Rating string
	Review string
	Errors map[string]string
}

type errorPage struct {
	Status     int
	StatusText string
	Message    string
	Link       string
	LinkText   string
	RequestID  string
}
