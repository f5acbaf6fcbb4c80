package web

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"go.uber.org/zap"

	"quizwrap/internal/config"
	"quizwrap/internal/logger"
)

const (
	ViewStudent    = "student"
	ViewInstructor = "instructor"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// PageData parameterizes the single page template
type PageData struct {
	Title    string
	View     string
	FormURL  string
	Features config.Features
}

// Handler renders the student and instructor pages
type Handler struct {
	formURL  string
	features config.Features
}

// NewHandler creates a new page handler
func NewHandler(formURL string, features config.Features) *Handler {
	return &Handler{
		formURL:  formURL,
		features: features,
	}
}

// Student handles GET /
func (h *Handler) Student(w http.ResponseWriter, r *http.Request) {
	h.render(w, PageData{
		Title:    "Quiz",
		View:     ViewStudent,
		FormURL:  h.formURL,
		Features: h.features,
	})
}

// Instructor handles GET /instructor
func (h *Handler) Instructor(w http.ResponseWriter, r *http.Request) {
	if !h.features.InstructorReview {
		http.NotFound(w, r)
		return
	}
	h.render(w, PageData{
		Title:    "Instructor",
		View:     ViewInstructor,
		Features: h.features,
	})
}

// Static serves the embedded scripts and stylesheet under /static/
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

func (h *Handler) render(w http.ResponseWriter, data PageData) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, "page.html", data); err != nil {
		logger.Log.Error("failed to render page", zap.String("view", data.View), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
