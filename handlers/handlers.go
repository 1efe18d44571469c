// Package handlers serves the course calendar's HTML pages.
package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/juju/clock"
	"github.com/juju/errors"

	"course-calendar/calendar"
	"course-calendar/models"
	"course-calendar/registration"
	"course-calendar/session"
)

// CourseStore is the course and registration storage the admin pages use.
type CourseStore interface {
	CreateCourse(ctx context.Context, in models.NewCourse) (*models.Course, error)
	GetCourse(ctx context.Context, id int64) (*models.Course, error)
	ListCourses(ctx context.Context) ([]models.Course, error)
	DeleteCourse(ctx context.Context, id int64) (int64, error)
	ListRegistrationsByCourse(ctx context.Context, courseID int64) ([]models.Registration, error)
}

type Handlers struct {
	Courses   CourseStore
	Registrar *registration.Service
	Calendar  *calendar.Projector
	Sessions  *session.Manager
	Clock     clock.Clock
	Logger    *slog.Logger
}

// Routes registers every page on mux.
func (h *Handlers) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.HandleCalendar)
	mux.HandleFunc("GET /register/{id}", h.HandleRegisterForm)
	mux.HandleFunc("POST /register/{id}", h.HandleRegister)

	mux.HandleFunc("GET /login", h.HandleLoginForm)
	mux.HandleFunc("POST /login", h.HandleLogin)
	mux.HandleFunc("GET /logout", h.HandleLogout)

	// Admin pages receive the verified session from the gate.
	mux.Handle("GET /admin", h.Sessions.RequireAdmin(h.HandleAdmin))
	mux.Handle("GET /admin/add", h.Sessions.RequireAdmin(h.HandleAddCourseForm))
	mux.Handle("POST /admin/add", h.Sessions.RequireAdmin(h.HandleAddCourse))
	mux.Handle("POST /admin/delete/{id}", h.Sessions.RequireAdmin(h.HandleDeleteCourse))
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h *Handlers) isAdmin(r *http.Request) bool {
	sess, ok := h.Sessions.Current(r)
	return ok && sess.Admin
}

// render buffers the page so a failed render still produces a clean 500.
func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, page templ.Component) {
	var buf bytes.Buffer
	if err := page.Render(r.Context(), &buf); err != nil {
		h.writeError(w, r, errors.Annotate(err, "render page"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// writeError maps an error kind to its status code. Anything unexpected is
// logged and reported as a bare 500.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errors.NotFound):
		http.Error(w, "course not found", http.StatusNotFound)
	case errors.Is(err, models.ErrCourseFull):
		http.Error(w, models.ErrCourseFull.Error(), http.StatusConflict)
	case errors.Is(err, errors.NotValid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger().Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// courseID reads the {id} path value. Anything that cannot name a course is
// reported as not found.
func courseID(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NotFoundf("course %q", idStr)
	}
	return id, nil
}
