package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/juju/errors"

	"course-calendar/models"
	"course-calendar/session"
	"course-calendar/views"
)

// HandleLoginForm handles GET /login.
func (h *Handlers) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	if h.isAdmin(r) {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, views.LoginPage("", ""))
}

// HandleLogin handles POST /login.
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, r, errors.NewNotValid(err, "malformed form"))
		return
	}
	account := r.PostForm.Get("account")

	_, err := h.Sessions.Login(w, account, r.PostForm.Get("password"))
	if errors.Is(err, errors.Unauthorized) {
		h.logger().Warn("admin login failed", "remote_addr", r.RemoteAddr)
		h.render(w, r, http.StatusUnauthorized, views.LoginPage(account, "invalid account or password"))
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger().Info("admin logged in", "remote_addr", r.RemoteAddr)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// HandleLogout handles GET /logout.
func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Logout(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleAdmin handles GET /admin: every course with its registrants.
func (h *Handlers) HandleAdmin(w http.ResponseWriter, r *http.Request, _ session.Session) {
	courses, err := h.Courses.ListCourses(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	list := make([]views.AdminCourse, 0, len(courses))
	for _, c := range courses {
		regs, err := h.Courses.ListRegistrationsByCourse(r.Context(), c.ID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		list = append(list, views.AdminCourse{Course: c, Registrations: regs})
	}
	h.render(w, r, http.StatusOK, views.AdminPage(list, h.Clock.Now()))
}

// HandleAddCourseForm handles GET /admin/add.
func (h *Handlers) HandleAddCourseForm(w http.ResponseWriter, r *http.Request, _ session.Session) {
	h.render(w, r, http.StatusOK, views.AddCoursePage(views.CourseForm{}, ""))
}

// HandleAddCourse handles POST /admin/add.
func (h *Handlers) HandleAddCourse(w http.ResponseWriter, r *http.Request, _ session.Session) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, r, errors.NewNotValid(err, "malformed form"))
		return
	}
	form := views.CourseForm{
		Date:     r.PostForm.Get("date"),
		Time:     r.PostForm.Get("time"),
		Name:     r.PostForm.Get("name"),
		Capacity: r.PostForm.Get("capacity"),
	}

	in, err := parseCourseForm(form)
	if err == nil {
		var course *models.Course
		course, err = h.Courses.CreateCourse(r.Context(), in)
		if err == nil {
			h.logger().Info("course created",
				"course_id", course.ID,
				"date", course.Date.Format(models.DateLayout),
				"capacity", course.Capacity,
			)
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
			return
		}
	}
	if errors.Is(err, errors.NotValid) {
		h.render(w, r, http.StatusBadRequest, views.AddCoursePage(form, err.Error()))
		return
	}
	h.writeError(w, r, err)
}

// HandleDeleteCourse handles POST /admin/delete/{id}.
func (h *Handlers) HandleDeleteCourse(w http.ResponseWriter, r *http.Request, _ session.Session) {
	id, err := courseID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	removed, err := h.Courses.DeleteCourse(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger().Info("course deleted", "course_id", id, "registrations", removed)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// parseCourseForm converts the raw form values. Name and capacity range are
// left to the store's validation.
func parseCourseForm(f views.CourseForm) (models.NewCourse, error) {
	date, err := models.ParseDate(f.Date)
	if err != nil {
		return models.NewCourse{}, err
	}
	start, err := models.ParseTimeOfDay(f.Time)
	if err != nil {
		return models.NewCourse{}, err
	}
	capacity, err := strconv.Atoi(strings.TrimSpace(f.Capacity))
	if err != nil {
		return models.NewCourse{}, errors.NotValidf("capacity %q", f.Capacity)
	}
	return models.NewCourse{
		Date:     date,
		Time:     start,
		Name:     strings.TrimSpace(f.Name),
		Capacity: capacity,
	}, nil
}
