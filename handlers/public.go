package handlers

import (
	"net/http"

	"github.com/juju/errors"

	"course-calendar/calendar"
	"course-calendar/models"
	"course-calendar/registration"
	"course-calendar/views"
)

// HandleCalendar handles GET /?month=YYYY-MM. Without a month it shows the
// current one.
func (h *Handlers) HandleCalendar(w http.ResponseWriter, r *http.Request) {
	var (
		view *calendar.View
		err  error
	)
	if m := r.URL.Query().Get("month"); m != "" {
		year, month, perr := calendar.ParseMonth(m)
		if perr != nil {
			h.writeError(w, r, perr)
			return
		}
		view, err = h.Calendar.Project(r.Context(), year, month)
	} else {
		view, err = h.Calendar.ProjectCurrent(r.Context())
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, views.CalendarPage(view, h.isAdmin(r)))
}

// HandleRegisterForm handles GET /register/{id}. Full courses are turned
// away before the form is shown.
func (h *Handlers) HandleRegisterForm(w http.ResponseWriter, r *http.Request) {
	id, err := courseID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	course, err := h.Courses.GetCourse(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if course.Full() {
		h.writeError(w, r, models.ErrCourseFull)
		return
	}
	h.render(w, r, http.StatusOK, views.RegisterPage(course, models.NewRegistration{}, "", h.isAdmin(r)))
}

// HandleRegister handles POST /register/{id}.
func (h *Handlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	id, err := courseID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.writeError(w, r, errors.NewNotValid(err, "malformed form"))
		return
	}
	form := models.NewRegistration{
		Name:  r.PostForm.Get("name"),
		Email: r.PostForm.Get("email"),
		Phone: r.PostForm.Get("phone"),
	}

	res, err := h.Registrar.Register(r.Context(), id, form)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	switch res.Outcome {
	case registration.Success:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case registration.ValidationError:
		h.render(w, r, http.StatusBadRequest,
			views.RegisterPage(res.Course, form, res.Err.Error(), h.isAdmin(r)))
	default:
		// CourseNotFound and CourseFull carry their error kind in Err; a lost
		// race looks the same as a full course.
		h.writeError(w, r, res.Err)
	}
}
