package views

import (
	"context"
	"fmt"
	"time"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"

	"course-calendar/calendar"
	"course-calendar/models"
)

var weekdayHeaders = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// CalendarPage renders a month view with links to the neighbouring months.
func CalendarPage(view *calendar.View, admin bool) templ.Component {
	title := fmt.Sprintf("Courses %s", view.Key())
	return page(title, admin, component(func(ctx context.Context, hw *htmlWriter) {
		hw.rawf(`<h1>%s %d</h1>`, view.Month, view.Year)
		hw.rawf(`<p><a href="/?month=%s">&laquo; Previous</a> | <a href="/?month=%s">Next &raquo;</a></p>`,
			view.Prev.Format("2006-01"), view.Next.Format("2006-01"))
		hw.raw(`<table class="calendar"><thead><tr>`)
		for _, name := range weekdayHeaders {
			hw.rawf(`<th>%s</th>`, name)
		}
		hw.raw(`</tr></thead><tbody>`)
		for _, week := range view.Weeks {
			hw.raw(`<tr>`)
			for _, day := range week {
				if day == 0 {
					hw.raw(`<td></td>`)
					continue
				}
				hw.rawf(`<td><strong>%d</strong>`, day)
				for _, e := range view.Days[day] {
					calendarEntry(hw, e)
				}
				hw.raw(`</td>`)
			}
			hw.raw(`</tr>`)
		}
		hw.raw(`</tbody></table>`)
	}))
}

func calendarEntry(hw *htmlWriter, e calendar.Entry) {
	class := "course " + string(e.Period)
	if e.Course.Full() {
		class += " full"
		hw.rawf(`<span class="%s">%s %s (full)</span>`, class, e.Course.Time, e.Course.Name)
		return
	}
	hw.rawf(`<a class="%s" href="/register/%d">%s %s (%d left)</a>`,
		class, e.Course.ID, e.Course.Time, e.Course.Name, e.Course.Remaining)
}

// RegisterPage renders the registration form for a course, keeping the
// submitted values when errMsg explains why they were rejected.
func RegisterPage(course *models.Course, form models.NewRegistration, errMsg string, admin bool) templ.Component {
	return page("Register: "+course.Name, admin, component(func(ctx context.Context, hw *htmlWriter) {
		hw.rawf(`<h1>%s</h1>`, course.Name)
		hw.rawf(`<p>%s %s &middot; %d of %d seats left</p>`,
			course.Date.Format(models.DateLayout), course.Time, course.Remaining, course.Capacity)
		formError(hw, errMsg)
		hw.rawf(`<form method="post" action="/register/%d">`, course.ID)
		hw.rawf(`<p><label>Name <input name="name" value="%s" required></label></p>`, form.Name)
		hw.rawf(`<p><label>Email <input name="email" type="email" value="%s" required></label></p>`, form.Email)
		hw.rawf(`<p><label>Phone <input name="phone" type="tel" value="%s" required></label></p>`, form.Phone)
		hw.raw(`<p><button type="submit">Register</button></p></form>`)
	}))
}

// LoginPage renders the admin login form.
func LoginPage(account, errMsg string) templ.Component {
	return page("Admin login", false, component(func(ctx context.Context, hw *htmlWriter) {
		hw.raw(`<h1>Admin login</h1>`)
		formError(hw, errMsg)
		hw.raw(`<form method="post" action="/login">`)
		hw.rawf(`<p><label>Account <input name="account" value="%s" required></label></p>`, account)
		hw.raw(`<p><label>Password <input name="password" type="password" required></label></p>`)
		hw.raw(`<p><button type="submit">Log in</button></p></form>`)
	}))
}

// AdminCourse is a course together with its registrants.
type AdminCourse struct {
	Course        models.Course
	Registrations []models.Registration
}

// AdminPage lists every course with its registrants.
func AdminPage(courses []AdminCourse, now time.Time) templ.Component {
	return page("Admin", true, component(func(ctx context.Context, hw *htmlWriter) {
		hw.raw(`<h1>Courses</h1>`)
		if len(courses) == 0 {
			hw.raw(`<p>No courses yet. <a href="/admin/add">Add one</a>.</p>`)
			return
		}
		for _, ac := range courses {
			c := ac.Course
			hw.rawf(`<h2>%s %s &middot; %s</h2>`, c.Date.Format(models.DateLayout), c.Time, c.Name)
			hw.rawf(`<p>%d registered, %d of %d seats left</p>`, len(ac.Registrations), c.Remaining, c.Capacity)
			if len(ac.Registrations) > 0 {
				hw.raw(`<table><thead><tr><th>Name</th><th>Email</th><th>Phone</th><th>Registered</th></tr></thead><tbody>`)
				for _, r := range ac.Registrations {
					hw.rawf(`<tr><td>%s</td><td>%s</td><td>%s</td><td title="%s">%s</td></tr>`,
						r.Name, r.Email, r.Phone,
						r.CreatedAt.Format(time.RFC3339), humanize.RelTime(r.CreatedAt, now, "ago", "from now"))
				}
				hw.raw(`</tbody></table>`)
			}
			hw.rawf(`<form method="post" action="/admin/delete/%d" onsubmit="return confirm('Delete this course and its registrations?')">`, c.ID)
			hw.raw(`<button type="submit">Delete</button></form>`)
		}
	}))
}

// CourseForm holds the raw add-course form values.
type CourseForm struct {
	Date     string
	Time     string
	Name     string
	Capacity string
}

// AddCoursePage renders the add-course form.
func AddCoursePage(form CourseForm, errMsg string) templ.Component {
	return page("Add course", true, component(func(ctx context.Context, hw *htmlWriter) {
		hw.raw(`<h1>Add course</h1>`)
		formError(hw, errMsg)
		hw.raw(`<form method="post" action="/admin/add">`)
		hw.rawf(`<p><label>Date <input name="date" type="date" value="%s" required></label></p>`, form.Date)
		hw.rawf(`<p><label>Time <input name="time" type="time" value="%s" required></label></p>`, form.Time)
		hw.rawf(`<p><label>Name <input name="name" value="%s" required></label></p>`, form.Name)
		hw.rawf(`<p><label>Capacity <input name="capacity" type="number" min="1" value="%s" required></label></p>`, form.Capacity)
		hw.raw(`<p><button type="submit">Create</button></p></form>`)
	}))
}
