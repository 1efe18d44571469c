// Package calendar projects flat course rows into a month view: a grid of
// Monday-first weeks plus each day's courses ordered by start time.
package calendar

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"course-calendar/models"
)

// Period is the part of the day a course starts in.
type Period string

const (
	Morning   Period = "morning"
	Afternoon Period = "afternoon"
)

// PeriodOf classifies a start time: before noon is morning.
func PeriodOf(t models.TimeOfDay) Period {
	if t.Hour < 12 {
		return Morning
	}
	return Afternoon
}

// Entry is a course placed on the calendar.
type Entry struct {
	Course models.Course
	Period Period
}

// Week holds the day numbers Monday through Sunday; 0 marks a day outside
// the month.
type Week [7]int

// View is a projected month.
type View struct {
	Year  int
	Month time.Month
	Weeks []Week
	// Days maps day-of-month to that day's entries in start-time order.
	Days map[int][]Entry
	// Prev and Next are the first days of the neighbouring months.
	Prev time.Time
	Next time.Time
}

// Key formats the view's month as "YYYY-MM".
func (v *View) Key() string {
	return MonthKey(v.Year, v.Month)
}

// CourseLister returns the courses dated within a month.
type CourseLister interface {
	ListCoursesByMonth(ctx context.Context, year int, month time.Month) ([]models.Course, error)
}

// Projector builds month views from stored courses.
type Projector struct {
	courses  CourseLister
	clock    clock.Clock
	location *time.Location
}

// NewProjector returns a Projector reading from courses. The clock and
// location decide which month is current.
func NewProjector(courses CourseLister, clk clock.Clock, loc *time.Location) *Projector {
	if loc == nil {
		loc = time.Local
	}
	return &Projector{courses: courses, clock: clk, location: loc}
}

// CurrentMonth returns the year and month of the projector's clock.
func (p *Projector) CurrentMonth() (int, time.Month) {
	now := p.clock.Now().In(p.location)
	return now.Year(), now.Month()
}

// ProjectCurrent projects the current month.
func (p *Projector) ProjectCurrent(ctx context.Context) (*View, error) {
	year, month := p.CurrentMonth()
	return p.Project(ctx, year, int(month))
}

// Project builds the view for the given month. A month outside 1-12 is
// rejected rather than normalised into a neighbouring year.
func (p *Projector) Project(ctx context.Context, year, month int) (*View, error) {
	if err := checkMonth(year, month); err != nil {
		return nil, err
	}
	m := time.Month(month)

	courses, err := p.courses.ListCoursesByMonth(ctx, year, m)
	if err != nil {
		return nil, errors.Annotatef(err, "list courses for %s", MonthKey(year, m))
	}

	first := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
	return &View{
		Year:  year,
		Month: m,
		Weeks: MonthGrid(year, m),
		Days:  GroupByDay(courses),
		Prev:  first.AddDate(0, -1, 0),
		Next:  first.AddDate(0, 1, 0),
	}, nil
}

// MonthGrid lays out the month as Monday-first weeks.
func MonthGrid(year int, month time.Month) []Week {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()
	// time.Weekday counts from Sunday; shift so Monday is column 0.
	col := (int(first.Weekday()) + 6) % 7

	var weeks []Week
	var week Week
	for day := 1; day <= days; day++ {
		week[col] = day
		col++
		if col == 7 {
			weeks = append(weeks, week)
			week = Week{}
			col = 0
		}
	}
	if col > 0 {
		weeks = append(weeks, week)
	}
	return weeks
}

// GroupByDay buckets courses by day of month and orders each day by start
// time, falling back to ID for courses starting together.
func GroupByDay(courses []models.Course) map[int][]Entry {
	days := make(map[int][]Entry)
	for _, c := range courses {
		day := c.Date.Day()
		days[day] = append(days[day], Entry{Course: c, Period: PeriodOf(c.Time)})
	}
	for _, entries := range days {
		slices.SortStableFunc(entries, func(a, b Entry) int {
			return cmp.Or(
				cmp.Compare(a.Course.Time.Minutes(), b.Course.Time.Minutes()),
				cmp.Compare(a.Course.ID, b.Course.ID),
			)
		})
	}
	return days
}

// ParseMonth parses a "YYYY-MM" query value.
func ParseMonth(s string) (year, month int, err error) {
	ys, ms, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return 0, 0, errors.NotValidf("month %q", s)
	}
	if year, err = strconv.Atoi(ys); err != nil {
		return 0, 0, errors.NotValidf("month %q", s)
	}
	if month, err = strconv.Atoi(ms); err != nil {
		return 0, 0, errors.NotValidf("month %q", s)
	}
	if err := checkMonth(year, month); err != nil {
		return 0, 0, err
	}
	return year, month, nil
}

// MonthKey formats a month as "YYYY-MM".
func MonthKey(year int, month time.Month) string {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

func checkMonth(year, month int) error {
	if month < 1 || month > 12 {
		return errors.NotValidf("month %d", month)
	}
	if year < 1 || year > 9999 {
		return errors.NotValidf("year %d", year)
	}
	return nil
}
