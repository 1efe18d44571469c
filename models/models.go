package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
)

// ErrCourseFull is returned when a course has no remaining seats.
const ErrCourseFull = errors.ConstError("course is full")

// DateLayout is the storage and form layout of a course date.
const DateLayout = "2006-01-02"

// Course represents a scheduled session that people can register for.
type Course struct {
	ID        int64     `json:"id"`
	Date      time.Time `json:"date"`
	Time      TimeOfDay `json:"time"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	Remaining int       `json:"remaining"`
	CreatedAt time.Time `json:"created_at"`
}

// Registered is the number of seats already claimed.
func (c Course) Registered() int {
	return c.Capacity - c.Remaining
}

// Full reports whether the course has no seats left.
func (c Course) Full() bool {
	return c.Remaining <= 0
}

// Registration represents a person's claim on one seat of a course.
type Registration struct {
	ID        int64     `json:"id"`
	CourseID  int64     `json:"course_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCourse holds the admin input for creating a course.
type NewCourse struct {
	Date     time.Time
	Time     TimeOfDay
	Name     string `validate:"required"`
	Capacity int    `validate:"gt=0"`
}

// NewRegistration holds the registrant details submitted with the form.
type NewRegistration struct {
	Name  string `form:"name" validate:"required"`
	Email string `form:"email" validate:"required"`
	Phone string `form:"phone" validate:"required"`
}

// Normalize trims surrounding whitespace from every field.
func (r NewRegistration) Normalize() NewRegistration {
	return NewRegistration{
		Name:  strings.TrimSpace(r.Name),
		Email: strings.TrimSpace(r.Email),
		Phone: strings.TrimSpace(r.Phone),
	}
}

// TimeOfDay is a wall-clock start time without a date.
type TimeOfDay struct {
	Hour   int `validate:"gte=0,lte=23"`
	Minute int `validate:"gte=0,lte=59"`
}

// ParseTimeOfDay parses an "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return TimeOfDay{}, errors.NotValidf("time %q", s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, errors.NotValidf("time %q", s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 || minute < 0 || minute > 59 {
		return TimeOfDay{}, errors.NotValidf("time %q", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// String formats the time as zero-padded "HH:MM", which also sorts correctly
// as text.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns the number of minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// ParseDate parses a "YYYY-MM-DD" string into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, errors.NotValidf("date %q", s)
	}
	return d, nil
}
