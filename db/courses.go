package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/juju/errors"

	"course-calendar/models"
	"course-calendar/validation"
)

const courseColumns = `id, course_date, course_time, course_name, capacity, remaining, created_at`

// CreateCourse inserts a new course with every seat still available.
func (db *DB) CreateCourse(ctx context.Context, in models.NewCourse) (*models.Course, error) {
	if in.Date.IsZero() {
		return nil, errors.NotValidf("empty date")
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	now := db.clock.Now().UTC()
	res, err := db.ExecContext(ctx, `
		INSERT INTO courses (course_date, course_time, course_name, capacity, remaining, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, in.Date.Format(models.DateLayout), in.Time.String(), in.Name, in.Capacity, in.Capacity, now.UnixMilli())
	if err != nil {
		return nil, errors.Annotate(err, "failed to insert course")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.Annotate(err, "failed to get course id")
	}
	return &models.Course{
		ID:        id,
		Date:      dateOnly(in.Date),
		Time:      in.Time,
		Name:      in.Name,
		Capacity:  in.Capacity,
		Remaining: in.Capacity,
		CreatedAt: time.UnixMilli(now.UnixMilli()).UTC(),
	}, nil
}

// GetCourse returns the course with the given id.
func (db *DB) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	return getCourse(ctx, db, id)
}

func getCourse(ctx context.Context, q querier, id int64) (*models.Course, error) {
	row := q.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = ?`, id)
	c, err := scanCourse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFoundf("course %d", id)
	}
	if err != nil {
		return nil, errors.Annotatef(err, "failed to get course %d", id)
	}
	return c, nil
}

// ListCoursesByMonth returns the courses dated within the given month, in no
// particular order.
func (db *DB) ListCoursesByMonth(ctx context.Context, year int, month time.Month) ([]models.Course, error) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	next := first.AddDate(0, 1, 0)
	return db.listCourses(ctx, `
		SELECT `+courseColumns+` FROM courses
		WHERE course_date >= ? AND course_date < ?
	`, first.Format(models.DateLayout), next.Format(models.DateLayout))
}

// ListCourses returns every course ordered by date, then start time.
func (db *DB) ListCourses(ctx context.Context) ([]models.Course, error) {
	return db.listCourses(ctx, `
		SELECT `+courseColumns+` FROM courses
		ORDER BY course_date, course_time, id
	`)
}

func (db *DB) listCourses(ctx context.Context, query string, args ...any) ([]models.Course, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Annotate(err, "failed to list courses")
	}
	defer rows.Close()

	var courses []models.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, errors.Annotate(err, "failed to scan course")
		}
		courses = append(courses, *c)
	}
	return courses, errors.Trace(rows.Err())
}

// DeleteCourse removes the course and every registration referencing it in a
// single transaction. It returns how many registrations were removed.
func (db *DB) DeleteCourse(ctx context.Context, id int64) (int64, error) {
	var removed int64
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		removed, err = deleteRegistrationsByCourse(ctx, tx, id)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id)
		if err != nil {
			return errors.Annotatef(err, "failed to delete course %d", id)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Annotate(err, "failed to get rows affected")
		}
		if n == 0 {
			return errors.NotFoundf("course %d", id)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// DecrementRemaining claims one seat of the course. The check and the write
// are one conditional UPDATE, so concurrent callers can never take the
// counter below zero. It returns models.ErrCourseFull when no seat is left.
func (db *DB) DecrementRemaining(ctx context.Context, id int64) error {
	return decrementRemaining(ctx, db, id)
}

func decrementRemaining(ctx context.Context, q querier, id int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE courses
		SET remaining = remaining - 1
		WHERE id = ? AND remaining > 0
	`, id)
	if err != nil {
		return errors.Annotate(err, "failed to update course capacity")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Annotate(err, "failed to get rows affected")
	}
	if n > 0 {
		return nil
	}

	// Nothing changed: either the course is gone or it has no seats.
	var exists int
	err = q.QueryRowContext(ctx, `SELECT 1 FROM courses WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.NotFoundf("course %d", id)
	}
	if err != nil {
		return errors.Annotatef(err, "failed to get course %d", id)
	}
	return models.ErrCourseFull
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCourse(s scanner) (*models.Course, error) {
	var (
		c         models.Course
		date      string
		start     string
		createdAt int64
	)
	if err := s.Scan(&c.ID, &date, &start, &c.Name, &c.Capacity, &c.Remaining, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if c.Date, err = models.ParseDate(date); err != nil {
		return nil, errors.Annotatef(err, "course %d", c.ID)
	}
	if c.Time, err = models.ParseTimeOfDay(start); err != nil {
		return nil, errors.Annotatef(err, "course %d", c.ID)
	}
	c.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &c, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
