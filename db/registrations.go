package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/juju/errors"

	"course-calendar/models"
	"course-calendar/validation"
)

// RegisterForCourse claims a seat and records the registrant inside one
// transaction. Either both happen or neither does: a full course yields
// models.ErrCourseFull and no row, and a failed insert rolls the seat back.
func (db *DB) RegisterForCourse(ctx context.Context, courseID int64, in models.NewRegistration) (*models.Registration, error) {
	in = in.Normalize()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var reg *models.Registration
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		if err := decrementRemaining(ctx, tx, courseID); err != nil {
			return err
		}
		var err error
		reg, err = db.insertRegistration(ctx, tx, courseID, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// CreateRegistration records a registrant without touching the course's seat
// counter. Registrations normally go through RegisterForCourse.
func (db *DB) CreateRegistration(ctx context.Context, courseID int64, in models.NewRegistration) (*models.Registration, error) {
	in = in.Normalize()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	return db.insertRegistration(ctx, db, courseID, in)
}

func (db *DB) insertRegistration(ctx context.Context, q querier, courseID int64, in models.NewRegistration) (*models.Registration, error) {
	now := time.UnixMilli(db.clock.Now().UnixMilli()).UTC()
	res, err := q.ExecContext(ctx, `
		INSERT INTO registrations (course_id, name, email, phone, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, courseID, in.Name, in.Email, in.Phone, now.UnixMilli())
	if err != nil {
		return nil, errors.Annotate(err, "failed to insert registration")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.Annotate(err, "failed getting registration id")
	}
	return &models.Registration{
		ID:        id,
		CourseID:  courseID,
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		CreatedAt: now,
	}, nil
}

// ListRegistrationsByCourse returns the registrations of a course in the
// order they were made.
func (db *DB) ListRegistrationsByCourse(ctx context.Context, courseID int64) ([]models.Registration, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, course_id, name, email, phone, created_at
		FROM registrations
		WHERE course_id = ?
		ORDER BY id
	`, courseID)
	if err != nil {
		return nil, errors.Annotate(err, "failed to list registrations")
	}
	defer rows.Close()

	var regs []models.Registration
	for rows.Next() {
		var (
			r         models.Registration
			createdAt int64
		)
		if err := rows.Scan(&r.ID, &r.CourseID, &r.Name, &r.Email, &r.Phone, &createdAt); err != nil {
			return nil, errors.Annotate(err, "failed to scan registration")
		}
		r.CreatedAt = time.UnixMilli(createdAt).UTC()
		regs = append(regs, r)
	}
	return regs, errors.Trace(rows.Err())
}

// DeleteRegistrationsByCourse removes every registration referencing the
// course. It does not restore seats; DeleteCourse uses it before removing the
// course itself.
func (db *DB) DeleteRegistrationsByCourse(ctx context.Context, courseID int64) (int64, error) {
	return deleteRegistrationsByCourse(ctx, db, courseID)
}

func deleteRegistrationsByCourse(ctx context.Context, q querier, courseID int64) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM registrations WHERE course_id = ?`, courseID)
	if err != nil {
		return 0, errors.Annotatef(err, "failed to delete registrations of course %d", courseID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Annotate(err, "failed to get rows affected")
	}
	return n, nil
}
