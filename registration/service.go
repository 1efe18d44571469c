// Package registration implements seat-safe course registration.
//
// The only authoritative guard against overbooking is the store's
// conditional decrement, which runs in the same transaction as the insert of
// the registration row. The lookups before it exist to answer quickly and
// give precise outcomes; they provide no exclusion on their own.
package registration

import (
	"context"
	"log/slog"

	"github.com/im7mortal/kmutex"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"

	"course-calendar/models"
	"course-calendar/validation"
)

// Outcome classifies the result of a registration attempt.
type Outcome int

const (
	Success Outcome = iota
	CourseNotFound
	CourseFull
	ValidationError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case CourseNotFound:
		return "not_found"
	case CourseFull:
		return "full"
	case ValidationError:
		return "invalid"
	default:
		return "unknown"
	}
}

// Result describes a completed registration attempt.
type Result struct {
	Outcome Outcome
	// Registration is set when Outcome is Success.
	Registration *models.Registration
	// Course is the course as read before the write, when it exists.
	Course *models.Course
	// Err carries the user-facing reason for CourseNotFound, CourseFull and
	// ValidationError.
	Err error
	// RaceLost is set when a seat looked free but a concurrent registration
	// took it first. Callers report it as CourseFull.
	RaceLost bool
}

// Store is the persistence the service needs.
type Store interface {
	GetCourse(ctx context.Context, id int64) (*models.Course, error)
	RegisterForCourse(ctx context.Context, courseID int64, in models.NewRegistration) (*models.Registration, error)
}

// Service registers people for courses without ever overbooking them.
type Service struct {
	store   Store
	locks   *kmutex.Kmutex
	metrics *Metrics
	logger  *slog.Logger
}

// NewService returns a Service backed by store. A nil metrics disables
// instrumentation; a nil logger uses slog.Default().
func NewService(store Store, metrics *Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		locks:   kmutex.New(),
		metrics: metrics,
		logger:  logger,
	}
}

// Register claims one seat of the course for the registrant. Domain outcomes
// are reported in the Result; the error is only for storage failures, in
// which case nothing has been written.
func (s *Service) Register(ctx context.Context, courseID int64, in models.NewRegistration) (Result, error) {
	res, err := s.register(ctx, courseID, in)
	if err != nil {
		s.metrics.observe("error")
		return Result{}, err
	}
	if res.RaceLost {
		s.metrics.observe("race_lost")
	} else {
		s.metrics.observe(res.Outcome.String())
	}
	return res, nil
}

func (s *Service) register(ctx context.Context, courseID int64, in models.NewRegistration) (Result, error) {
	course, err := s.store.GetCourse(ctx, courseID)
	if errors.Is(err, errors.NotFound) {
		return Result{Outcome: CourseNotFound, Err: err}, nil
	}
	if err != nil {
		return Result{}, errors.Trace(err)
	}
	if course.Full() {
		return Result{Outcome: CourseFull, Course: course, Err: models.ErrCourseFull}, nil
	}

	in = in.Normalize()
	if err := validation.Struct(in); err != nil {
		return Result{Outcome: ValidationError, Course: course, Err: err}, nil
	}

	// Serializing attempts per course keeps contention off the database; the
	// conditional UPDATE inside RegisterForCourse still decides who wins.
	s.locks.Lock(courseID)
	reg, err := s.store.RegisterForCourse(ctx, courseID, in)
	s.locks.Unlock(courseID)

	switch {
	case err == nil:
		course.Remaining--
		s.logger.Info("registered for course", "course_id", courseID, "registration_id", reg.ID)
		return Result{Outcome: Success, Course: course, Registration: reg}, nil
	case errors.Is(err, models.ErrCourseFull):
		s.logger.Info("lost race for last seat", "course_id", courseID)
		return Result{Outcome: CourseFull, Course: course, Err: models.ErrCourseFull, RaceLost: true}, nil
	case errors.Is(err, errors.NotFound):
		// Deleted between the lookup and the write.
		return Result{Outcome: CourseNotFound, Err: err}, nil
	case errors.Is(err, errors.NotValid):
		return Result{Outcome: ValidationError, Course: course, Err: err}, nil
	default:
		return Result{}, errors.Annotatef(err, "register for course %d", courseID)
	}
}

// Metrics counts registration outcomes.
type Metrics struct {
	outcomes *prometheus.CounterVec
}

// NewMetrics creates the registration counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "courses",
				Name:      "registrations_total",
				Help:      "Registration attempts by outcome.",
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(m.outcomes)
	return m
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}
