package registration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"course-calendar/db"
	"course-calendar/models"
)

func openTestStore(c *qt.C) *db.DB {
	store, err := db.NewDB("file:" + filepath.Join(c.TempDir(), "courses.db"))
	c.Assert(err, qt.IsNil)
	c.Assert(store.InitSchema(context.Background()), qt.IsNil)
	return store
}

func newCourse(c *qt.C, store *db.DB, capacity int) *models.Course {
	course, err := store.CreateCourse(context.Background(), models.NewCourse{
		Date:     time.Date(2026, time.January, 20, 0, 0, 0, 0, time.UTC),
		Time:     models.TimeOfDay{Hour: 9},
		Name:     "Pottery",
		Capacity: capacity,
	})
	c.Assert(err, qt.IsNil)
	return course
}

var ann = models.NewRegistration{Name: "Ann", Email: "ann@example.com", Phone: "0912000111"}

func TestRegisterSuccess(t *testing.T) {
	c := qt.New(t)
	store := openTestStore(c)
	defer store.Close()
	ctx := context.Background()

	course := newCourse(c, store, 2)
	svc := NewService(store, nil, nil)

	res, err := svc.Register(ctx, course.ID, models.NewRegistration{Name: " Ann ", Email: "ann@example.com", Phone: "0912"})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Outcome, qt.Equals, Success)
	c.Assert(res.Err, qt.IsNil)
	c.Assert(res.Registration.Name, qt.Equals, "Ann")
	c.Assert(res.Course.Remaining, qt.Equals, 1)

	got, err := store.GetCourse(ctx, course.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Remaining, qt.Equals, 1)
}

func TestRegisterCourseNotFound(t *testing.T) {
	c := qt.New(t)
	store := openTestStore(c)
	defer store.Close()
	ctx := context.Background()

	svc := NewService(store, nil, nil)
	res, err := svc.Register(ctx, 404, ann)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Outcome, qt.Equals, CourseNotFound)
	c.Assert(errors.Is(res.Err, errors.NotFound), qt.IsTrue)

	regs, err := store.ListRegistrationsByCourse(ctx, 404)
	c.Assert(err, qt.IsNil)
	c.Assert(regs, qt.HasLen, 0)
}

func TestRegisterValidationError(t *testing.T) {
	c := qt.New(t)
	store := openTestStore(c)
	defer store.Close()
	ctx := context.Background()

	course := newCourse(c, store, 3)
	svc := NewService(store, nil, nil)

	for _, in := range []models.NewRegistration{
		{Email: "ann@example.com", Phone: "0912"},
		{Name: "Ann", Phone: "0912"},
		{Name: "Ann", Email: "ann@example.com", Phone: "   "},
	} {
		res, err := svc.Register(ctx, course.ID, in)
		c.Assert(err, qt.IsNil)
		c.Assert(res.Outcome, qt.Equals, ValidationError)
		c.Assert(errors.Is(res.Err, errors.NotValid), qt.IsTrue)
	}

	got, err := store.GetCourse(ctx, course.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Remaining, qt.Equals, 3)

	regs, err := store.ListRegistrationsByCourse(ctx, course.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(regs, qt.HasLen, 0)
}

func TestRegisterCourseFull(t *testing.T) {
	c := qt.New(t)
	store := openTestStore(c)
	defer store.Close()
	ctx := context.Background()

	course := newCourse(c, store, 1)
	metrics := NewMetrics(prometheus.NewRegistry())
	svc := NewService(store, metrics, nil)

	res, err := svc.Register(ctx, course.ID, ann)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Outcome, qt.Equals, Success)

	res, err = svc.Register(ctx, course.ID, ann)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Outcome, qt.Equals, CourseFull)
	c.Assert(res.RaceLost, qt.IsFalse)
	c.Assert(res.Err, qt.ErrorIs, models.ErrCourseFull)

	c.Assert(testutil.ToFloat64(metrics.outcomes.WithLabelValues("full")), qt.Equals, float64(1))
}

// staleStore reports a free seat on lookup while the write finds none, as
// happens when another registrant commits in between.
type staleStore struct {
	course   models.Course
	writeErr error
}

func (s *staleStore) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	course := s.course
	return &course, nil
}

func (s *staleStore) RegisterForCourse(ctx context.Context, courseID int64, in models.NewRegistration) (*models.Registration, error) {
	return nil, s.writeErr
}

func TestRegisterLostRaceReportsFull(t *testing.T) {
	c := qt.New(t)
	store := &staleStore{
		course:   models.Course{ID: 7, Capacity: 1, Remaining: 1},
		writeErr: models.ErrCourseFull,
	}
	metrics := NewMetrics(prometheus.NewRegistry())
	svc := NewService(store, metrics, nil)

	res, err := svc.Register(context.Background(), 7, ann)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Outcome, qt.Equals, CourseFull)
	c.Assert(res.RaceLost, qt.IsTrue)
	c.Assert(testutil.ToFloat64(metrics.outcomes.WithLabelValues("race_lost")), qt.Equals, float64(1))
}

func TestRegisterCourseDeletedBeforeWrite(t *testing.T) {
	c := qt.New(t)
	store := &staleStore{
		course:   models.Course{ID: 7, Capacity: 1, Remaining: 1},
		writeErr: errors.NotFoundf("course 7"),
	}
	svc := NewService(store, nil, nil)

	res, err := svc.Register(context.Background(), 7, ann)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Outcome, qt.Equals, CourseNotFound)
}

func TestRegisterStorageFailure(t *testing.T) {
	c := qt.New(t)
	store := &staleStore{
		course:   models.Course{ID: 7, Capacity: 1, Remaining: 1},
		writeErr: errors.New("disk I/O error"),
	}
	metrics := NewMetrics(prometheus.NewRegistry())
	svc := NewService(store, metrics, nil)

	_, err := svc.Register(context.Background(), 7, ann)
	c.Assert(err, qt.ErrorMatches, "register for course 7: disk I/O error")
	c.Assert(testutil.ToFloat64(metrics.outcomes.WithLabelValues("error")), qt.Equals, float64(1))
}

func TestOutcomeString(t *testing.T) {
	c := qt.New(t)
	c.Assert(Success.String(), qt.Equals, "success")
	c.Assert(CourseNotFound.String(), qt.Equals, "not_found")
	c.Assert(CourseFull.String(), qt.Equals, "full")
	c.Assert(ValidationError.String(), qt.Equals, "invalid")
	c.Assert(Outcome(99).String(), qt.Equals, "unknown")
}
