package service

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/deppfellow/schoolhub/internal/errs"
	"github.com/deppfellow/schoolhub/internal/lib/email"
	"github.com/deppfellow/schoolhub/internal/logger"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/sqlerr"
)

// DefaultReminderWindow is how long before the start reminders go out.
const DefaultReminderWindow = time.Hour

type LiveClassStore interface {
	Create(ctx context.Context, l *model.LiveClass) (*model.LiveClass, error)
	GetByID(ctx context.Context, tenantID, id string) (*model.LiveClass, error)
	Update(ctx context.Context, l *model.LiveClass) (*model.LiveClass, error)
	Cancel(ctx context.Context, tenantID, id string) (*model.LiveClass, error)
	HasOverlap(ctx context.Context, tenantID, courseID string, start, end time.Time, excludeID string) (bool, error)
	ListForCourse(ctx context.Context, tenantID string, q *model.ListCourseLiveClassesQuery, now time.Time) ([]model.LiveClass, error)
	ListUpcomingForUser(ctx context.Context, tenantID, userID string, now time.Time) ([]model.LiveClass, error)
	DueReminders(ctx context.Context, now, until time.Time) ([]model.LiveClass, error)
	ClaimReminder(ctx context.Context, id string, at time.Time) (bool, error)
}

// StudentLister lists the students actively enrolled in a course.
type StudentLister interface {
	ActiveStudents(ctx context.Context, tenantID, courseID string) ([]model.User, error)
}

type LiveClassService struct {
	store          LiveClassStore
	courses        CourseReader
	students       StudentLister
	effects        sideEffects
	logger         *zerolog.Logger
	reminderWindow time.Duration
	now            Clock
}

func NewLiveClassService(
	store LiveClassStore,
	courses CourseReader,
	students StudentLister,
	mailer Mailer,
	notifier Notifier,
	logger *zerolog.Logger,
	reminderWindow time.Duration,
) *LiveClassService {
	if reminderWindow <= 0 {
		reminderWindow = DefaultReminderWindow
	}
	return &LiveClassService{
		store:          store,
		courses:        courses,
		students:       students,
		effects:        sideEffects{mailer: mailer, notifier: notifier, logger: logger},
		logger:         logger,
		reminderWindow: reminderWindow,
		now:            utcNow,
	}
}

// checkSlot rejects classes in the past and classes overlapping another
// scheduled class of the same course.
func (s *LiveClassService) checkSlot(ctx context.Context, l *model.LiveClass) error {
	if !l.StartsAt.After(s.now()) {
		return errs.NewBadRequestError("A live class must start in the future", true, errs.Code(model.CodeLiveClassInPast), []errs.FieldError{
			{Field: "starts_at", Error: "must be in the future"},
		}, nil)
	}

	overlap, err := s.store.HasOverlap(ctx, l.TenantID, l.CourseID, l.StartsAt, l.EndsAt(), l.ID)
	if err != nil {
		return err
	}
	if overlap {
		return errs.NewConflictError("Another live class of this course is scheduled at that time", true, errs.Code(model.CodeLiveClassOverlap))
	}
	return nil
}

func (s *LiveClassService) Schedule(ctx context.Context, tenantID string, p *model.ScheduleLiveClassPayload) (*model.LiveClass, error) {
	if _, err := s.courses.GetByID(ctx, tenantID, p.CourseID); err != nil {
		return nil, err
	}

	l := &model.LiveClass{
		TenantID:        tenantID,
		CourseID:        p.CourseID,
		Title:           p.Title,
		Provider:        p.Provider,
		JoinURL:         p.JoinURL,
		StartsAt:        p.StartsAt.UTC(),
		DurationMinutes: p.DurationMinutes,
		Status:          model.LiveClassScheduled,
	}
	if p.MeetingID != nil {
		l.MeetingID = *p.MeetingID
	}
	if p.Passcode != nil {
		l.Passcode = *p.Passcode
	}

	if err := s.checkSlot(ctx, l); err != nil {
		return nil, err
	}
	return s.store.Create(ctx, l)
}

func (s *LiveClassService) scheduled(ctx context.Context, tenantID, id string) (*model.LiveClass, error) {
	l, err := s.store.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if l.Status != model.LiveClassScheduled {
		return nil, errs.NewConflictError("This live class is no longer scheduled", true, errs.Code(model.CodeLiveClassNotOpen))
	}
	return l, nil
}

// Update edits or reschedules a class. A new time goes through the same
// checks as a new class.
func (s *LiveClassService) Update(ctx context.Context, tenantID string, p *model.UpdateLiveClassPayload) (*model.LiveClass, error) {
	l, err := s.scheduled(ctx, tenantID, p.ID)
	if err != nil {
		return nil, err
	}

	start, duration := l.StartsAt, l.DurationMinutes
	p.Apply(l)
	l.StartsAt = l.StartsAt.UTC()

	if !l.StartsAt.Equal(start) || l.DurationMinutes != duration {
		if err := s.checkSlot(ctx, l); err != nil {
			return nil, err
		}
	}

	updated, err := s.store.Update(ctx, l)
	if err != nil {
		if sqlerr.IsNotFound(err) {
			return nil, errs.NewConflictError("This live class is no longer scheduled", true, errs.Code(model.CodeLiveClassNotOpen))
		}
		return nil, err
	}
	return updated, nil
}

// Cancel cancels a scheduled class and tells every enrolled student.
func (s *LiveClassService) Cancel(ctx context.Context, tenantID, id string) (*model.LiveClass, error) {
	l, err := s.scheduled(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	cancelled, err := s.store.Cancel(ctx, tenantID, l.ID)
	if err != nil {
		if sqlerr.IsNotFound(err) {
			return nil, errs.NewConflictError("This live class is no longer scheduled", true, errs.Code(model.CodeLiveClassNotOpen))
		}
		return nil, err
	}

	course, err := s.courses.GetByID(ctx, tenantID, cancelled.CourseID)
	if err != nil {
		logger.FromContext(ctx, s.logger).Error().Err(err).Msg("failed to load course for cancellation notices")
		return cancelled, nil
	}

	students, err := s.students.ActiveStudents(ctx, tenantID, cancelled.CourseID)
	if err != nil {
		logger.FromContext(ctx, s.logger).Error().Err(err).Msg("failed to list students for cancellation notices")
		return cancelled, nil
	}

	for _, u := range students {
		s.effects.notify(ctx, tenantID, model.NewNotification{
			UserID: u.ID,
			Kind:   model.NotificationLiveClass,
			Title:  "Cancelled: " + cancelled.Title,
			Body:   course.Title,
			Link:   "/courses/" + course.ID,
		})
		s.effects.mail(ctx, tenantID, model.OutgoingEmail{
			UserID:   &u.ID,
			To:       u.Email,
			Template: email.TemplateLiveClassCancel,
			Data: map[string]any{
				"FirstName":   u.FirstName(),
				"ClassTitle":  cancelled.Title,
				"CourseTitle": course.Title,
				"StartsAt":    cancelled.StartsAt,
			},
		})
	}

	logger.FromContext(ctx, s.logger).Info().
		Str("live_class_id", cancelled.ID).
		Int("students", len(students)).
		Msg("live class cancelled")

	return cancelled, nil
}

func (s *LiveClassService) Get(ctx context.Context, tenantID, id string) (*model.LiveClass, error) {
	return s.store.GetByID(ctx, tenantID, id)
}

func (s *LiveClassService) ListForCourse(ctx context.Context, actor model.Actor, q *model.ListCourseLiveClassesQuery) ([]model.LiveClass, error) {
	course, err := s.courses.GetByID(ctx, actor.TenantID, q.CourseID)
	if err != nil {
		return nil, err
	}
	if course.Status != model.CourseStatusPublished && !actor.IsStaff() {
		return nil, sqlerr.NotFound("courses")
	}

	items, err := s.store.ListForCourse(ctx, actor.TenantID, q, s.now())
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.LiveClass{}
	}
	return items, nil
}

// Upcoming lists the classes of the courses the actor is enrolled in.
func (s *LiveClassService) Upcoming(ctx context.Context, actor model.Actor) ([]model.LiveClass, error) {
	items, err := s.store.ListUpcomingForUser(ctx, actor.TenantID, actor.UserID, s.now())
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.LiveClass{}
	}
	return items, nil
}

// HandleRemindersTask is the liveclass:reminders worker. Each class is
// claimed before its reminders are queued, so overlapping sweeps never
// remind twice.
func (s *LiveClassService) HandleRemindersTask(ctx context.Context, _ *asynq.Task) error {
	now := s.now()
	due, err := s.store.DueReminders(ctx, now, now.Add(s.reminderWindow))
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx, s.logger)
	reminded := 0
	for i := range due {
		l := &due[i]

		claimed, err := s.store.ClaimReminder(ctx, l.ID, now)
		if err != nil {
			return err
		}
		if !claimed {
			continue
		}

		course, err := s.courses.GetByID(ctx, l.TenantID, l.CourseID)
		if err != nil {
			log.Error().Err(err).Str("live_class_id", l.ID).Msg("failed to load course for reminders")
			continue
		}
		students, err := s.students.ActiveStudents(ctx, l.TenantID, l.CourseID)
		if err != nil {
			log.Error().Err(err).Str("live_class_id", l.ID).Msg("failed to list students for reminders")
			continue
		}

		for _, u := range students {
			s.effects.mail(ctx, l.TenantID, model.OutgoingEmail{
				UserID:   &u.ID,
				To:       u.Email,
				Template: email.TemplateLiveClassReminder,
				Data: map[string]any{
					"FirstName":   u.FirstName(),
					"ClassTitle":  l.Title,
					"CourseTitle": course.Title,
					"StartsAt":    l.StartsAt,
					"Provider":    string(l.Provider),
					"JoinURL":     l.JoinURL,
					"Passcode":    l.Passcode,
				},
			})
		}
		reminded++
	}

	log.Info().Int("due", len(due)).Int("reminded", reminded).Msg("live class reminder sweep finished")
	return nil
}
