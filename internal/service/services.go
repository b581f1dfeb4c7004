package service

import (
	"time"

	"github.com/deppfellow/schoolhub/internal/lib/job"
	"github.com/deppfellow/schoolhub/internal/lib/payment"
	"github.com/deppfellow/schoolhub/internal/lib/rules"
	"github.com/deppfellow/schoolhub/internal/lib/sla"
	"github.com/deppfellow/schoolhub/internal/repository"
	"github.com/deppfellow/schoolhub/internal/server"
)

// paymentReplayTTL covers the retry schedule of the payment gateway.
const paymentReplayTTL = 72 * time.Hour

type Services struct {
	Auth          *AuthService
	Users         *UserService
	Catalog       *CatalogService
	Coupons       *CouponService
	Enrollments   *EnrollmentService
	Payments      *PaymentService
	LiveClasses   *LiveClassService
	Support       *SupportService
	Email         *EmailService
	Notifications *NotificationService
	Job           *job.JobService
}

// NewService wires every service and registers the background task
// handlers on the job server. Workers are started by the caller.
func NewService(s *server.Server, repos *repository.Repositories) (*Services, error) {
	log := s.Logger
	cfg := s.Config
	frontendURL := cfg.Integration.FrontendBaseURL

	notifications := NewNotificationService(repos.Notifications, log)
	emails := NewEmailService(
		repos.Emails,
		s.Job.Client,
		s.Email,
		s.Email.Renderer(),
		s.Metrics,
		log,
		cfg.Integration.EmailWebhookSecret,
	)
	coupons := NewCouponService(repos.Coupons, repos.Courses, rules.Default(), log)

	var replay ReplayGuard
	if s.Redis != nil {
		replay = NewRedisReplayGuard(s.Redis, paymentReplayTTL)
	}

	services := &Services{
		Auth:          NewAuthService(cfg.Auth, log),
		Users:         NewUserService(repos.Users, log),
		Catalog:       NewCatalogService(repos.Categories, repos.Courses, log),
		Coupons:       coupons,
		Notifications: notifications,
		Email:         emails,
		Job:           s.Job,
		Enrollments: NewEnrollmentService(EnrollmentDeps{
			Tx:          repos.Tx,
			Enrollments: repos.Enrollments,
			Courses:     repos.Courses,
			Coupons:     coupons,
			Redeemer:    repos.Coupons,
			Users:       repos.Users,
			Mailer:      emails,
			Notifier:    notifications,
			Metrics:     s.Metrics,
			Logger:      log,
			FrontendURL: frontendURL,
		}),
		Payments: NewPaymentService(PaymentDeps{
			Tx:          repos.Tx,
			Verifier:    payment.NewVerifier(cfg.Integration.PaymentsWebhookSecret),
			Events:      repos.Payments,
			Enrollments: repos.Enrollments,
			Courses:     repos.Courses,
			Coupons:     repos.Coupons,
			Users:       repos.Users,
			Replay:      replay,
			Mailer:      emails,
			Notifier:    notifications,
			Metrics:     s.Metrics,
			Logger:      log,
		}),
		LiveClasses: NewLiveClassService(
			repos.LiveClasses,
			repos.Courses,
			repos.Enrollments,
			emails,
			notifications,
			log,
			cfg.Jobs.ReminderWindow,
		),
		Support: NewSupportService(SupportDeps{
			Tx:          repos.Tx,
			Tickets:     repos.Tickets,
			Users:       repos.Users,
			Policy:      sla.NewPolicy(cfg.Support),
			Mailer:      emails,
			Notifier:    notifications,
			Metrics:     s.Metrics,
			Logger:      log,
			TeamEmail:   cfg.Support.TeamEmail,
			FrontendURL: frontendURL,
		}),
	}

	s.Job.Register(job.TaskEmailSend, emails.HandleSendTask)
	s.Job.Register(job.TaskSLASweep, services.Support.HandleSLASweepTask)
	s.Job.Register(job.TaskLiveClassReminders, services.LiveClasses.HandleRemindersTask)

	return services, nil
}
