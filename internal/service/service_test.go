package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/deppfellow/schoolhub/internal/lib/metrics"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/sqlerr"
)

const tenant = "org_school"

var (
	fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	student    = model.Actor{TenantID: tenant, UserID: "user_student", Role: model.OrgRoleMember}
	instructor = model.Actor{TenantID: tenant, UserID: "user_instructor", Role: model.OrgRoleInstructor}
	admin      = model.Actor{TenantID: tenant, UserID: "user_admin", Role: model.OrgRoleAdmin}
)

func clockAt(t time.Time) Clock {
	return func() time.Time { return t }
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func testMetrics() *metrics.Metrics {
	return metrics.New()
}

// inlineTx runs fn without a database. rolledBack counts calls whose fn
// returned an error.
type inlineTx struct {
	calls      int
	rolledBack int
}

func (t *inlineTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	err := fn(ctx)
	if err != nil {
		t.rolledBack++
	}
	return err
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []model.OutgoingEmail
	err  error
}

func (m *recordingMailer) Queue(_ context.Context, _ string, msg model.OutgoingEmail) (*model.EmailMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.sent = append(m.sent, msg)
	return &model.EmailMessage{ID: "msg", ToAddress: msg.To, Template: msg.Template}, nil
}

func (m *recordingMailer) templates() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, msg := range m.sent {
		out = append(out, string(msg.Template))
	}
	return out
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.NewNotification
}

func (n *recordingNotifier) Notify(_ context.Context, tenantID string, in model.NewNotification) (*model.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, in)
	return &model.Notification{ID: "n", TenantID: tenantID, UserID: in.UserID, Kind: in.Kind, Title: in.Title}, nil
}

type courseStub map[string]*model.Course

func (c courseStub) GetByID(_ context.Context, tenantID, id string) (*model.Course, error) {
	course, ok := c[id]
	if !ok || course.TenantID != tenantID {
		return nil, sqlerr.NotFound("courses")
	}
	copied := *course
	return &copied, nil
}

type userStub map[string]*model.User

func (u userStub) GetByID(_ context.Context, tenantID, id string) (*model.User, error) {
	user, ok := u[id]
	if !ok || user.TenantID != tenantID {
		return nil, sqlerr.NotFound("users")
	}
	copied := *user
	return &copied, nil
}

func users() userStub {
	return userStub{
		student.UserID: {
			ID: student.UserID, TenantID: tenant, Email: "ada@example.com", FullName: "Ada Lovelace",
			Role: model.UserRoleStudent, Status: model.UserStatusActive,
		},
		instructor.UserID: {
			ID: instructor.UserID, TenantID: tenant, Email: "grace@example.com", FullName: "Grace Hopper",
			Role: model.UserRoleInstructor, Status: model.UserStatusActive,
		},
		admin.UserID: {
			ID: admin.UserID, TenantID: tenant, Email: "root@example.com", FullName: "Root",
			Role: model.UserRoleAdmin, Status: model.UserStatusActive,
		},
	}
}
