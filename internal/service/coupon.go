package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/deppfellow/schoolhub/internal/errs"
	"github.com/deppfellow/schoolhub/internal/lib/pricing"
	"github.com/deppfellow/schoolhub/internal/lib/rules"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/sqlerr"
	"github.com/deppfellow/schoolhub/internal/validation"
)

type CouponStore interface {
	Create(ctx context.Context, c *model.Coupon) (*model.Coupon, error)
	GetByID(ctx context.Context, tenantID, id string) (*model.Coupon, error)
	GetByCode(ctx context.Context, tenantID, code string) (*model.Coupon, error)
	List(ctx context.Context, tenantID string, q *model.ListCouponsQuery) ([]model.Coupon, int, error)
	Update(ctx context.Context, c *model.Coupon) (*model.Coupon, error)
	Delete(ctx context.Context, tenantID, id string) error
	CountUserRedemptions(ctx context.Context, tenantID, couponID, userID string) (int, error)
}

// CourseReader is the part of the course store used outside the catalog.
type CourseReader interface {
	GetByID(ctx context.Context, tenantID, id string) (*model.Course, error)
}

type CouponService struct {
	store   CouponStore
	courses CourseReader
	engine  *rules.Engine
	logger  *zerolog.Logger
	now     Clock
}

func NewCouponService(store CouponStore, courses CourseReader, engine *rules.Engine, logger *zerolog.Logger) *CouponService {
	return &CouponService{
		store:   store,
		courses: courses,
		engine:  engine,
		logger:  logger,
		now:     utcNow,
	}
}

func (s *CouponService) Create(ctx context.Context, tenantID string, p *model.CreateCouponPayload) (*model.Coupon, error) {
	c := &model.Coupon{
		TenantID:       tenantID,
		Code:           p.Code,
		DiscountType:   p.DiscountType,
		DiscountValue:  p.DiscountValue,
		Currency:       p.Currency,
		MaxUses:        p.MaxUses,
		MaxUsesPerUser: p.MaxUsesPerUser,
		CourseIDs:      p.CourseIDs,
		ValidFrom:      s.now(),
		ValidUntil:     p.ValidUntil,
		Active:         true,
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.MinSubtotal != nil {
		c.MinSubtotal.Decimal = *p.MinSubtotal
		c.MinSubtotal.Valid = true
	}
	if p.Condition != nil {
		c.Condition = strings.TrimSpace(*p.Condition)
	}
	if p.ValidFrom != nil {
		c.ValidFrom = *p.ValidFrom
	}
	if p.Active != nil {
		c.Active = *p.Active
	}

	// valid_from defaults to now, so a lone valid_until is checked here.
	if c.ValidUntil != nil && !c.ValidUntil.After(c.ValidFrom) {
		var v validation.CustomValidationErrors
		if p.ValidFrom == nil {
			v.Add("valid_until", "must be in the future")
		} else {
			v.Add("valid_until", "must be after valid_from")
		}
		return nil, validation.ToHTTPError(v.OrNil())
	}

	return s.store.Create(ctx, c)
}

func (s *CouponService) Get(ctx context.Context, tenantID, id string) (*model.Coupon, error) {
	return s.store.GetByID(ctx, tenantID, id)
}

func (s *CouponService) List(ctx context.Context, tenantID string, q *model.ListCouponsQuery) (*model.PaginatedResponse[model.Coupon], error) {
	items, total, err := s.store.List(ctx, tenantID, q)
	if err != nil {
		return nil, err
	}
	return model.NewPage(items, q.Pagination, total), nil
}

func (s *CouponService) Update(ctx context.Context, tenantID string, p *model.UpdateCouponPayload) (*model.Coupon, error) {
	c, err := s.store.GetByID(ctx, tenantID, p.ID)
	if err != nil {
		return nil, err
	}
	if err := p.Apply(c); err != nil {
		return nil, validation.ToHTTPError(err)
	}
	return s.store.Update(ctx, c)
}

func (s *CouponService) Delete(ctx context.Context, tenantID, id string) error {
	return s.store.Delete(ctx, tenantID, id)
}

// Resolve finds the coupon by code and checks it can be applied by the
// actor to the course right now.
func (s *CouponService) Resolve(ctx context.Context, actor model.Actor, code string, course *model.Course) (*model.Coupon, error) {
	c, err := s.store.GetByCode(ctx, actor.TenantID, model.NormalizeCode(code))
	if err != nil {
		if sqlerr.IsNotFound(err) {
			return nil, errs.NewNotFoundError("Coupon not found", true, errs.Code(model.CodeCouponNotFound))
		}
		return nil, err
	}

	used, err := s.store.CountUserRedemptions(ctx, actor.TenantID, c.ID, actor.UserID)
	if err != nil {
		return nil, err
	}

	err = c.CheckRedeemable(s.now(), model.Redemption{
		UserID:          actor.UserID,
		CourseID:        course.ID,
		CategoryID:      course.CategoryID,
		Pricing:         course.Pricing,
		UserRedemptions: used,
	}, s.engine)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Preview quotes a course with the coupon applied, without redeeming it.
func (s *CouponService) Preview(ctx context.Context, actor model.Actor, p *model.ValidateCouponPayload) (*model.CouponQuote, error) {
	course, err := s.courses.GetByID(ctx, actor.TenantID, p.CourseID)
	if err != nil {
		return nil, err
	}
	if course.Status != model.CourseStatusPublished {
		return nil, errs.NewBadRequestError("This course is not open for enrollment", true, errs.Code(model.CodeCourseNotPublished), nil, nil)
	}

	c, err := s.Resolve(ctx, actor, p.Code, course)
	if err != nil {
		return nil, err
	}

	return &model.CouponQuote{
		Code:  c.Code,
		Quote: pricing.NewQuote(course.Pricing, c),
	}, nil
}
