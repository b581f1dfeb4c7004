package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/deppfellow/schoolhub/internal/errs"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/sqlerr"
)

// course_ids is read and written as text[] so it maps onto []string.
const couponColumns = `id, tenant_id, code, description, discount_type, discount_value, currency,
	max_uses, max_uses_per_user, used_count, min_subtotal, course_ids::text[] AS course_ids,
	condition, valid_from, valid_until, active, created_at, updated_at`

type CouponRepository struct {
	store
}

func couponArgs(c *model.Coupon) pgx.NamedArgs {
	courseIDs := c.CourseIDs
	if courseIDs == nil {
		courseIDs = []string{}
	}
	return pgx.NamedArgs{
		"tenant_id":         c.TenantID,
		"id":                c.ID,
		"code":              c.Code,
		"description":       c.Description,
		"discount_type":     c.DiscountType,
		"discount_value":    c.DiscountValue,
		"currency":          c.Currency,
		"max_uses":          c.MaxUses,
		"max_uses_per_user": c.MaxUsesPerUser,
		"min_subtotal":      c.MinSubtotal,
		"course_ids":        courseIDs,
		"condition":         c.Condition,
		"valid_from":        c.ValidFrom,
		"valid_until":       c.ValidUntil,
		"active":            c.Active,
	}
}

func (r *CouponRepository) Create(ctx context.Context, c *model.Coupon) (*model.Coupon, error) {
	stmt := `
		INSERT INTO coupons (
			id, tenant_id, code, description, discount_type, discount_value, currency,
			max_uses, max_uses_per_user, min_subtotal, course_ids, condition, valid_from, valid_until, active
		)
		VALUES (
			@id, @tenant_id, @code, @description, @discount_type, @discount_value, @currency,
			@max_uses, @max_uses_per_user, @min_subtotal, @course_ids::text[]::uuid[], @condition, @valid_from, @valid_until, @active
		)
		RETURNING ` + couponColumns

	args := couponArgs(c)
	args["id"] = uuid.NewString()

	rows, err := r.db(ctx).Query(ctx, stmt, args)
	if err != nil {
		return nil, fmt.Errorf("failed to execute create coupon query for code=%s: %w", c.Code, err)
	}

	return collectOne[model.Coupon](rows, "coupons")
}

func (r *CouponRepository) GetByID(ctx context.Context, tenantID, id string) (*model.Coupon, error) {
	stmt := `SELECT ` + couponColumns + ` FROM coupons WHERE tenant_id = @tenant_id AND id = @id`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to execute get coupon query for coupon_id=%s: %w", id, err)
	}

	return collectOne[model.Coupon](rows, "coupons")
}

// GetByCode looks up a normalized code.
func (r *CouponRepository) GetByCode(ctx context.Context, tenantID, code string) (*model.Coupon, error) {
	stmt := `SELECT ` + couponColumns + ` FROM coupons WHERE tenant_id = @tenant_id AND code = @code`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "code": code})
	if err != nil {
		return nil, fmt.Errorf("failed to execute get coupon query for code=%s: %w", code, err)
	}

	return collectOne[model.Coupon](rows, "coupons")
}

func couponFilter(tenantID string, q *model.ListCouponsQuery) sq.SelectBuilder {
	b := psql.Select().From("coupons").Where(sq.Eq{"tenant_id": tenantID})
	if q.Active != nil {
		b = b.Where(sq.Eq{"active": *q.Active})
	}
	if q.Search != "" {
		b = b.Where(sq.ILike{"code": containsPattern(q.Search)})
	}
	return b
}

func (r *CouponRepository) List(ctx context.Context, tenantID string, q *model.ListCouponsQuery) ([]model.Coupon, int, error) {
	return selectPage[model.Coupon](ctx, r.db(ctx), "coupons", couponColumns, couponFilter(tenantID, q), "created_at DESC, id", q.Pagination)
}

// Update writes every editable field of c. used_count is never written here.
func (r *CouponRepository) Update(ctx context.Context, c *model.Coupon) (*model.Coupon, error) {
	stmt := `
		UPDATE coupons
		SET description = @description,
			discount_type = @discount_type,
			discount_value = @discount_value,
			currency = @currency,
			max_uses = @max_uses,
			max_uses_per_user = @max_uses_per_user,
			min_subtotal = @min_subtotal,
			course_ids = @course_ids::text[]::uuid[],
			condition = @condition,
			valid_from = @valid_from,
			valid_until = @valid_until,
			active = @active,
			updated_at = now()
		WHERE tenant_id = @tenant_id AND id = @id
		RETURNING ` + couponColumns

	rows, err := r.db(ctx).Query(ctx, stmt, couponArgs(c))
	if err != nil {
		return nil, fmt.Errorf("failed to execute update coupon query for coupon_id=%s: %w", c.ID, err)
	}

	return collectOne[model.Coupon](rows, "coupons")
}

func (r *CouponRepository) Delete(ctx context.Context, tenantID, id string) error {
	tag, err := r.db(ctx).Exec(ctx,
		`DELETE FROM coupons WHERE tenant_id = @tenant_id AND id = @id`,
		pgx.NamedArgs{"tenant_id": tenantID, "id": id},
	)
	if err != nil {
		return fmt.Errorf("failed to execute delete coupon query for coupon_id=%s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return sqlerr.NotFound("coupons")
	}
	return nil
}

// CountUserRedemptions is the number of times userID redeemed the coupon.
func (r *CouponRepository) CountUserRedemptions(ctx context.Context, tenantID, couponID, userID string) (int, error) {
	stmt := `
		SELECT COUNT(*) FROM coupon_redemptions
		WHERE tenant_id = @tenant_id AND coupon_id = @coupon_id AND user_id = @user_id
	`

	var n int
	err := r.db(ctx).QueryRow(ctx, stmt, pgx.NamedArgs{
		"tenant_id": tenantID,
		"coupon_id": couponID,
		"user_id":   userID,
	}).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count redemptions for coupon_id=%s: %w", couponID, err)
	}
	return n, nil
}

// couponUsage is the part of a coupon row that decides whether another use
// can be reserved.
type couponUsage struct {
	Active         bool
	UsedCount      int
	MaxUses        *int
	MaxUsesPerUser *int
}

// check returns the conflict that stops one more use by a user who already
// holds userUses reservations.
func (u couponUsage) check(userUses int) error {
	switch {
	case !u.Active:
		return errs.NewConflictError("This coupon is no longer active", true, errs.Code(model.CodeCouponInactive))
	case u.MaxUses != nil && u.UsedCount >= *u.MaxUses:
		return errs.NewConflictError("This coupon has been fully redeemed", true, errs.Code(model.CodeCouponExhausted))
	case u.MaxUsesPerUser != nil && userUses >= *u.MaxUsesPerUser:
		return errs.NewConflictError("You have already used this coupon", true, errs.Code(model.CodeCouponUserLimit))
	}
	return nil
}

// Redeem reserves one use of the coupon for an enrollment, pending ones
// included. The coupon row stays locked until the surrounding transaction
// ends, so concurrent checkouts are checked one after the other against
// both max_uses and max_uses_per_user.
func (r *CouponRepository) Redeem(ctx context.Context, tenantID, couponID, userID, enrollmentID string, discount decimal.Decimal) error {
	db := r.db(ctx)

	var u couponUsage
	err := db.QueryRow(ctx, `
		SELECT active, used_count, max_uses, max_uses_per_user
		FROM coupons
		WHERE tenant_id = @tenant_id AND id = @id
		FOR UPDATE
	`, pgx.NamedArgs{"tenant_id": tenantID, "id": couponID}).Scan(&u.Active, &u.UsedCount, &u.MaxUses, &u.MaxUsesPerUser)
	if errors.Is(err, pgx.ErrNoRows) {
		return sqlerr.NotFound("coupons")
	}
	if err != nil {
		return fmt.Errorf("failed to lock coupon_id=%s: %w", couponID, err)
	}

	userUses := 0
	if u.MaxUsesPerUser != nil {
		if userUses, err = r.CountUserRedemptions(ctx, tenantID, couponID, userID); err != nil {
			return err
		}
	}
	if err := u.check(userUses); err != nil {
		return err
	}

	_, err = db.Exec(ctx, `
		UPDATE coupons SET used_count = used_count + 1, updated_at = now()
		WHERE tenant_id = @tenant_id AND id = @id
	`, pgx.NamedArgs{"tenant_id": tenantID, "id": couponID})
	if err != nil {
		return fmt.Errorf("failed to execute redeem coupon query for coupon_id=%s: %w", couponID, err)
	}

	_, err = db.Exec(ctx, `
		INSERT INTO coupon_redemptions (id, tenant_id, coupon_id, user_id, enrollment_id, discount_amount)
		VALUES (@id, @tenant_id, @coupon_id, @user_id, @enrollment_id, @discount_amount)
	`, pgx.NamedArgs{
		"id":              uuid.NewString(),
		"tenant_id":       tenantID,
		"coupon_id":       couponID,
		"user_id":         userID,
		"enrollment_id":   enrollmentID,
		"discount_amount": discount,
	})
	if err != nil {
		return fmt.Errorf("failed to record redemption of coupon_id=%s for enrollment_id=%s: %w", couponID, enrollmentID, err)
	}
	return nil
}

// Release gives back the use reserved for an enrollment. An enrollment
// without a reservation is left alone.
func (r *CouponRepository) Release(ctx context.Context, tenantID, enrollmentID string) error {
	db := r.db(ctx)

	var couponID string
	err := db.QueryRow(ctx, `
		DELETE FROM coupon_redemptions
		WHERE tenant_id = @tenant_id AND enrollment_id = @enrollment_id
		RETURNING coupon_id::text
	`, pgx.NamedArgs{"tenant_id": tenantID, "enrollment_id": enrollmentID}).Scan(&couponID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete redemption for enrollment_id=%s: %w", enrollmentID, err)
	}

	_, err = db.Exec(ctx, `
		UPDATE coupons SET used_count = GREATEST(used_count - 1, 0), updated_at = now()
		WHERE tenant_id = @tenant_id AND id = @id
	`, pgx.NamedArgs{"tenant_id": tenantID, "id": couponID})
	if err != nil {
		return fmt.Errorf("failed to release coupon_id=%s: %w", couponID, err)
	}
	return nil
}
