// Package repository handles all interactions with the database.
//
// It contains raw SQL queries and methods to fetch, persist,
// or update data, abstracting SQL logic away from the service layer.
// Every query is scoped by tenant_id except the cross-tenant sweeps run by
// background jobs.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/server"
	"github.com/deppfellow/schoolhub/internal/sqlerr"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type txKey struct{}

// store is embedded by every repository. Queries run on the transaction
// carried by ctx when there is one.
type store struct {
	pool *pgxpool.Pool
}

func (s store) db(ctx context.Context) DBTX {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// Transactor runs fn inside a database transaction. Repositories called
// with the ctx passed to fn share the transaction.
type Transactor struct {
	pool *pgxpool.Pool
}

func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	return pgx.BeginFunc(ctx, t.pool, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Repositories is a container for all repository instances.
type Repositories struct {
	Tx            *Transactor
	Users         *UserRepository
	Categories    *CategoryRepository
	Courses       *CourseRepository
	Coupons       *CouponRepository
	Enrollments   *EnrollmentRepository
	Payments      *PaymentRepository
	LiveClasses   *LiveClassRepository
	Tickets       *TicketRepository
	Emails        *EmailRepository
	Notifications *NotificationRepository
}

func NewRepositories(s *server.Server) *Repositories {
	base := store{pool: s.DB.Pool}

	return &Repositories{
		Tx:            &Transactor{pool: s.DB.Pool},
		Users:         &UserRepository{base},
		Categories:    &CategoryRepository{base},
		Courses:       &CourseRepository{base},
		Coupons:       &CouponRepository{base},
		Enrollments:   &EnrollmentRepository{base},
		Payments:      &PaymentRepository{base},
		LiveClasses:   &LiveClassRepository{base},
		Tickets:       &TicketRepository{base},
		Emails:        &EmailRepository{base},
		Notifications: &NotificationRepository{base},
	}
}

// collectOne scans exactly one row into T. No row becomes sqlerr.NotFound(table).
func collectOne[T any](rows pgx.Rows, table string) (*T, error) {
	item, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sqlerr.NotFound(table)
		}
		return nil, fmt.Errorf("failed to collect row from table:%s: %w", table, err)
	}
	return &item, nil
}

func collectAll[T any](rows pgx.Rows, table string) ([]T, error) {
	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, fmt.Errorf("failed to collect rows from table:%s: %w", table, err)
	}
	return items, nil
}

// selectPage runs base twice: once to count the matching rows, once for
// the requested page. base must carry FROM and WHERE but no columns.
func selectPage[T any](ctx context.Context, db DBTX, table, columns string, base sq.SelectBuilder, orderBy string, p model.Pagination) ([]T, int, error) {
	countSQL, countArgs, err := base.Columns("COUNT(*)").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query for table:%s: %w", table, err)
	}

	var total int
	if err := db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count rows in table:%s: %w", table, err)
	}

	_, limit := p.Normalized()
	pageSQL, pageArgs, err := base.
		Columns(columns).
		OrderBy(orderBy).
		Limit(uint64(limit)).
		Offset(uint64(p.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build page query for table:%s: %w", table, err)
	}

	rows, err := db.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute page query for table:%s: %w", table, err)
	}

	items, err := collectAll[T](rows, table)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern is an ILIKE pattern matching s anywhere, with wildcards in s escaped.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(s)) + "%"
}
