package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/popmap/popmap-api/internal/data/pgxutil"
	"github.com/popmap/popmap-api/internal/domain/model"
)

// ErrPlanNotFound is returned when a plan is not found.
var ErrPlanNotFound = errors.New("plan not found")

// PlanRepo provides access to the plan catalog. The only write path is
// SeedDefaults; individual plans are edited out of band.
type PlanRepo struct{ DB *sql.DB }

// NewPlanRepo creates a new PlanRepo.
func NewPlanRepo(db *sql.DB) *PlanRepo {
	return &PlanRepo{DB: db}
}

// GetByID retrieves a plan by ID.
func (r *PlanRepo) GetByID(ctx context.Context, id string) (*model.Plan, error) {
	return r.getByQuery(ctx, planGetByIDQuery, "failed to get plan by ID", id)
}

// GetByType retrieves a plan by its tier type.
func (r *PlanRepo) GetByType(ctx context.Context, planType model.PlanType) (*model.Plan, error) {
	if !planType.Valid() {
		return nil, fmt.Errorf("unsupported plan type %q", planType)
	}
	return r.getByQuery(ctx, planGetByTypeQuery, "failed to get plan by type", string(planType))
}

// GetByStripePriceID retrieves the plan mapped to a Stripe price.
func (r *PlanRepo) GetByStripePriceID(ctx context.Context, priceID string) (*model.Plan, error) {
	return r.getByQuery(ctx, planGetByStripePriceQuery, "failed to get plan by stripe price", priceID)
}

// SeedDefaults inserts any missing plans from the canonical catalog. Existing
// rows are left untouched so operator edits survive re-seeding. Returns the
// number of plans inserted.
func (r *PlanRepo) SeedDefaults(ctx context.Context) (int, error) {
	inserted := 0
	for _, plan := range model.DefaultPlans() {
		err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
			tag, err := conn.Exec(ctx, planSeedQuery,
				string(plan.Type), plan.Name, plan.MonthlyPriceCents,
				plan.MaxEventsPerMonth, plan.CustomSubdomain, plan.FeaturedListing,
				plan.Analytics, plan.PrioritySupport, plan.Public,
			)
			if err != nil {
				return err
			}
			if tag.RowsAffected() > 0 {
				inserted++
			}
			return nil
		})
		if err != nil {
			return inserted, fmt.Errorf("failed to seed plan %q: %w", plan.Type, err)
		}
	}
	return inserted, nil
}

// List returns plans ordered by price. When publicOnly is set, internal
// plans (e.g. beta tester) are excluded.
func (r *PlanRepo) List(ctx context.Context, publicOnly bool) ([]*model.Plan, error) {
	query := planListQuery
	if publicOnly {
		query = planListPublicQuery
	}

	var rowsOut []model.Plan
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Plan])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	res := make([]*model.Plan, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// --- helpers ---

const planColumns = `id, type, name, monthly_price_cents, stripe_product_id, stripe_price_id,
			max_events_per_month, custom_subdomain, featured_listing, analytics,
			priority_support, public, created_at, updated_at`

const (
	planGetByIDQuery = `
		SELECT ` + planColumns + `
		FROM plans
		WHERE id = $1`

	planGetByTypeQuery = `
		SELECT ` + planColumns + `
		FROM plans
		WHERE type = $1`

	planGetByStripePriceQuery = `
		SELECT ` + planColumns + `
		FROM plans
		WHERE stripe_price_id = $1`

	planListQuery = `
		SELECT ` + planColumns + `
		FROM plans
		ORDER BY monthly_price_cents ASC, name ASC`

	planListPublicQuery = `
		SELECT ` + planColumns + `
		FROM plans
		WHERE public = TRUE
		ORDER BY monthly_price_cents ASC, name ASC`

	planSeedQuery = `
		INSERT INTO plans (type, name, monthly_price_cents, max_events_per_month,
			custom_subdomain, featured_listing, analytics, priority_support, public)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (type) DO NOTHING`
)

// getByQuery is a helper function to execute a query and return a single plan.
func (r *PlanRepo) getByQuery(
	ctx context.Context,
	q string,
	errMsg string,
	args ...any,
) (*model.Plan, error) {
	var plan model.Plan
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		plan, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Plan])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	return &plan, nil
}
