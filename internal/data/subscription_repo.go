package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data/pgxutil"
	"github.com/popmap/popmap-api/internal/domain/model"
)

// ErrSubscriptionNotFound is returned when a subscription is not found.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// SubscriptionRepo provides database operations for Stripe-backed subscriptions.
type SubscriptionRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewSubscriptionRepo creates a new SubscriptionRepo with real time provider.
func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo {
	return &SubscriptionRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewSubscriptionRepoWithTimeProvider creates a new SubscriptionRepo with a custom time provider (useful for tests).
func NewSubscriptionRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *SubscriptionRepo {
	return &SubscriptionRepo{DB: db, timeProvider: tp}
}

// Upsert creates or replaces the profile's subscription row from Stripe
// state. A profile holds at most one subscription, so the conflict target
// is profile_id and the incoming Stripe state wins wholesale.
func (r *SubscriptionRepo) Upsert(
	ctx context.Context,
	params model.UpsertSubscriptionParams,
) (*model.Subscription, error) {
	if strings.TrimSpace(params.ProfileID) == "" {
		return nil, errors.New("profile_id is required")
	}
	if strings.TrimSpace(params.PlanID) == "" {
		return nil, errors.New("plan_id is required")
	}
	if !params.Status.Valid() {
		return nil, fmt.Errorf("unsupported subscription status %q", params.Status)
	}

	createdAt := r.timeProvider.Now().UTC()
	var out model.Subscription
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO subscriptions (
				profile_id, plan_id, stripe_customer_id, stripe_subscription_id,
				status, current_period_start, current_period_end, cancel_at_period_end,
				created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9
			)
			ON CONFLICT (profile_id) DO UPDATE SET
				plan_id = EXCLUDED.plan_id,
				stripe_customer_id = EXCLUDED.stripe_customer_id,
				stripe_subscription_id = EXCLUDED.stripe_subscription_id,
				status = EXCLUDED.status,
				current_period_start = EXCLUDED.current_period_start,
				current_period_end = EXCLUDED.current_period_end,
				cancel_at_period_end = EXCLUDED.cancel_at_period_end
			RETURNING `+subscriptionColumns,
			params.ProfileID,
			params.PlanID,
			params.StripeCustomerID,
			params.StripeSubscriptionID,
			string(params.Status),
			params.CurrentPeriodStart.UTC(),
			params.CurrentPeriodEnd.UTC(),
			params.CancelAtPeriodEnd,
			createdAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Subscription])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return &out, nil
}

// GetByProfile returns the profile's subscription joined with its plan, or
// nil when the profile has never subscribed. Callers treat nil as the free
// tier.
func (r *SubscriptionRepo) GetByProfile(ctx context.Context, profileID string) (*model.SubscriptionWithPlan, error) {
	var out model.SubscriptionWithPlan
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, subscriptionGetByProfileQuery, profileID)
		if err != nil {
			return err
		}
		sub, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Subscription])
		if err != nil {
			return err
		}

		planRows, err := conn.Query(ctx, planGetByIDQuery, sub.PlanID)
		if err != nil {
			return err
		}
		plan, err := pgx.CollectOneRow(planRows, pgx.RowToStructByName[model.Plan])
		if err != nil {
			return err
		}

		out = model.SubscriptionWithPlan{Subscription: sub, Plan: plan}
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription by profile: %w", err)
	}
	return &out, nil
}

// GetByStripeCustomerID retrieves a subscription by Stripe customer.
func (r *SubscriptionRepo) GetByStripeCustomerID(ctx context.Context, customerID string) (*model.Subscription, error) {
	return r.getByQuery(ctx, subscriptionGetByCustomerQuery,
		"failed to get subscription by stripe customer", customerID)
}

// GetByStripeSubscriptionID retrieves a subscription by Stripe subscription ID.
func (r *SubscriptionRepo) GetByStripeSubscriptionID(
	ctx context.Context,
	subscriptionID string,
) (*model.Subscription, error) {
	return r.getByQuery(ctx, subscriptionGetByStripeIDQuery,
		"failed to get subscription by stripe subscription", subscriptionID)
}

// UpdateStatus applies a webhook-driven status transition keyed by the
// Stripe subscription ID. Optional fields update only when present.
func (r *SubscriptionRepo) UpdateStatus(
	ctx context.Context,
	params core.UpdateSubscriptionStatusParams,
) (*model.Subscription, error) {
	if !params.Status.Valid() {
		return nil, fmt.Errorf("unsupported subscription status %q", params.Status)
	}

	setParts := []string{"status = $1"}
	args := []any{string(params.Status)}
	nextIdx := func() int { return len(args) + 1 }

	if params.CancelAtPeriodEnd != nil {
		setParts = append(setParts, fmt.Sprintf("cancel_at_period_end = $%d", nextIdx()))
		args = append(args, *params.CancelAtPeriodEnd)
	}
	if params.CurrentPeriodEnd != nil {
		setParts = append(setParts, fmt.Sprintf("current_period_end = $%d", nextIdx()))
		args = append(args, params.CurrentPeriodEnd.UTC())
	}
	args = append(args, params.StripeSubscriptionID)

	query := "UPDATE subscriptions SET " + strings.Join(setParts, ", ") +
		" WHERE stripe_subscription_id = $" + strconv.Itoa(len(args)) +
		" RETURNING " + subscriptionColumns

	var out model.Subscription
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Subscription])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to update subscription status: %w", err)
	}
	return &out, nil
}

// SaveStripeCustomer records the Stripe customer minted for a profile. The
// mapping is write-once per profile; a second save with the same customer is
// a no-op and a conflicting one is rejected by the unique constraint.
func (r *SubscriptionRepo) SaveStripeCustomer(ctx context.Context, profileID, customerID string) error {
	if strings.TrimSpace(profileID) == "" || strings.TrimSpace(customerID) == "" {
		return errors.New("profile_id and customer_id are required")
	}

	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			INSERT INTO stripe_customers (profile_id, stripe_customer_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (profile_id) DO NOTHING
		`, profileID, customerID, r.timeProvider.Now().UTC())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save stripe customer: %w", err)
	}
	return nil
}

// GetStripeCustomer returns the Stripe customer for a profile, or "" when
// none has been minted yet.
func (r *SubscriptionRepo) GetStripeCustomer(ctx context.Context, profileID string) (string, error) {
	var customerID string
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			SELECT stripe_customer_id FROM stripe_customers WHERE profile_id = $1
		`, profileID).Scan(&customerID)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get stripe customer: %w", err)
	}
	return customerID, nil
}

// GetProfileByStripeCustomer reverse-maps a Stripe customer to its profile.
// Webhook events identify customers by Stripe ID only.
func (r *SubscriptionRepo) GetProfileByStripeCustomer(ctx context.Context, customerID string) (string, error) {
	var profileID string
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			SELECT profile_id FROM stripe_customers WHERE stripe_customer_id = $1
		`, customerID).Scan(&profileID)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get profile by stripe customer: %w", err)
	}
	return profileID, nil
}

// --- helpers ---

const subscriptionColumns = `id, profile_id, plan_id, stripe_customer_id, stripe_subscription_id,
			status, current_period_start, current_period_end, cancel_at_period_end,
			created_at, updated_at`

const (
	subscriptionGetByProfileQuery = `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE profile_id = $1`

	subscriptionGetByCustomerQuery = `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE stripe_customer_id = $1`

	subscriptionGetByStripeIDQuery = `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE stripe_subscription_id = $1`
)

// getByQuery is a helper function to execute a query and return a single subscription.
func (r *SubscriptionRepo) getByQuery(
	ctx context.Context,
	q string,
	errMsg string,
	args ...any,
) (*model.Subscription, error) {
	var sub model.Subscription
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		sub, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Subscription])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	return &sub, nil
}
