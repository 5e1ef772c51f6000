package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/popmap/popmap-api/internal/data"
	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/service"
)

const defaultModerateTimeout = 30 * time.Second

type moderateEventOptions struct {
	EventID string
	Note    string
}

type verifyBusinessOptions struct {
	BusinessID string
	Revoke     bool
}

func runApproveEvent(cmdCtx *commandContext, args []string) error {
	return moderateEvent(cmdCtx, args, "approve-event", true)
}

func runRejectEvent(cmdCtx *commandContext, args []string) error {
	return moderateEvent(cmdCtx, args, "reject-event", false)
}

func moderateEvent(cmdCtx *commandContext, args []string, name string, approve bool) error {
	opts, err := parseModerateEventFlags(name, args)
	if err != nil {
		return err
	}

	return withAdminDatabase(cmdCtx, func(ctx context.Context, db *sql.DB) error {
		events := service.MustNewEventService(service.EventServiceOptions{
			Events:     data.NewEventRepo(db),
			Businesses: data.NewBusinessRepo(db),
			Logger:     cmdCtx.Logger,
		})

		req := model.ModerateEventRequest{Approve: approve}
		if opts.Note != "" {
			req.Note = &opts.Note
		}

		event, moderateErr := events.Moderate(ctx, service.SystemActor(), opts.EventID, req)
		if moderateErr != nil {
			return fmt.Errorf("moderate event: %w", moderateErr)
		}

		if err := writef(os.Stdout, "Event %s (%q) is now %s\n", event.ID, event.Title, event.Status); err != nil {
			return fmt.Errorf("print moderation result: %w", err)
		}
		if event.ModerationNote != nil && *event.ModerationNote != "" {
			if err := writef(os.Stdout, "Moderation note: %s\n", *event.ModerationNote); err != nil {
				return fmt.Errorf("print moderation note: %w", err)
			}
		}
		return nil
	})
}

func parseModerateEventFlags(name string, args []string) (moderateEventOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts moderateEventOptions
	fs.StringVar(&opts.EventID, "event-id", "", "Event ID to moderate (required)")
	fs.StringVar(&opts.Note, "note", "", "Moderation note shown to the submitting owner")

	if err := fs.Parse(args); err != nil {
		return moderateEventOptions{}, err
	}

	opts.EventID = strings.TrimSpace(opts.EventID)
	opts.Note = strings.TrimSpace(opts.Note)
	if opts.EventID == "" {
		return moderateEventOptions{}, errors.New("--event-id is required")
	}

	return opts, nil
}

func runVerifyBusiness(cmdCtx *commandContext, args []string) error {
	opts, err := parseVerifyBusinessFlags(args)
	if err != nil {
		return err
	}

	return withAdminDatabase(cmdCtx, func(ctx context.Context, db *sql.DB) error {
		businesses := service.MustNewBusinessService(service.BusinessServiceOptions{
			Businesses: data.NewBusinessRepo(db),
			Logger:     cmdCtx.Logger,
		})

		business, verifyErr := businesses.SetVerified(ctx, service.SystemActor(), opts.BusinessID, !opts.Revoke)
		if verifyErr != nil {
			return fmt.Errorf("set business verification: %w", verifyErr)
		}

		state := "verified"
		if !business.Verified {
			state = "unverified"
		}
		if err := writef(os.Stdout, "Business %s (%q) is now %s\n", business.ID, business.Name, state); err != nil {
			return fmt.Errorf("print verification result: %w", err)
		}
		return nil
	})
}

func parseVerifyBusinessFlags(args []string) (verifyBusinessOptions, error) {
	fs := flag.NewFlagSet("verify-business", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts verifyBusinessOptions
	fs.StringVar(&opts.BusinessID, "business-id", "", "Business ID to update (required)")
	fs.BoolVar(&opts.Revoke, "revoke", false, "Revoke verification instead of granting it")

	if err := fs.Parse(args); err != nil {
		return verifyBusinessOptions{}, err
	}

	opts.BusinessID = strings.TrimSpace(opts.BusinessID)
	if opts.BusinessID == "" {
		return verifyBusinessOptions{}, errors.New("--business-id is required")
	}

	return opts, nil
}

func runSeedPlans(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("seed-plans", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withAdminDatabase(cmdCtx, func(ctx context.Context, db *sql.DB) error {
		billing := service.MustNewBillingService(service.BillingServiceOptions{
			Plans:         data.NewPlanRepo(db),
			Subscriptions: data.NewSubscriptionRepo(db),
			Logger:        cmdCtx.Logger,
		})

		inserted, seedErr := billing.SeedDefaultPlans(ctx, service.SystemActor())
		if seedErr != nil {
			return fmt.Errorf("seed plans: %w", seedErr)
		}

		if inserted == 0 {
			if err := writeln(os.Stdout, "Plan catalog already seeded"); err != nil {
				return fmt.Errorf("print seed result: %w", err)
			}
			return nil
		}
		if err := writef(os.Stdout, "Inserted %d plans\n", inserted); err != nil {
			return fmt.Errorf("print seed result: %w", err)
		}
		return nil
	})
}

// withAdminDatabase runs f against a DB-only connection with the short
// timeout shared by the moderation commands.
func withAdminDatabase(cmdCtx *commandContext, f func(context.Context, *sql.DB) error) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultModerateTimeout)
	defer cancel()

	db, _, err := connectInfraWithOptions(&connectInfraOptions{
		Logger: cmdCtx.Logger,
		Config: &cmdCtx.Config,
		WantDB: true,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeInfra(db, nil); cerr != nil {
			cmdCtx.Logger.Warn("close infra failed", "error", cerr)
		}
	}()

	return f(ctx, db)
}
