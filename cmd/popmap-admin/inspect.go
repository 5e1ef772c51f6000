package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/popmap/popmap-api/internal/data"
	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/service"
)

const defaultInspectTimeout = time.Minute

type listEventsOptions struct {
	Status     string
	BusinessID string
	Q          string
	Limit      int
	Output     outputOptions
}

type listBusinessesOptions struct {
	Q        string
	Verified string
	Limit    int
	Offset   int
	Output   outputOptions
}

type listPlansOptions struct {
	IncludeHidden bool
	Output        outputOptions
}

type jobStatsOptions struct {
	Type   string
	Output outputOptions
}

func runListEvents(cmdCtx *commandContext, args []string) error {
	opts, err := parseListEventsFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultInspectTimeout)
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

	listOpts := model.EventListOptions{
		Limit:      opts.Limit,
		IncludeAll: true,
	}
	if opts.Status != "" {
		status, ok := model.ParseEventStatus(opts.Status)
		if !ok {
			return fmt.Errorf("unsupported event status %q", opts.Status)
		}
		listOpts.Status = &status
	}
	if opts.BusinessID != "" {
		listOpts.BusinessID = &opts.BusinessID
	}
	if opts.Q != "" {
		listOpts.Q = &opts.Q
	}

	page, err := data.NewEventRepo(db).List(ctx, listOpts)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	if opts.Output.wantsJSON() {
		return renderJSON(os.Stdout, page, opts.Output.Query)
	}
	return printEventRows(page, opts.Limit)
}

func parseListEventsFlags(args []string) (listEventsOptions, error) {
	fs := flag.NewFlagSet("list-events", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listEventsOptions
	fs.StringVar(&opts.Status, "status", "", "Filter by status (pending, approved, rejected, cancelled)")
	fs.StringVar(&opts.BusinessID, "business-id", "", "Filter by business ID")
	fs.StringVar(&opts.Q, "q", "", "Filter by title substring (case-insensitive)")
	fs.IntVar(&opts.Limit, "limit", 20, "Maximum rows to display")
	bindOutputFlags(fs, &opts.Output)

	if err := fs.Parse(args); err != nil {
		return listEventsOptions{}, err
	}

	opts.Status = strings.ToLower(strings.TrimSpace(opts.Status))
	opts.BusinessID = strings.TrimSpace(opts.BusinessID)
	opts.Q = strings.TrimSpace(opts.Q)
	if opts.Limit <= 0 {
		return listEventsOptions{}, errors.New("--limit must be greater than zero")
	}
	if opts.Status != "" {
		if _, ok := model.ParseEventStatus(opts.Status); !ok {
			return listEventsOptions{}, fmt.Errorf("unsupported event status %q", opts.Status)
		}
	}

	return opts, nil
}

func printEventRows(page *model.EventListPage, limit int) error {
	if err := writef(os.Stdout, "\nEvents (limit %d)\n", limit); err != nil {
		return fmt.Errorf("write events header: %w", err)
	}

	if page == nil || len(page.Events) == 0 {
		if err := writeln(os.Stdout, "  (no events matched)"); err != nil {
			return fmt.Errorf("write events empty message: %w", err)
		}
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "ID\tSTATUS\tTITLE\tBUSINESS ID\tSTART (UTC)\tEND (UTC)"); err != nil {
		return fmt.Errorf("write events header row: %w", err)
	}
	for _, event := range page.Events {
		if err := writef(
			tw,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			event.ID,
			event.Status,
			event.Title,
			event.BusinessID,
			formatTimestamp(event.StartTime),
			formatTimestamp(event.EndTime),
		); err != nil {
			return fmt.Errorf("write event row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush events table: %w", err)
	}

	if page.NextCursor != nil {
		if err := writeln(os.Stdout, "More events available; increase --limit to view additional rows."); err != nil {
			return fmt.Errorf("write events more-rows message: %w", err)
		}
	}
	return nil
}

func runListBusinesses(cmdCtx *commandContext, args []string) error {
	opts, err := parseListBusinessesFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultInspectTimeout)
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

	listOpts := model.BusinessListOptions{
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	if opts.Q != "" {
		listOpts.Q = &opts.Q
	}
	if opts.Verified != "" {
		verified := opts.Verified == "true"
		listOpts.Verified = &verified
	}

	businesses, err := service.MustNewBusinessService(service.BusinessServiceOptions{
		Businesses: data.NewBusinessRepo(db),
		Logger:     cmdCtx.Logger,
	}).List(ctx, listOpts)
	if err != nil {
		return fmt.Errorf("list businesses: %w", err)
	}

	if opts.Output.wantsJSON() {
		return renderJSON(os.Stdout, businesses, opts.Output.Query)
	}
	return printBusinessRows(businesses, opts.Limit, opts.Offset)
}

func parseListBusinessesFlags(args []string) (listBusinessesOptions, error) {
	fs := flag.NewFlagSet("list-businesses", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listBusinessesOptions
	fs.StringVar(&opts.Q, "q", "", "Filter by name substring (case-insensitive)")
	fs.StringVar(&opts.Verified, "verified", "", "Filter by verification state (true or false)")
	fs.IntVar(&opts.Limit, "limit", 20, "Maximum rows to display")
	fs.IntVar(&opts.Offset, "offset", 0, "Offset for query results")
	bindOutputFlags(fs, &opts.Output)

	if err := fs.Parse(args); err != nil {
		return listBusinessesOptions{}, err
	}

	opts.Q = strings.TrimSpace(opts.Q)
	opts.Verified = strings.ToLower(strings.TrimSpace(opts.Verified))
	if opts.Limit <= 0 {
		return listBusinessesOptions{}, errors.New("--limit must be greater than zero")
	}
	if opts.Offset < 0 {
		return listBusinessesOptions{}, errors.New("--offset must be >= 0")
	}
	if opts.Verified != "" && opts.Verified != "true" && opts.Verified != "false" {
		return listBusinessesOptions{}, errors.New("--verified must be true or false")
	}

	return opts, nil
}

func printBusinessRows(businesses []*model.Business, limit, offset int) error {
	if err := writef(os.Stdout, "\nBusinesses (limit %d, offset %d)\n", limit, offset); err != nil {
		return fmt.Errorf("write businesses header: %w", err)
	}

	if len(businesses) == 0 {
		if err := writeln(os.Stdout, "  (no businesses matched)"); err != nil {
			return fmt.Errorf("write businesses empty message: %w", err)
		}
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "ID\tNAME\tSUBDOMAIN\tVERIFIED\tOWNER ID\tCREATED (UTC)"); err != nil {
		return fmt.Errorf("write businesses header row: %w", err)
	}
	for _, business := range businesses {
		if err := writef(
			tw,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			business.ID,
			business.Name,
			strOrDash(business.Subdomain),
			boolMark(business.Verified),
			business.OwnerID,
			formatTimestamp(business.CreatedAt),
		); err != nil {
			return fmt.Errorf("write business row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush businesses table: %w", err)
	}

	if len(businesses) == limit {
		if err := writeln(os.Stdout, "More rows may be available; adjust --offset or --limit to view additional data."); err != nil {
			return fmt.Errorf("write businesses more-rows message: %w", err)
		}
	}
	return nil
}

func runListPlans(cmdCtx *commandContext, args []string) error {
	opts, err := parseListPlansFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultInspectTimeout)
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

	billing := service.MustNewBillingService(service.BillingServiceOptions{
		Plans:         data.NewPlanRepo(db),
		Subscriptions: data.NewSubscriptionRepo(db),
		Logger:        cmdCtx.Logger,
	})
	plans, err := billing.ListPlans(ctx, !opts.IncludeHidden)
	if err != nil {
		return fmt.Errorf("list plans: %w", err)
	}

	if opts.Output.wantsJSON() {
		return renderJSON(os.Stdout, plans, opts.Output.Query)
	}
	return printPlanRows(plans)
}

func parseListPlansFlags(args []string) (listPlansOptions, error) {
	fs := flag.NewFlagSet("list-plans", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listPlansOptions
	fs.BoolVar(&opts.IncludeHidden, "include-hidden", false, "Include plans not shown on public pricing pages")
	bindOutputFlags(fs, &opts.Output)

	if err := fs.Parse(args); err != nil {
		return listPlansOptions{}, err
	}

	return opts, nil
}

func printPlanRows(plans []*model.Plan) error {
	if err := writef(os.Stdout, "\nPlan catalog\n"); err != nil {
		return fmt.Errorf("write plans header: %w", err)
	}

	if len(plans) == 0 {
		if err := writeln(os.Stdout, "  (no plans found; run seed-plans to install the defaults)"); err != nil {
			return fmt.Errorf("write plans empty message: %w", err)
		}
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "TYPE\tNAME\tPRICE/MO\tEVENTS/MO\tSUBDOMAIN\tANALYTICS\tPUBLIC"); err != nil {
		return fmt.Errorf("write plans header row: %w", err)
	}
	for _, plan := range plans {
		events := "unlimited"
		if plan.MaxEventsPerMonth > 0 {
			events = fmt.Sprintf("%d", plan.MaxEventsPerMonth)
		}
		if err := writef(
			tw,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			plan.Type,
			plan.Name,
			formatCents(plan.MonthlyPriceCents),
			events,
			boolMark(plan.CustomSubdomain),
			boolMark(plan.Analytics),
			boolMark(plan.Public),
		); err != nil {
			return fmt.Errorf("write plan row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush plans table: %w", err)
	}
	return nil
}

func runJobStats(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobStatsFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultInspectTimeout)
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

	jobTypes := []model.JobType{model.JobTypeEmail, model.JobTypeReminders, model.JobTypeRollup}
	if opts.Type != "" {
		jobTypes = []model.JobType{model.JobType(opts.Type)}
	}

	repo := data.NewJobRepo(db, data.RepoConfig{})
	stats := make(map[model.JobType]*model.JobStats, len(jobTypes))
	for _, jobType := range jobTypes {
		typeStats, statsErr := repo.Stats(ctx, jobType)
		if statsErr != nil {
			return fmt.Errorf("job stats for %s: %w", jobType, statsErr)
		}
		stats[jobType] = typeStats
	}

	if opts.Output.wantsJSON() {
		return renderJSON(os.Stdout, stats, opts.Output.Query)
	}
	return printJobStats(jobTypes, stats)
}

func parseJobStatsFlags(args []string) (jobStatsOptions, error) {
	fs := flag.NewFlagSet("job-stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts jobStatsOptions
	fs.StringVar(&opts.Type, "type", "", "Limit to one job type (email, reminders, rollup)")
	bindOutputFlags(fs, &opts.Output)

	if err := fs.Parse(args); err != nil {
		return jobStatsOptions{}, err
	}

	opts.Type = strings.ToLower(strings.TrimSpace(opts.Type))
	if opts.Type != "" && !model.JobType(opts.Type).Valid() {
		return jobStatsOptions{}, fmt.Errorf("unsupported job type %q", opts.Type)
	}

	return opts, nil
}

func printJobStats(jobTypes []model.JobType, stats map[model.JobType]*model.JobStats) error {
	if err := writef(os.Stdout, "\nJob queue counts\n"); err != nil {
		return fmt.Errorf("write job stats header: %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "TYPE\tPENDING\tRUNNING\tCOMPLETED\tFAILED"); err != nil {
		return fmt.Errorf("write job stats header row: %w", err)
	}
	for _, jobType := range jobTypes {
		typeStats := stats[jobType]
		if typeStats == nil {
			typeStats = &model.JobStats{}
		}
		if err := writef(
			tw,
			"%s\t%d\t%d\t%d\t%d\n",
			jobType,
			typeStats.Pending,
			typeStats.Running,
			typeStats.Completed,
			typeStats.Failed,
		); err != nil {
			return fmt.Errorf("write job stats row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush job stats table: %w", err)
	}
	return nil
}
