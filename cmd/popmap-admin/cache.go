package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// mapCacheKeyPattern matches every cached map-data payload plus the
// generation key; deleting the generation resets the cache namespace too.
const mapCacheKeyPattern = "mapdata:*"

type clearMapCacheOptions struct {
	DryRun bool
	Yes    bool
}

type mapCacheConfirmOptions struct {
	opts clearMapCacheOptions
}

func (m mapCacheConfirmOptions) IsDryRun() bool { return m.opts.DryRun }
func (m mapCacheConfirmOptions) IsYes() bool    { return m.opts.Yes }
func (m mapCacheConfirmOptions) GetWarning() string {
	return "WARNING: this will delete every cached map-data payload; the next map loads fall through to Postgres."
}
func (m mapCacheConfirmOptions) GetTarget() string { return "" }

func runClearMapCache(cmdCtx *commandContext, args []string) error {
	opts, err := parseClearMapCacheFlags(args)
	if err != nil {
		return err
	}
	if confirmErr := confirmAction(mapCacheConfirmOptions{opts}, "clear map cache"); confirmErr != nil {
		return confirmErr
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	_, redisClient, err := connectInfraWithOptions(&connectInfraOptions{
		Logger:    cmdCtx.Logger,
		Config:    &cmdCtx.Config,
		WantRedis: true,
	})
	if err != nil {
		return err
	}
	if redisClient == nil {
		if writeErr := writeln(os.Stderr, "Redis client is not available"); writeErr != nil {
			return fmt.Errorf("print redis availability: %w", writeErr)
		}
		return nil
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	deleted, err := purgeMapCacheKeys(&purgeMapCacheRequest{
		Ctx:     ctx,
		Client:  redisClient,
		Logger:  cmdCtx.Logger,
		Options: opts,
	})
	if err != nil {
		return err
	}

	if opts.DryRun {
		if writeErr := writef(os.Stdout, "Dry-run: would delete %d map cache keys\n", deleted); writeErr != nil {
			return fmt.Errorf("print dry-run summary: %w", writeErr)
		}
		return nil
	}
	if writeErr := writef(os.Stdout, "Deleted %d map cache keys\n", deleted); writeErr != nil {
		return fmt.Errorf("print clear summary: %w", writeErr)
	}
	return nil
}

func parseClearMapCacheFlags(args []string) (clearMapCacheOptions, error) {
	fs := flag.NewFlagSet("clear-map-cache", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts clearMapCacheOptions
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Print actions without executing")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return clearMapCacheOptions{}, err
	}

	return opts, nil
}

type purgeMapCacheRequest struct {
	Ctx     context.Context
	Client  redis.UniversalClient
	Logger  *slog.Logger
	Options clearMapCacheOptions
}

func purgeMapCacheKeys(req *purgeMapCacheRequest) (int, error) {
	if req == nil {
		return 0, errors.New("purge request is required")
	}

	req.Logger.Info("scanning redis", "pattern", mapCacheKeyPattern, "dry_run", req.Options.DryRun)

	iter := req.Client.Scan(req.Ctx, 0, mapCacheKeyPattern, 1000).Iterator()
	keys := make([]string, 0)
	for iter.Next(req.Ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scan redis: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	if req.Options.DryRun {
		req.Logger.Info("redis keys matched", "count", len(keys), "sample", strings.Join(sampleKeys(keys, 3), ", "))
		return len(keys), nil
	}

	for start := 0; start < len(keys); start += 100 {
		end := min(start+100, len(keys))
		if err := req.Client.Del(req.Ctx, keys[start:end]...).Err(); err != nil {
			return 0, fmt.Errorf("delete redis keys: %w", err)
		}
	}
	req.Logger.Info("redis keys deleted", "count", len(keys))
	return len(keys), nil
}

func sampleKeys(keys []string, n int) []string {
	if len(keys) <= n {
		return keys
	}
	return keys[:n]
}
