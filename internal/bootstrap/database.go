package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/popmap/popmap-api/config"
	"github.com/popmap/popmap-api/internal/data"
	"github.com/redis/go-redis/v9"
)

// connectTimeout bounds the startup ping for both Postgres and Redis.
const connectTimeout = 5 * time.Second

// Pool fallbacks cover DBConfig values built by hand instead of parsed from
// the environment, where the env defaults apply.
const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
)

// ConnectDB opens the PostgreSQL pool and verifies it with a ping.
func ConnectDB(cfg config.DBConfig, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", postgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	open, idle, lifetime := poolSettings(cfg)
	db.SetMaxOpenConns(open)
	db.SetMaxIdleConns(idle)
	db.SetConnMaxLifetime(lifetime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		if closeErr := db.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close database connection: %w", closeErr))
		}
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	if logger != nil {
		logger.Info("database connected",
			"host", cfg.Host,
			"port", cfg.Port,
			"database", cfg.Name,
			"max_open_conns", open,
		)
	}

	return db, nil
}

// postgresDSN renders the connection string. url.UserPassword escapes
// credentials that would corrupt a string-built DSN.
func postgresDSN(cfg config.DBConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": []string{cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

func poolSettings(cfg config.DBConfig) (open, idle int, lifetime time.Duration) {
	open = cfg.MaxOpenConns
	if open <= 0 {
		open = defaultMaxOpenConns
	}
	idle = cfg.MaxIdleConns
	if idle <= 0 {
		idle = defaultMaxIdleConns
	}
	lifetime = cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = defaultConnMaxLifetime
	}
	return open, idle, lifetime
}

// ConnectRedis builds a client for the configured topology and verifies it
// with a ping.
//
//nolint:ireturn // returning redis.UniversalClient lets us pick single, sentinel, or cluster clients at runtime.
func ConnectRedis(cfg config.RedisConfig, logger *slog.Logger) (redis.UniversalClient, error) {
	client, addrDesc, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		if closeErr := client.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, fmt.Errorf("ping redis: %w", pingErr)
	}

	if logger != nil {
		logger.Info("redis connected", "addr", redactRedisAddr(addrDesc))
	}

	return client, nil
}

// newRedisClient dispatches on topology. Cluster wins when both the cluster
// and sentinel toggles are set.
//
//nolint:ireturn // see ConnectRedis.
func newRedisClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	switch {
	case cfg.UseCluster:
		return newClusterClient(cfg)
	case cfg.UseSentinel:
		return newSentinelClient(cfg)
	default:
		return newDirectClient(cfg)
	}
}

//nolint:ireturn // see ConnectRedis.
func newClusterClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	opts := &redis.ClusterOptions{
		Addrs:    trimAddrs(cfg.ClusterNodes),
		Password: cfg.Password,
	}

	if len(opts.Addrs) == 0 {
		// No explicit node list, so a single REDIS_URI serves as the entry
		// point and the client discovers the rest of the cluster from it.
		ep, err := clusterEndpointFromURI(cfg.URI)
		if err != nil {
			return nil, "", err
		}
		if ep.addr != "" {
			opts.Addrs = []string{ep.addr}
			opts.Username = ep.username
			if ep.password != "" {
				opts.Password = ep.password
			}
			opts.TLSConfig = ep.tls
		}
	}

	if len(opts.Addrs) == 0 {
		return nil, "", errors.New("redis cluster mode requires cluster nodes or a uri")
	}

	client := redis.NewClusterClient(opts)
	return client, "cluster:" + strings.Join(opts.Addrs, ","), nil
}

//nolint:ireturn // see ConnectRedis.
func newSentinelClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	addrs := trimAddrs(cfg.SentinelNodes)
	if len(addrs) == 0 {
		return nil, "", errors.New("redis sentinel mode requires at least one sentinel node")
	}

	client := redis.NewFailoverClient(&redis.FailoverOptions{
		MasterName:       cfg.SentinelMasterName,
		SentinelAddrs:    addrs,
		Password:         cfg.Password,
		SentinelPassword: cfg.SentinelPassword,
	})
	return client, "sentinel:" + cfg.SentinelMasterName, nil
}

//nolint:ireturn // see ConnectRedis.
func newDirectClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, "", errors.New("redis standalone mode requires a uri")
	}

	if !isRedisURL(uri) {
		client := redis.NewClient(&redis.Options{Addr: uri, Password: cfg.Password})
		return client, uri, nil
	}

	opt, err := redis.ParseURL(uri)
	if err != nil {
		return nil, "", fmt.Errorf("parse redis url: %w", err)
	}
	// A URL without credentials still honors the configured password.
	if opt.Password == "" {
		opt.Password = cfg.Password
	}
	return redis.NewClient(opt), opt.Addr, nil
}

// clusterEndpoint carries connection details recovered from a URI when no
// explicit cluster node list is configured.
type clusterEndpoint struct {
	addr     string
	username string
	password string
	tls      *tls.Config
}

func clusterEndpointFromURI(uri string) (clusterEndpoint, error) {
	trimmed := strings.TrimSpace(uri)
	if trimmed == "" {
		return clusterEndpoint{}, nil
	}
	if !isRedisURL(trimmed) {
		return clusterEndpoint{addr: trimmed}, nil
	}

	opt, err := redis.ParseURL(trimmed)
	if err != nil {
		return clusterEndpoint{}, fmt.Errorf("parse redis cluster url: %w", err)
	}
	return clusterEndpoint{
		addr:     opt.Addr,
		username: opt.Username,
		password: opt.Password,
		tls:      opt.TLSConfig,
	}, nil
}

// redactRedisAddr strips credentials from an address before it is logged.
func redactRedisAddr(addr string) string {
	if u, err := url.Parse(addr); err == nil && u.User != nil {
		u.User = url.User("*")
		return u.Redacted()
	}
	if i := strings.LastIndex(addr, "@"); i > -1 {
		return addr[i+1:]
	}
	return addr
}

func trimAddrs(raw []string) []string {
	addrs := make([]string, 0, len(raw))
	for _, addr := range raw {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			addrs = append(addrs, trimmed)
		}
	}
	return addrs
}

func isRedisURL(value string) bool {
	return strings.HasPrefix(value, "redis://") || strings.HasPrefix(value, "rediss://")
}

// RunMigrations applies pending schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if err := data.RunMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if logger != nil {
		logger.InfoContext(ctx, "database migrations completed")
	}

	return nil
}
