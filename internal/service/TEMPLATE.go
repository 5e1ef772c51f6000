// This file is a documentation template and should not be compiled.
// It uses placeholder types (ExampleService, ExampleRepository, etc.) that don't exist.
// Use this as a reference when creating new services.
//
//go:build ignore

package service

// TEMPLATE.go - Service Layer Pattern Template
//
// This file demonstrates the standard pattern for all services in the service layer.
// Use this as a reference when creating new services.
//
// KEY PRINCIPLES:
// 1. All services use Options struct pattern for dependency injection
// 2. Constructors come in pairs: NewXService(opts) (*XService, error) validates
//    required dependencies; MustNewXService(opts) *XService panics on error for
//    startup wiring in main.go
// 3. Services depend on port interfaces from internal/core, never concrete
//    implementations
// 4. Optional dependencies (Logger, Jobs, Billing, caches) are checked for nil
//    before use; a service must degrade cleanly without them
// 5. Caller identity travels as an Actor argument; authorization failures return
//    the sentinel errors in errors.go (ErrForbidden and friends) so the HTTP
//    layer can map them to statuses
// 6. All methods accept context.Context as first parameter
// 7. Errors are wrapped with context using fmt.Errorf("operation: %w", err)
// 8. Time-sensitive logic reads the clock through an injected Now func so tests
//    can pin it
// 9. Services never import from internal/data, internal/adapters, or internal/http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/domain/model"
)

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 1: Options Struct
// ═══════════════════════════════════════════════════════════════════════════

// ExampleServiceOptions groups dependencies for ExampleService.
//
// RULES:
// - Required repository interfaces first, marked "// Required" with a short
//   purpose; optional collaborators after; Logger last
// - Tunables go in a nested Config struct (see config/), not as loose fields
// - A Now func field makes the clock injectable; nil defaults to time.Now
type ExampleServiceOptions struct {
	Examples core.ExampleRepository // Required: example storage
	Jobs     core.JobRepository     // Optional: async work is skipped when nil
	Now      func() time.Time       // Optional: clock override for tests
	Logger   *slog.Logger
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 2: Service Struct (private fields)
// ═══════════════════════════════════════════════════════════════════════════

// ExampleService provides business logic for example domain operations.
//
// RESPONSIBILITIES:
// - CRUD operations with authorization and validation
// - Cross-repository orchestration
// - Enqueueing async work through the job queue
// - Business rule enforcement (quotas, entitlements, state gates)
//
// DOES NOT:
// - Import from internal/data (depends on interfaces only)
// - Import from internal/http (transport layer depends on service, not vice versa)
// - Import from internal/adapters (adapters depend on service, not vice versa)
type ExampleService struct {
	examples core.ExampleRepository
	jobs     core.JobRepository
	now      func() time.Time
	logger   *slog.Logger
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 3: Constructor Pair
// ═══════════════════════════════════════════════════════════════════════════

// NewExampleService constructs a new ExampleService.
//
// RULES:
// - Return an error naming the missing dependency, one check per required field
// - Derive a component logger with opts.Logger.With("component", ...) so log
//   lines identify their origin; leave it nil when no logger was given
// - Default the clock to time.Now
func NewExampleService(opts ExampleServiceOptions) (*ExampleService, error) {
	if opts.Examples == nil {
		return nil, errors.New("ExampleRepository is required")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "example_service")
	}

	return &ExampleService{
		examples: opts.Examples,
		jobs:     opts.Jobs,
		now:      now,
		logger:   logger,
	}, nil
}

// MustNewExampleService constructs a new ExampleService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewExampleService(opts ExampleServiceOptions) *ExampleService {
	svc, err := NewExampleService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast during startup wiring when configuration is invalid
		panic(fmt.Sprintf("failed to create ExampleService: %v", err))
	}
	return svc
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 4: Actor-Gated Operations
// ═══════════════════════════════════════════════════════════════════════════

// Create creates a new example entity for the actor.
//
// RULES:
// - Validate the request before touching storage; validation messages come
//   from the model and read as field-level English ("name is required")
// - Authorization failures return sentinel errors (ErrForbidden and friends),
//   never ad hoc errors, so the HTTP layer maps them consistently
// - Ownership checks go through actor.CanManage / actor.IsAdmin, not raw
//   field comparisons
func (s *ExampleService) Create(
	ctx context.Context,
	actor Actor,
	req *model.CreateExampleRequest,
) (*model.Example, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	example, err := s.examples.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create example: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "example created", "example_id", example.ID)
	}
	return example, nil
}

// GetByID retrieves an example entity by ID. Reads pass repository errors
// through unwrapped when they are sentinel not-found errors the HTTP layer
// already knows; wrap everything else.
func (s *ExampleService) GetByID(ctx context.Context, id string) (*model.Example, error) {
	return s.examples.GetByID(ctx, id)
}

// List retrieves a paginated list of examples. Normalize caller-supplied
// options before they reach the repository: default the limit, clamp it,
// and whitelist sort columns.
func (s *ExampleService) List(ctx context.Context, opts model.ExampleListOptions) ([]*model.Example, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > 200 {
		opts.Limit = 200
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return s.examples.List(ctx, opts)
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 5: State Gates on the Injected Clock
// ═══════════════════════════════════════════════════════════════════════════

// Open reports whether the example accepts interaction right now. Anything
// comparing against the wall clock reads s.now() so tests stay deterministic.
func (s *ExampleService) Open(example *model.Example) bool {
	return example.IsActive(s.now())
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 6: Optional Collaborators
// ═══════════════════════════════════════════════════════════════════════════

// Archive demonstrates best-effort async work through an optional dependency.
// When the job queue is absent the operation still succeeds; when enqueueing
// fails the error is logged, never returned, because the primary write already
// committed.
func (s *ExampleService) Archive(ctx context.Context, actor Actor, id string) (*model.Example, error) {
	example, err := s.examples.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(example.OwnerID) {
		return nil, ErrForbidden
	}

	archived, err := s.examples.Archive(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("archive example: %w", err)
	}

	if s.jobs != nil {
		_, err := s.jobs.Create(ctx, &model.CreateJobRequest{
			Type:    model.JobTypeEmail,
			Payload: mustJSON(map[string]string{"example_id": id}),
		})
		if err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "archive notification enqueue failed",
				"example_id", id, "error", err)
		}
	}
	return archived, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// NOTES
// ═══════════════════════════════════════════════════════════════════════════
//
// Adding a new service:
//
// 1. Define the repository interface in internal/core/interfaces.go and add a
//    gomock directive for it in internal/mocks/generate.go
// 2. Implement the repository in internal/data against pgx
// 3. Write the service here following the patterns above
// 4. Surface sentinel errors in internal/http/error_renderer.go so they map
//    to stable HTTP codes
// 5. Wire the service in cmd/popmap/main.go via the Must constructor
// 6. Unit-test against the generated mocks; see TEMPLATE_test.go
//
// Common pitfalls:
// - Returning raw errors for authorization failures instead of sentinels
// - Forgetting the nil check before an optional dependency
// - Comparing against time.Now() directly instead of s.now()
// - Wrapping sentinel not-found errors so errors.Is stops matching
// - Creating functions with >3 parameters (group them in a struct)
