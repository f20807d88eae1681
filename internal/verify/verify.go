// Package verify compares the live entity graph against the Day-0 desired
// state and optionally repairs every discrepancy it finds. Checks and fixes
// are one generic diff-and-apply routine over declarative expectations, so a
// new category is a new expectation builder, not a new pair of functions.
package verify

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/stackpilot/tenantctl/internal/idp"
	"github.com/stackpilot/tenantctl/internal/provisioner"
	"github.com/stackpilot/tenantctl/internal/registry"
	"github.com/stackpilot/tenantctl/internal/store"
	"github.com/stackpilot/tenantctl/internal/telemetry"
)

// ErrMissing marks an expectation whose subject is absent. Adapter sentinel
// errors for absence are treated the same way.
var ErrMissing = errors.New("expected item missing")

// Result classifies one assertion.
type Result string

const (
	ResultPass Result = "pass"
	ResultFail Result = "fail"
	ResultWarn Result = "warn"
)

// CheckResult is one recorded assertion.
type CheckResult struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Result   Result `json:"result"`
	Detail   string `json:"detail,omitempty"`
	Repaired bool   `json:"repaired,omitempty"`
}

// Report aggregates the assertion results of one verifier run.
type Report struct {
	Results  []CheckResult `json:"results"`
	Repaired int           `json:"repaired"`
}

// Failures counts assertions that remain failed.
func (r *Report) Failures() int {
	n := 0
	for _, result := range r.Results {
		if result.Result == ResultFail {
			n++
		}
	}
	return n
}

// Warnings counts warn assertions.
func (r *Report) Warnings() int {
	n := 0
	for _, result := range r.Results {
		if result.Result == ResultWarn {
			n++
		}
	}
	return n
}

// Expectation is one declarative assertion about live state.
type Expectation struct {
	// Name identifies the assertion within its category.
	Name string

	// Optional downgrades absence from fail to warn.
	Optional bool

	// Observe returns nil when the expectation holds, ErrMissing (or an
	// adapter not-found sentinel) when the subject is absent or diverged,
	// and any other error on a read failure.
	Observe func(ctx context.Context) error

	// Apply repairs the discrepancy. Nil means unfixable.
	Apply func(ctx context.Context) error
}

// Category is a named group of expectations built from live and desired
// state.
type Category struct {
	Name  string
	Build func(ctx context.Context) ([]Expectation, error)
}

// Options control one verifier run.
type Options struct {
	// Fix applies repairs for failed assertions.
	Fix bool

	// WithIdentityProvider includes the identity-provider category.
	WithIdentityProvider bool
}

// Config identifies the graph the engine verifies.
type Config struct {
	// TenantID is the account whose registry entries are verified.
	TenantID string

	// Environment prefixes the tenant stack name for the live describe
	// check.
	Environment string

	// SharedTableName is used to repair a shared tenant's missing storage
	// resource entry.
	SharedTableName string

	// AdminEmail etc. describe the expected administrative user. Empty
	// AdminEmail downgrades the admin checks to warnings.
	AdminEmail      string
	AdminGivenName  string
	AdminFamilyName string
}

// Engine runs the verifier against the live adapters.
type Engine struct {
	store       store.EntityStore
	registry    registry.ParameterRegistry
	provisioner provisioner.StackProvisioner
	identity    idp.IdentityProvider
	cfg         Config
}

// NewEngine creates a verifier engine. identity may be nil when no pool is
// configured; the identity-provider category is then skipped.
func NewEngine(st store.EntityStore, reg registry.ParameterRegistry, prov provisioner.StackProvisioner, identity idp.IdentityProvider, cfg Config) *Engine {
	return &Engine{
		store:       st,
		registry:    reg,
		provisioner: prov,
		identity:    identity,
		cfg:         cfg,
	}
}

// Run checks every category in dependency order, applying repairs when
// requested. One category's failure never aborts the rest.
func (e *Engine) Run(ctx context.Context, opts Options) *Report {
	report := &Report{}

	for _, category := range e.categories(opts) {
		e.runCategory(ctx, category, opts, report)
	}

	log.Info().
		Int("checks", len(report.Results)).
		Int("failures", report.Failures()).
		Int("warnings", report.Warnings()).
		Int("repaired", report.Repaired).
		Msg("verification complete")

	return report
}

func (e *Engine) runCategory(ctx context.Context, category Category, opts Options, report *Report) {
	metrics := telemetry.GetMetrics()

	expectations, err := category.Build(ctx)
	if err != nil {
		report.Results = append(report.Results, CheckResult{
			Category: category.Name,
			Name:     "read live state",
			Result:   ResultFail,
			Detail:   err.Error(),
		})
		return
	}

	// Observations are independent reads: dispatch together, await together.
	observed := make([]error, len(expectations))
	var wg sync.WaitGroup
	for i := range expectations {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			observed[i] = expectations[i].Observe(ctx)
		}(i)
	}
	wg.Wait()

	for i, exp := range expectations {
		result := CheckResult{Category: category.Name, Name: exp.Name, Result: ResultPass}

		if err := observed[i]; err != nil {
			result.Result = ResultFail
			result.Detail = err.Error()
			if exp.Optional {
				result.Result = ResultWarn
			}

			if opts.Fix && exp.Apply != nil {
				if applyErr := exp.Apply(ctx); applyErr != nil {
					result.Detail = applyErr.Error()
				} else {
					result.Result = ResultPass
					result.Detail = ""
					result.Repaired = true
					report.Repaired++
					metrics.VerifierFixesTotal.Add(ctx, 1)
				}
			}
		}

		metrics.VerifierChecksTotal.Add(ctx, 1)
		report.Results = append(report.Results, result)
	}
}

// isMissing folds the adapter absence sentinels into ErrMissing.
func isMissing(err error) bool {
	return errors.Is(err, ErrMissing) ||
		errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, registry.ErrParameterNotFound) ||
		errors.Is(err, idp.ErrAccountNotFound) ||
		errors.Is(err, provisioner.ErrStackNotFound)
}
