package repositories

import (
	"context"
	"errors"
	"sync"
	"time"
)

const defaultDependencyTimeout = 1500 * time.Millisecond

// DependencyStatus is the outcome of a single dependency probe.
type DependencyStatus struct {
	Name      string
	Healthy   bool
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// HealthReport aggregates dependency probe outcomes for readiness checks.
type HealthReport struct {
	Healthy      bool
	Dependencies []DependencyStatus
	GeneratedAt  time.Time
}

// DependencyCheck describes a dependency probe executed during readiness checks.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

// HealthRepository evaluates dependency probes and reports aggregate health.
type HealthRepository interface {
	Collect(ctx context.Context) (HealthReport, error)
}

type dependencyHealthRepository struct {
	checks         []DependencyCheck
	defaultTimeout time.Duration
	now            func() time.Time
}

// DependencyHealthOption customises the dependency-backed health repository.
type DependencyHealthOption func(*dependencyHealthRepository)

// WithDependencyTimeout overrides the default timeout applied when a check omits its own timeout.
func WithDependencyTimeout(timeout time.Duration) DependencyHealthOption {
	return func(repo *dependencyHealthRepository) {
		if timeout > 0 {
			repo.defaultTimeout = timeout
		}
	}
}

// WithDependencyClock injects a custom clock primarily for tests.
func WithDependencyClock(clock func() time.Time) DependencyHealthOption {
	return func(repo *dependencyHealthRepository) {
		if clock != nil {
			repo.now = clock
		}
	}
}

// NewDependencyHealthRepository constructs a HealthRepository that evaluates the provided check set.
func NewDependencyHealthRepository(checks []DependencyCheck, opts ...DependencyHealthOption) (HealthRepository, error) {
	if len(checks) == 0 {
		return nil, errors.New("health repository: at least one dependency check is required")
	}

	repo := &dependencyHealthRepository{
		checks:         make([]DependencyCheck, len(checks)),
		defaultTimeout: defaultDependencyTimeout,
		now:            time.Now,
	}
	copy(repo.checks, checks)

	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

func (r *dependencyHealthRepository) Collect(ctx context.Context) (HealthReport, error) {
	if ctx == nil {
		return HealthReport{}, errors.New("health repository: context is required")
	}

	statuses := make([]DependencyStatus, len(r.checks))
	var wg sync.WaitGroup
	for i, check := range r.checks {
		wg.Add(1)
		go func(i int, check DependencyCheck) {
			defer wg.Done()
			statuses[i] = r.run(ctx, check)
		}(i, check)
	}
	wg.Wait()

	report := HealthReport{
		Healthy:      true,
		Dependencies: statuses,
		GeneratedAt:  r.now().UTC(),
	}
	for _, status := range statuses {
		if !status.Healthy {
			report.Healthy = false
			break
		}
	}
	return report, nil
}

func (r *dependencyHealthRepository) run(ctx context.Context, check DependencyCheck) DependencyStatus {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := r.now()
	var err error
	if check.Check == nil {
		err = errors.New("health repository: check function is nil")
	} else {
		err = check.Check(checkCtx)
	}
	status := DependencyStatus{
		Name:      check.Name,
		Healthy:   err == nil,
		Latency:   r.now().Sub(started),
		CheckedAt: started.UTC(),
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}
