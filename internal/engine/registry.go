// Package engine manages named discrepancy instances on behalf of the
// serving layer. An instance owns its learned pseudometric parameters, so
// callers register a configuration once and address it by name for every
// subsequent compute call.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/shapelet/pkg/discrepancy"
	"github.com/therealutkarshpriyadarshi/shapelet/pkg/observability"
	"github.com/therealutkarshpriyadarshi/shapelet/pkg/path"
	"github.com/therealutkarshpriyadarshi/shapelet/pkg/signature"
)

// Kind identifies a discrepancy variant.
type Kind string

const (
	// KindL2 is the direct L2 path discrepancy.
	KindL2 Kind = "l2"
	// KindLogsignature is the logsignature-space discrepancy.
	KindLogsignature Kind = "logsignature"
)

var (
	// ErrNotFound is returned when no instance has the requested name.
	ErrNotFound = errors.New("engine: no such discrepancy instance")
	// ErrExists is returned when registering a name that is already taken.
	ErrExists = errors.New("engine: discrepancy instance already exists")
	// ErrLimit is returned when the instance limit is reached.
	ErrLimit = errors.New("engine: instance limit reached")
)

// Spec describes an instance to register. Exactly one of L2 and
// Logsignature must be set, matching Kind.
type Spec struct {
	Name         string
	Kind         Kind
	L2           *discrepancy.L2Config
	Logsignature *discrepancy.LogsignatureConfig
}

// Info is a snapshot of a registered instance.
type Info struct {
	Name        string    `json:"name"`
	Kind        Kind      `json:"kind"`
	Description string    `json:"description"`
	Computes    int64     `json:"computes"`
	CreatedAt   time.Time `json:"created_at"`
}

type entry struct {
	kind      Kind
	disc      discrepancy.Discrepancy
	computes  int64
	createdAt time.Time
}

// Registry maps names to constructed discrepancy instances. All methods
// are safe for concurrent use; compute bookkeeping is the only state a
// compute call touches.
type Registry struct {
	provider     signature.Provider
	logger       *observability.Logger
	metrics      *observability.Metrics
	maxInstances int

	mu        sync.RWMutex
	instances map[string]*entry
}

// New builds an empty registry. metrics may be nil; the provider is handed
// to every logsignature instance constructed through Create.
func New(provider signature.Provider, logger *observability.Logger, metrics *observability.Metrics, maxInstances int) *Registry {
	if logger == nil {
		logger = observability.NewDefaultLogger()
	}
	if maxInstances < 1 {
		maxInstances = 100
	}
	return &Registry{
		provider:     provider,
		logger:       logger,
		metrics:      metrics,
		maxInstances: maxInstances,
		instances:    make(map[string]*entry),
	}
}

// Create constructs and registers the instance described by spec.
// Construction errors from the discrepancy layer pass through untouched so
// callers can map them onto their own error surface.
func (r *Registry) Create(spec Spec) (Info, error) {
	if spec.Name == "" {
		return Info{}, fmt.Errorf("engine: instance name must not be empty")
	}

	var disc discrepancy.Discrepancy
	var err error
	switch spec.Kind {
	case KindL2:
		if spec.L2 == nil {
			return Info{}, fmt.Errorf("engine: kind %q needs an L2 config", spec.Kind)
		}
		disc, err = discrepancy.NewL2(*spec.L2)
	case KindLogsignature:
		if spec.Logsignature == nil {
			return Info{}, fmt.Errorf("engine: kind %q needs a logsignature config", spec.Kind)
		}
		disc, err = discrepancy.NewLogsignature(*spec.Logsignature, r.provider)
	default:
		return Info{}, fmt.Errorf("engine: unknown kind %q (valid: %s, %s)", spec.Kind, KindL2, KindLogsignature)
	}
	if err != nil {
		return Info{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.instances[spec.Name]; taken {
		return Info{}, ErrExists
	}
	if len(r.instances) >= r.maxInstances {
		return Info{}, ErrLimit
	}
	e := &entry{kind: spec.Kind, disc: disc, createdAt: time.Now()}
	r.instances[spec.Name] = e

	if r.metrics != nil {
		r.metrics.InstancesRegistered.Set(float64(len(r.instances)))
	}
	r.logger.Info("Registered discrepancy instance", map[string]interface{}{
		"name": spec.Name,
		"kind": string(spec.Kind),
	})
	return r.info(spec.Name, e), nil
}

// Get returns the discrepancy registered under name.
func (r *Registry) Get(name string) (discrepancy.Discrepancy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.instances[name]
	if !ok {
		return nil, ErrNotFound
	}
	return e.disc, nil
}

// Describe returns a snapshot of the instance registered under name.
func (r *Registry) Describe(name string) (Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.instances[name]
	if !ok {
		return Info{}, ErrNotFound
	}
	return r.info(name, e), nil
}

// Compute resolves name and evaluates it on the given inputs, recording
// compute counts and metrics.
func (r *Registry) Compute(name string, times path.Grid, path1, path2 *path.Tensor) (*path.Tensor, error) {
	r.mu.RLock()
	e, ok := r.instances[name]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	start := time.Now()
	out, err := e.disc.Compute(times, path1, path2)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordComputeError(string(e.kind), errorType(err))
		}
		return nil, err
	}

	r.mu.Lock()
	e.computes++
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.RecordCompute(string(e.kind), time.Since(start), out.Len())
	}
	return out, nil
}

// List returns snapshots of all registered instances.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]Info, 0, len(r.instances))
	for name, e := range r.instances {
		infos = append(infos, r.info(name, e))
	}
	return infos
}

// Len returns the number of registered instances.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

func (r *Registry) info(name string, e *entry) Info {
	desc := string(e.kind)
	if s, ok := e.disc.(fmt.Stringer); ok {
		desc = s.String()
	}
	return Info{
		Name:        name,
		Kind:        e.kind,
		Description: desc,
		Computes:    e.computes,
		CreatedAt:   e.createdAt,
	}
}

// errorType buckets an error for metric labels.
func errorType(err error) string {
	var shapeErr *path.ShapeError
	var cfgErr *discrepancy.ConfigError
	var depErr *discrepancy.MissingDependencyError
	switch {
	case errors.As(err, &shapeErr):
		return "shape"
	case errors.As(err, &cfgErr):
		return "config"
	case errors.As(err, &depErr):
		return "missing_dependency"
	}
	return "internal"
}
