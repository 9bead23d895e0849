// Package registry lists the simulator variants a build can construct: every
// (pressure, velocity, flow) triple over the compiled numeric kinds, and the
// compiled grid sizes.
package registry

import (
	"errors"
	"fmt"
	"slices"

	"github.com/pthm-cable/cellflow/field"
	"github.com/pthm-cable/cellflow/numeric"
	"github.com/pthm-cable/cellflow/systems"
)

// ErrUnsupported is returned for a type triple or size outside the compiled
// set.
var ErrUnsupported = errors.New("registry: unsupported combination")

// Key identifies a variant by its numeric kinds.
type Key = systems.Types

// ParseKey parses the three type strings of a request.
func ParseKey(pressure, velocity, flow string) (Key, error) {
	var k Key
	var err error
	if k.Pressure, err = numeric.ParseSpec(pressure); err != nil {
		return Key{}, fmt.Errorf("pressure type: %w", err)
	}
	if k.Velocity, err = numeric.ParseSpec(velocity); err != nil {
		return Key{}, fmt.Errorf("velocity type: %w", err)
	}
	if k.Flow, err = numeric.ParseSpec(flow); err != nil {
		return Key{}, fmt.Errorf("flow type: %w", err)
	}
	return k, nil
}

// Constructor builds a simulator over an allocated grid.
type Constructor func(g *field.Grid, rho field.Densities, opts systems.Options) systems.Runner

// Registry maps keys to constructors.
type Registry struct {
	ctors map[Key]Constructor
	keys  []Key
	sizes []field.Size
}

// Registry is read-only after construction; share the default one.
var defaultRegistry = build()

// Default returns the registry of compiled variants.
func Default() *Registry { return defaultRegistry }

func build() *Registry {
	r := &Registry{ctors: make(map[Key]Constructor)}
	registerPressure[numeric.Float](r)
	registerPressure[numeric.Double](r)
	registerPressure[numeric.Fixed[numeric.W32F16]](r)
	registerPressure[numeric.Fixed[numeric.W31F17]](r)
	registerPressure[numeric.Fixed[numeric.W16F8]](r)
	registerPressure[numeric.FastFixed[numeric.W32F16]](r)
	registerPressure[numeric.FastFixed[numeric.W16F8]](r)

	r.sizes = []field.Size{
		{Rows: 36, Cols: 84},
		{Rows: 14, Cols: 5},
		{Rows: 10, Cols: 10},
		{Rows: 4, Cols: 4},
		{Rows: 3, Cols: 5},
	}
	return r
}

func registerPressure[P numeric.Number[P]](r *Registry) {
	registerVelocity[P, numeric.Float](r)
	registerVelocity[P, numeric.Double](r)
	registerVelocity[P, numeric.Fixed[numeric.W32F16]](r)
	registerVelocity[P, numeric.Fixed[numeric.W31F17]](r)
	registerVelocity[P, numeric.Fixed[numeric.W16F8]](r)
	registerVelocity[P, numeric.FastFixed[numeric.W32F16]](r)
	registerVelocity[P, numeric.FastFixed[numeric.W16F8]](r)
}

func registerVelocity[P numeric.Number[P], V numeric.Number[V]](r *Registry) {
	registerFlow[P, V, numeric.Float](r)
	registerFlow[P, V, numeric.Double](r)
	registerFlow[P, V, numeric.Fixed[numeric.W32F16]](r)
	registerFlow[P, V, numeric.Fixed[numeric.W31F17]](r)
	registerFlow[P, V, numeric.Fixed[numeric.W16F8]](r)
	registerFlow[P, V, numeric.FastFixed[numeric.W32F16]](r)
	registerFlow[P, V, numeric.FastFixed[numeric.W16F8]](r)
}

func registerFlow[P numeric.Number[P], V numeric.Number[V], F numeric.Number[F]](r *Registry) {
	var (
		p P
		v V
		f F
	)
	key := Key{Pressure: p.Spec(), Velocity: v.Spec(), Flow: f.Spec()}
	r.ctors[key] = func(g *field.Grid, rho field.Densities, opts systems.Options) systems.Runner {
		return systems.New[P, V, F](g, rho, opts)
	}
	r.keys = append(r.keys, key)
}

// Keys returns every registered key in registration order.
func (r *Registry) Keys() []Key { return slices.Clone(r.keys) }

// Sizes returns the compiled grid sizes.
func (r *Registry) Sizes() []field.Size { return slices.Clone(r.sizes) }

// Supports reports whether key has a constructor.
func (r *Registry) Supports(key Key) bool {
	_, ok := r.ctors[key]
	return ok
}

// Storage picks the grid storage for size: dense for a compiled size,
// dynamic for any other size when allowed.
func (r *Registry) Storage(size field.Size, allowDynamic bool) (field.Storage, error) {
	if slices.Contains(r.sizes, size) {
		return field.Dense, nil
	}
	if allowDynamic {
		return field.Dynamic, nil
	}
	return 0, fmt.Errorf("%w: size %s not compiled and dynamic sizes disabled", ErrUnsupported, size)
}

// Create allocates a grid of size and a simulator over it. The grid is empty;
// load a field map into Runner.Grid() before stepping.
func (r *Registry) Create(key Key, size field.Size, allowDynamic bool, rho field.Densities, opts systems.Options) (systems.Runner, error) {
	ctor, ok := r.ctors[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, key)
	}
	storage, err := r.Storage(size, allowDynamic)
	if err != nil {
		return nil, err
	}
	return ctor(field.NewGrid(size, storage), rho, opts), nil
}
