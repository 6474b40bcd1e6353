package shardalgo

import (
	"sort"
	"sync"

	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"go.uber.org/atomic"
)

type Constructor func(props Props) (Algorithm, error)

// Registry maps algorithm type identifiers onto constructors. It is filled
// once at process start and sealed before the first statement is routed.
type Registry struct {
	mu     sync.RWMutex
	ctors  map[string]Constructor
	sealed *atomic.Bool
}

func NewRegistry() *Registry {
	return &Registry{
		ctors:  map[string]Constructor{},
		sealed: atomic.NewBool(false),
	}
}

func (r *Registry) Register(typ string, ctor Constructor) error {
	if r.sealed.Load() {
		return spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "algorithm registry is sealed, cannot register %s", typ)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ctors[typ]; ok {
		return spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "algorithm %s is already registered", typ)
	}
	r.ctors[typ] = ctor
	return nil
}

func (r *Registry) Seal() {
	r.sealed.Store(true)
}

func (r *Registry) Sealed() bool {
	return r.sealed.Load()
}

func (r *Registry) New(typ string, props Props) (Algorithm, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[typ]
	r.mu.RUnlock()
	if !ok {
		return nil, spqrerror.Newf(spqrerror.SPQR_UNKNOWN_ALGORITHM, "unknown sharding algorithm type %q", typ)
	}
	if props == nil {
		props = Props{}
	}
	return ctor(props)
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]string, 0, len(r.ctors))
	for t := range r.ctors {
		res = append(res, t)
	}
	sort.Strings(res)
	return res
}

var DefaultRegistry = NewRegistry()

func init() {
	for typ, ctor := range map[string]Constructor{
		TypeMod:            NewModAlgorithm,
		TypeHashMod:        NewHashModAlgorithm,
		TypeVolumeRange:    NewVolumeRangeAlgorithm,
		TypeBoundaryRange:  NewBoundaryRangeAlgorithm,
		TypeComplexHashMod: NewComplexHashModAlgorithm,
	} {
		if err := DefaultRegistry.Register(typ, ctor); err != nil {
			panic(err)
		}
	}
}
