package extraction

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownExtractor is returned when a name does not resolve to a
// registered strategy.
var ErrUnknownExtractor = errors.New("unknown extractor")

// ID identifies an extraction strategy.
type ID string

const (
	Tata      ID = "tata"
	Bowerey   ID = "bowerey"
	GDU       ID = "gdu"
	UsselOps  ID = "ussel_ops"
	UsselRes  ID = "ussel_res"
	MacroOps  ID = "macro_ops"
	MacroRes  ID = "macro_res"
	Polakof   ID = "polakof"
	Henderson ID = "henderson"
)

// legacyNames maps extractor names used by older rule files and task
// producers to their identifiers.
var legacyNames = map[string]ID{
	"extract_tata":                Tata,
	"extract_bowerey":             Bowerey,
	"extract_gdu":                 GDU,
	"extract_ops_ussel":           UsselOps,
	"extract_res_ussel":           UsselRes,
	"extract_ops_macro":           MacroOps,
	"extract_res_macro":           MacroRes,
	"extract_polakof":             Polakof,
	"extract_henderson":           Henderson,
	"call_henderson_microservice": Henderson,
}

type entry struct {
	strategy Strategy
	remote   bool
}

// Registry is the closed set of known strategies. It is built once at
// startup and read-only afterwards.
type Registry struct {
	entries map[ID]entry
}

// NewRegistry returns the registry of every built-in strategy. Henderson is
// marked remote: dispatchers call it over HTTP instead of queueing it.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[ID]entry)}
	for _, s := range []Strategy{
		TataStrategy{},
		BoweryStrategy{},
		GDUStrategy{},
		UsselOpsStrategy{},
		UsselResStrategy{},
		MacroOpsStrategy{},
		MacroResStrategy{},
		PolakofStrategy{},
	} {
		r.entries[s.ID()] = entry{strategy: s}
	}
	r.entries[Henderson] = entry{strategy: HendersonStrategy{}, remote: true}
	return r
}

// Resolve maps a configured or received name to an ID. Matching is case
// insensitive and accepts legacy names.
func (r *Registry) Resolve(name string) (ID, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	id := ID(key)
	if legacy, ok := legacyNames[key]; ok {
		id = legacy
	}
	if _, ok := r.entries[id]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownExtractor, name)
	}
	return id, nil
}

// Strategy returns the strategy registered for id.
func (r *Registry) Strategy(id ID) (Strategy, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExtractor, id)
	}
	return e.strategy, nil
}

// IsRemote reports whether id is served by the remote extraction capability.
func (r *Registry) IsRemote(id ID) bool {
	return r.entries[id].remote
}

// IDs returns all registered identifiers sorted by name.
func (r *Registry) IDs() []ID {
	ids := make([]ID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
