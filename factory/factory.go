// Package factory compiles a declarative schema (package schema) into
// per-sub-app initializers that materialize hydrated settings objects:
// default collection and merging, specificity-based resolution of each
// setting's active default, a lazily-built initializer per sub-app, and
// override application against a snapshot.
package factory

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/getnfig/nfig/encryptor"
	"github.com/getnfig/nfig/nfigerr"
	"github.com/getnfig/nfig/schema"
	"github.com/getnfig/nfig/specificity"
	"github.com/getnfig/nfig/tier"
	"github.com/getnfig/nfig/values"
)

// Options configures New.
type Options struct {
	// Tier and DataCenter are this process's current deployment scope. They
	// are fixed for the lifetime of the Factory; every default and override
	// resolution is relative to them.
	Tier       tier.Tier
	DataCenter tier.DataCenter
	// Encryptor is required if the schema declares any encrypted setting.
	// Its round-trip self-test runs once, here.
	Encryptor encryptor.Encryptor
}

// core holds every piece of factory state that doesn't depend on the bound
// settings type T, so the lazy build logic can live on plain (non-generic)
// receivers.
type core struct {
	schema     *schema.Schema
	tier       tier.Tier
	dataCenter tier.DataCenter
	encryptor  encryptor.Encryptor

	// candidates holds, per setting name, every validated
	// (value, subAppId?, tier, dataCenter, allowsOverrides) creation record
	// — the root default plus schema.ExtraDefaults, after the
	// duplicate-triple and parseability checks run at construction.
	candidates map[string][]values.DefaultValue

	mu      sync.Mutex
	subApps map[subAppKey]*subAppEntry

	// pool is the process-wide cache for active defaults whose settings opt
	// out of inlining: append-only, indexed by activeDefault.poolIdx, with
	// identical (setting, stored-string) defaults shared across sub-apps.
	poolMu  sync.Mutex
	pool    []reflect.Value
	poolIdx map[poolKey]int
}

type poolKey struct {
	name        string
	stringValue string
}

// Factory compiles a schema into per-sub-app settings initializers, bound
// to Go type T. The zero value is not usable; construct with New.
type Factory[T any] struct {
	*core
}

type subAppKey struct {
	id  int
	has bool
}

func keyFor(id *int) subAppKey {
	if id == nil {
		return subAppKey{}
	}
	return subAppKey{id: *id, has: true}
}

// subAppEntry is the lazily-built, per-sub-app compiled state: the merged
// defaults list (for publishing to the backend as metadata) and the
// resolved active default per setting (for the compiled initializer).
type subAppEntry struct {
	name string

	buildOnce sync.Once
	buildErr  error

	defaults []values.DefaultValue
	active   map[string]activeDefault
}

type activeDefault struct {
	value           reflect.Value
	poolIdx         int // valid only when pooled
	pooled          bool
	allowsOverrides bool
}

// New compiles schemaType (see schema.Compile) against opts and binds the
// result to Go type T, which must match the schema's root type (typically
// reflect.TypeOf((*T)(nil)).Elem()). Schema errors and a failing encryptor
// round-trip test are fatal, returned rather than panicked.
func New[T any](s *schema.Schema, opts Options) (*Factory[T], error) {
	wantType := reflect.TypeOf((*T)(nil)).Elem()
	if s.RootType != wantType {
		return nil, &nfigerr.SchemaError{Setting: wantType.String(), Reason: fmt.Sprintf("schema was compiled for %s, not %s", s.RootType, wantType)}
	}

	if opts.Encryptor != nil {
		if err := encryptor.RoundTrip(opts.Encryptor, "nfig-roundtrip-probe-3f9c"); err != nil {
			return nil, &nfigerr.EncryptorError{Reason: "round-trip self-test failed", Err: err}
		}
	}

	candidates := make(map[string][]values.DefaultValue, len(s.Settings))
	for _, st := range s.Settings {
		if st.Encrypted && opts.Encryptor == nil {
			return nil, &nfigerr.EncryptorError{Reason: fmt.Sprintf("setting %q is encrypted but no encryptor was configured", st.Name)}
		}
		candidates[st.Name] = []values.DefaultValue{{
			Name:            st.Name,
			StringValue:     st.RootDefault,
			SubAppID:        nil,
			Tier:            tier.Any,
			DataCenter:      tier.Any,
			AllowsOverrides: true,
		}}
	}

	for _, spec := range s.ExtraDefaults {
		st, ok := s.ByName(spec.Name)
		if !ok {
			return nil, &nfigerr.SchemaError{Setting: spec.Name, Reason: "ExtraDefaults names an unknown setting"}
		}
		if !st.Encrypted {
			if _, err := st.Converter.Parse(spec.Value); err != nil {
				return nil, &nfigerr.InvalidDefaultValueError{Name: spec.Name, Value: spec.Value, SubAppID: spec.SubAppID, DataCenter: int(spec.DataCenter), Err: err}
			}
		}
		for _, existing := range candidates[spec.Name] {
			if sameTriple(existing, spec) {
				return nil, &nfigerr.SchemaError{Setting: spec.Name, Reason: "duplicate default for (subAppId, tier, dataCenter)"}
			}
		}
		candidates[spec.Name] = append(candidates[spec.Name], values.DefaultValue{
			Name:            spec.Name,
			StringValue:     spec.Value,
			SubAppID:        spec.SubAppID,
			Tier:            spec.Tier,
			DataCenter:      spec.DataCenter,
			AllowsOverrides: spec.AllowsOverrides,
		})
	}

	return &Factory[T]{core: &core{
		schema:     s,
		tier:       opts.Tier,
		dataCenter: opts.DataCenter,
		encryptor:  opts.Encryptor,
		candidates: candidates,
		subApps:    make(map[subAppKey]*subAppEntry),
	}}, nil
}

func sameTriple(d values.DefaultValue, spec schema.DefaultSpec) bool {
	return samePtr(d.SubAppID, spec.SubAppID) && d.Tier == spec.Tier && d.DataCenter == spec.DataCenter
}

func samePtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Schema returns the compiled schema this factory was built from.
func (f *Factory[T]) Schema() *schema.Schema { return f.schema }

// RegisterRootApp scopes every setting's candidates to the root app
// (subAppId nil) and the factory's tier, discarding candidates that name a
// sub-app or a different tier. It returns the
// resulting defaults list, used to publish root metadata to the backend.
// Calling it more than once is idempotent and returns the same list.
func (f *Factory[T]) RegisterRootApp() ([]values.DefaultValue, error) {
	entry, err := f.core.registerSubApp(nil, "")
	if err != nil {
		return nil, err
	}
	return entry.defaults, nil
}

// RegisterSubApp scopes every setting's candidates to sub-app id, merging
// them with the root app's defaults; a setting with no sub-app-specific
// alternate reuses the root list by reference. Registering an id already
// registered under a different name is fatal.
func (f *Factory[T]) RegisterSubApp(id int, name string) ([]values.DefaultValue, error) {
	entry, err := f.core.registerSubApp(&id, name)
	if err != nil {
		return nil, err
	}
	return entry.defaults, nil
}

func (c *core) registerSubApp(id *int, name string) (*subAppEntry, error) {
	key := keyFor(id)

	c.mu.Lock()
	entry, exists := c.subApps[key]
	if exists {
		if id != nil && entry.name != name {
			c.mu.Unlock()
			return nil, &nfigerr.AppBindingError{AppName: entry.name, Reason: fmt.Sprintf("sub-app %d already registered as %q, cannot re-register as %q", *id, entry.name, name)}
		}
		c.mu.Unlock()
		if err := c.ensureBuilt(entry, id); err != nil {
			return nil, err
		}
		return entry, nil
	}
	entry = &subAppEntry{name: name}
	c.subApps[key] = entry
	c.mu.Unlock()

	if err := c.ensureBuilt(entry, id); err != nil {
		return nil, err
	}
	return entry, nil
}

// ensureBuilt lazily computes the merged defaults list and, per setting,
// the specificity-resolved active default. The first caller builds;
// subsequent callers (including concurrent ones) observe the same result
// via sync.Once, whose internal atomic publishes the entry's state with a
// release barrier.
func (c *core) ensureBuilt(e *subAppEntry, subAppID *int) error {
	e.buildOnce.Do(func() {
		e.buildErr = c.build(e, subAppID)
	})
	return e.buildErr
}

func (c *core) build(e *subAppEntry, subAppID *int) error {
	isRoot := subAppID == nil
	target := specificity.Target{SubAppID: subAppID, Tier: c.tier, DataCenter: c.dataCenter}

	defaults := make([]values.DefaultValue, 0, len(c.candidates))
	active := make(map[string]activeDefault, len(c.candidates))

	// Settings are walked in schema order, not map iteration order, so the
	// published defaults list has deterministic ordering.
	for _, st := range c.schema.Settings {
		var scoped []values.DefaultValue
		for _, d := range c.candidates[st.Name] {
			if !d.Tier.Matches(c.tier) {
				continue // tier mismatch
			}
			if isRoot {
				if d.SubAppID != nil {
					continue // root scan skips sub-app-scoped records
				}
			} else if d.SubAppID != nil && *d.SubAppID != *subAppID {
				continue // sub-app scan skips other sub-apps' records, keeps nil-scoped
			}
			scoped = append(scoped, d)
		}

		var merged []values.DefaultValue
		if isRoot {
			merged = scoped
		} else {
			// Reuse the root entry's list by reference when no
			// sub-app-specific alternate exists.
			hasSubAppSpecific := false
			for _, d := range scoped {
				if d.SubAppID != nil {
					hasSubAppSpecific = true
					break
				}
			}
			if !hasSubAppSpecific {
				merged = c.rootDefaultsFor(st.Name)
			} else {
				merged = scoped
			}
		}
		defaults = append(defaults, merged...)

		cands := make([]specificity.Candidate, len(merged))
		for i, d := range merged {
			cands[i] = specificity.Candidate{SubAppID: d.SubAppID, Tier: d.Tier, DataCenter: d.DataCenter}
		}
		now := time.Now()
		valid := make([]int, 0, len(cands))
		for i, c2 := range cands {
			if specificity.Matches(c2, target, now) {
				valid = append(valid, i)
			}
		}
		if len(valid) == 0 {
			return &nfigerr.SchemaError{Setting: st.Name, Reason: "no default matches the current tier/data-center; root default should always match"}
		}
		onlyValid := make([]specificity.Candidate, len(valid))
		for i, vi := range valid {
			onlyValid[i] = cands[vi]
		}
		winner := valid[specificity.Most(onlyValid)]
		chosen := merged[winner]

		parsedValue, err := c.parseDefault(st, chosen)
		if err != nil {
			return err
		}
		if st.AllowInline {
			active[st.Name] = activeDefault{value: parsedValue, allowsOverrides: chosen.AllowsOverrides}
		} else {
			idx := c.intern(poolKey{name: st.Name, stringValue: chosen.StringValue}, parsedValue)
			active[st.Name] = activeDefault{poolIdx: idx, pooled: true, allowsOverrides: chosen.AllowsOverrides}
		}
	}

	sort.Slice(defaults, func(i, j int) bool { return defaults[i].Name < defaults[j].Name })
	e.defaults = defaults
	e.active = active
	return nil
}

// rootDefaultsFor returns the already-built root entry's merged defaults
// for one setting, used when a sub-app has no setting-specific alternate.
// The root entry is always built first (RegisterSubApp builds against a
// fresh core whose root entry, if absent, is synthesized on demand) so this
// never recurses.
func (c *core) rootDefaultsFor(name string) []values.DefaultValue {
	// Root app may never have been explicitly registered; registerSubApp is
	// idempotent and blocks until the root entry's build (new or already in
	// flight) has completed.
	root, _ := c.registerSubApp(nil, "")
	var out []values.DefaultValue
	for _, d := range root.defaults {
		if d.Name == name {
			out = append(out, d)
		}
	}
	return out
}

// intern adds v to the shared default-value pool, reusing the slot of an
// identical (setting, stored-string) default already interned by another
// sub-app's build.
func (c *core) intern(key poolKey, v reflect.Value) int {
	c.poolMu.Lock()
	defer c.poolMu.Unlock()
	if c.poolIdx == nil {
		c.poolIdx = make(map[poolKey]int)
	}
	if idx, ok := c.poolIdx[key]; ok {
		return idx
	}
	idx := len(c.pool)
	c.pool = append(c.pool, v)
	c.poolIdx[key] = idx
	return idx
}

// pooled reads a pooled default back out; indexes are stable because the
// pool is append-only.
func (c *core) pooled(idx int) reflect.Value {
	c.poolMu.Lock()
	defer c.poolMu.Unlock()
	return c.pool[idx]
}

func (c *core) parseDefault(st schema.Setting, d values.DefaultValue) (reflect.Value, error) {
	if st.Encrypted {
		if d.StringValue == "" {
			// The empty stored string marks the implicit zero-value root
			// default; there is no ciphertext to decrypt.
			return reflect.New(st.GoType).Elem(), nil
		}
		plaintext, err := c.encryptor.Decrypt(d.StringValue)
		if err != nil {
			return reflect.Value{}, &nfigerr.EncryptorError{Reason: fmt.Sprintf("cannot decrypt default for %q", st.Name), Err: err}
		}
		return st.Converter.Parse(plaintext)
	}
	return st.Converter.Parse(d.StringValue)
}
