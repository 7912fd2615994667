package factory

import (
	"fmt"
	"reflect"
	"time"

	"github.com/getnfig/nfig/nfigerr"
	"github.com/getnfig/nfig/schema"
	"github.com/getnfig/nfig/specificity"
	"github.com/getnfig/nfig/values"
)

// TryGetSettings materializes a settings object of type T for subAppID (nil
// for the root app), applying overrides from snapshot on top of the
// specificity-resolved defaults. Unparseable overrides are reported as an
// aggregate *nfigerr.InvalidOverrideValuesError alongside a settings object
// that is still fully populated (they leave the active default in place).
// An error while building the sub-app's defaults is returned as is, with a
// nil settings object.
func (f *Factory[T]) TryGetSettings(subAppID *int, snapshot values.OverridesSnapshot) (*T, error) {
	entry, err := f.core.registerSubApp(subAppID, lazyName(f.core, subAppID))
	if err != nil {
		return nil, err
	}

	root := reflect.New(f.schema.RootType)
	target := specificity.Target{SubAppID: subAppID, Tier: f.tier, DataCenter: f.dataCenter}
	overridesByName := snapshot.ByName()
	now := time.Now()

	var invalid []*nfigerr.InvalidOverrideValueError

	for _, st := range f.schema.Settings {
		active, ok := entry.active[st.Name]
		if !ok {
			continue
		}
		value := active.value
		if active.pooled {
			value = f.core.pooled(active.poolIdx)
		}

		if active.allowsOverrides {
			if winner, ok := pickOverride(overridesByName[st.Name], target, now); ok {
				parsed, perr := f.applyOverride(st, winner)
				if perr != nil {
					invalid = append(invalid, &nfigerr.InvalidOverrideValueError{Name: st.Name, Value: winner.StringValue, Err: perr})
				} else {
					value = parsed
				}
			}
		}

		fieldVal, err := fieldByPath(root.Elem(), st.FieldPath)
		if err != nil {
			return nil, err
		}
		fieldVal.Set(value)
	}

	settings := root.Interface().(*T)
	if len(invalid) > 0 {
		return settings, &nfigerr.InvalidOverrideValuesError{Errors: invalid}
	}
	return settings, nil
}

// lazyName supplies an empty sub-app name when TryGetSettings materializes
// a sub-app's state before an explicit RegisterSubApp call, so per-sub-app
// state can build on first read and be cached.
func lazyName(c *core, subAppID *int) string {
	if subAppID == nil {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.subApps[keyFor(subAppID)]; ok {
		return e.name
	}
	return ""
}

// pickOverride selects the most specific matching override for one
// setting's candidates against target. Unknown-name overrides are filtered
// out before this is called (the caller only looks up overrides already
// grouped by a known setting name).
func pickOverride(overrides []values.OverrideValue, target specificity.Target, now time.Time) (values.OverrideValue, bool) {
	if len(overrides) == 0 {
		return values.OverrideValue{}, false
	}
	cands := make([]specificity.Candidate, len(overrides))
	for i, o := range overrides {
		cands[i] = specificity.Candidate{SubAppID: o.SubAppID, DataCenter: o.DataCenter, IsOverride: true, ExpirationTime: o.ExpirationTime}
	}
	var valid []int
	for i, c := range cands {
		if specificity.Matches(c, target, now) {
			valid = append(valid, i)
		}
	}
	if len(valid) == 0 {
		return values.OverrideValue{}, false
	}
	onlyValid := make([]specificity.Candidate, len(valid))
	for i, vi := range valid {
		onlyValid[i] = cands[vi]
	}
	winner := valid[specificity.Most(onlyValid)]
	return overrides[winner], true
}

// applyOverride decrypts (if needed) and parses one winning override's
// stored string into the setting's Go value.
func (f *Factory[T]) applyOverride(st schema.Setting, o values.OverrideValue) (reflect.Value, error) {
	raw := o.StringValue
	if st.Encrypted {
		plaintext, err := f.encryptor.Decrypt(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		raw = plaintext
	}
	return st.Converter.Parse(raw)
}

func fieldByPath(v reflect.Value, path []int) (reflect.Value, error) {
	for _, idx := range path {
		if v.Kind() == reflect.Ptr {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		if idx < 0 || idx >= v.NumField() {
			return reflect.Value{}, fmt.Errorf("factory: field path index %d out of range for %s", idx, v.Type())
		}
		v = v.Field(idx)
	}
	return v, nil
}

// SettingExists reports whether name is a known setting.
func (f *Factory[T]) SettingExists(name string) bool {
	_, ok := f.schema.ByName(name)
	return ok
}

// GetSettingType returns the declared Go type of setting name.
func (f *Factory[T]) GetSettingType(name string) (reflect.Type, bool) {
	st, ok := f.schema.ByName(name)
	if !ok {
		return nil, false
	}
	return st.GoType, true
}

// GetSettingValue reads the current value of setting name out of a
// materialized settings object.
func (f *Factory[T]) GetSettingValue(settings *T, name string) (any, error) {
	st, ok := f.schema.ByName(name)
	if !ok {
		return nil, &nfigerr.SettingNotFoundError{Name: name}
	}
	v, err := fieldByPath(reflect.ValueOf(settings).Elem(), st.FieldPath)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}
