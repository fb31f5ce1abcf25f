package jsonable

// Flag is a tri-state switch used where a setting may be left to an outer
// layer of configuration.
type Flag int8

const (
	// Inherit leaves the decision to the enclosing configuration.
	Inherit Flag = iota
	On
	Off
)

// FlagOf returns On for true and Off for false.
func FlagOf(b bool) Flag {
	if b {
		return On
	}
	return Off
}

func (f Flag) or(fallback bool) bool {
	switch f {
	case On:
		return true
	case Off:
		return false
	default:
		return fallback
	}
}

// Rules are field rules declared by a record type through [RuleSet]. They
// apply to the record's own fields; converters also apply to everything
// nested below the record. Converters are read once per record type and
// encoder, so they must not vary between values of the type.
type Rules struct {
	Exclude     []string
	ExcludeNone Flag
	ByAlias     Flag
	Converters  []Converter
}

// RuleSet is implemented by record types that declare their own field rules.
type RuleSet interface {
	JSONRules() Rules
}

// EncodeOption overrides instance-level configuration for a single call to
// [Encoder.Encode].
type EncodeOption func(*callOptions)

type callOptions struct {
	exclude         map[string]struct{}
	include         map[string]struct{}
	excludeNone     Flag
	byAlias         Flag
	excludeUnset    Flag
	excludeDefaults Flag
	converters      []Converter
}

// Exclude omits the named fields (or mapping keys) of the root value.
func Exclude(names ...string) EncodeOption {
	return func(o *callOptions) {
		if o.exclude == nil {
			o.exclude = make(map[string]struct{}, len(names))
		}
		for _, n := range names {
			o.exclude[n] = struct{}{}
		}
	}
}

// Include keeps only the named fields (or mapping keys) of the root value.
func Include(names ...string) EncodeOption {
	return func(o *callOptions) {
		if o.include == nil {
			o.include = make(map[string]struct{}, len(names))
		}
		for _, n := range names {
			o.include[n] = struct{}{}
		}
	}
}

// ExcludeNone omits record fields and mapping entries whose value is nil.
func ExcludeNone(b bool) EncodeOption {
	return func(o *callOptions) { o.excludeNone = FlagOf(b) }
}

// ByAlias emits record fields under their alias when one is declared.
func ByAlias(b bool) EncodeOption {
	return func(o *callOptions) { o.byAlias = FlagOf(b) }
}

// ExcludeUnset omits record fields that report themselves as unset. Only
// [Record] implementations can report this.
func ExcludeUnset(b bool) EncodeOption {
	return func(o *callOptions) { o.excludeUnset = FlagOf(b) }
}

// ExcludeDefaults omits record fields holding their type's zero value.
func ExcludeDefaults(b bool) EncodeOption {
	return func(o *callOptions) { o.excludeDefaults = FlagOf(b) }
}

// Converters adds converters for a single call. They take precedence over
// converters declared by records and over the encoder's own.
func Converters(convs ...Converter) EncodeOption {
	return func(o *callOptions) { o.converters = append(o.converters, convs...) }
}

func newCallOptions(opts []EncodeOption) *callOptions {
	o := &callOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// fieldFlags are the switches inherited from frame to frame.
type fieldFlags struct {
	excludeNone     bool
	byAlias         bool
	excludeUnset    bool
	excludeDefaults bool
}

// override applies call-level switches on top of f.
func (f fieldFlags) override(o *callOptions) fieldFlags {
	return fieldFlags{
		excludeNone:     o.excludeNone.or(f.excludeNone),
		byAlias:         o.byAlias.or(f.byAlias),
		excludeUnset:    o.excludeUnset.or(f.excludeUnset),
		excludeDefaults: o.excludeDefaults.or(f.excludeDefaults),
	}
}

// fieldRules are the effective rules for one record or mapping.
type fieldRules struct {
	fieldFlags
	exclude map[string]struct{}
	include map[string]struct{} // nil keeps everything
}

func (r fieldRules) skip(names ...string) bool {
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := r.exclude[n]; ok {
			return true
		}
	}
	if r.include == nil {
		return false
	}
	for _, n := range names {
		if _, ok := r.include[n]; ok && n != "" {
			return false
		}
	}
	return true
}

// mergeRules computes the rules for a record frame.
//
// Precedence is call-level > record-declared > inherited, where inherited is
// the instance configuration already overridden by the call. Call-level
// settings outrank declared ones only at the root; below it, records use
// their declared rules. Exclusion and inclusion from the call or the instance
// configuration apply to the root only.
func mergeRules(inherited fieldFlags, declared Rules, call *callOptions, instanceExclude []string, root bool) fieldRules {
	r := fieldRules{fieldFlags: inherited}
	r.excludeNone = declared.ExcludeNone.or(r.excludeNone)
	r.byAlias = declared.ByAlias.or(r.byAlias)

	if len(declared.Exclude) > 0 {
		r.exclude = make(map[string]struct{}, len(declared.Exclude))
		for _, n := range declared.Exclude {
			r.exclude[n] = struct{}{}
		}
	}

	if !root {
		return r
	}

	r.fieldFlags = r.fieldFlags.override(call)

	rootExclude := call.exclude
	if rootExclude == nil && len(instanceExclude) > 0 {
		rootExclude = make(map[string]struct{}, len(instanceExclude))
		for _, n := range instanceExclude {
			rootExclude[n] = struct{}{}
		}
	}
	if len(rootExclude) > 0 {
		if r.exclude == nil {
			r.exclude = make(map[string]struct{}, len(rootExclude))
		}
		for n := range rootExclude {
			r.exclude[n] = struct{}{}
		}
	}
	r.include = call.include
	return r
}
