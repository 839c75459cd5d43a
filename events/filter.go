package events

// Filter selects events. Empty fields match everything.
type Filter struct {
	Types   []Type
	Plugins []string
	// ErrorsOnly matches only events carrying an error.
	ErrorsOnly bool
}

// NewFilter returns a filter matching every event.
func NewFilter() *Filter {
	return &Filter{}
}

// WithType restricts the filter to event type t (repeatable).
func (f *Filter) WithType(t Type) *Filter {
	f.Types = append(f.Types, t)
	return f
}

// WithPlugin restricts the filter to plugin name (repeatable).
func (f *Filter) WithPlugin(name string) *Filter {
	f.Plugins = append(f.Plugins, name)
	return f
}

// WithErrorsOnly restricts the filter to failed events.
func (f *Filter) WithErrorsOnly() *Filter {
	f.ErrorsOnly = true
	return f
}

// Match reports whether e passes the filter. A nil filter matches all.
func (f *Filter) Match(e Event) bool {
	if f == nil {
		return true
	}
	if f.ErrorsOnly && e.Err == nil {
		return false
	}
	if len(f.Types) > 0 {
		ok := false
		for _, t := range f.Types {
			if t == e.Type {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.Plugins) > 0 {
		for _, p := range f.Plugins {
			if p == e.Plugin {
				return true
			}
		}
		return false
	}
	return true
}
