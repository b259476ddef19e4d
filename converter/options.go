package converter

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

const (
	DefaultChecked   = "[x]"
	DefaultUnchecked = "[ ]"
	DefaultQuote     = `"`
)

// Options holds all conversion options.
type Options struct {
	// Document marks the input as a complete document. When false, a result
	// made of a single paragraph keeps its phrasing content directly under the root.
	Document *bool `json:"document,omitempty" yaml:"document,omitempty"`
	// Newlines keeps line endings inside text instead of collapsing them to spaces.
	Newlines  bool     `json:"newlines,omitempty" yaml:"newlines,omitempty"`
	Checked   string   `json:"checked,omitempty" yaml:"checked,omitempty"`
	Unchecked string   `json:"unchecked,omitempty" yaml:"unchecked,omitempty"`
	// Quotes are used for <q> elements by nesting depth. Each entry holds the
	// opening mark and, optionally, a distinct closing mark.
	Quotes   []string           `json:"quotes,omitempty" yaml:"quotes,omitempty"`
	Handlers map[string]Handler `json:"-" yaml:"-"`
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}

func (o Options) applyDefaults() Options {
	if o.Document == nil {
		o.Document = Bool(false)
	}
	if o.Checked == "" {
		o.Checked = DefaultChecked
	}
	if o.Unchecked == "" {
		o.Unchecked = DefaultUnchecked
	}
	if len(o.Quotes) == 0 {
		o.Quotes = []string{DefaultQuote}
	}
	return o
}

// Clone returns a deep copy of Options for pointer, slice and map-backed fields.
func (o Options) Clone() Options {
	cloned := o
	if o.Document != nil {
		cloned.Document = Bool(*o.Document)
	}
	cloned.Quotes = slices.Clone(o.Quotes)
	cloned.Handlers = maps.Clone(o.Handlers)
	return cloned
}

// Validate checks that option values are usable.
func (o Options) Validate() error {
	for i, quote := range o.Quotes {
		if quote == "" {
			return fmt.Errorf("invalid quotes[%d]: must be non-empty", i)
		}
	}
	for tag, handler := range o.Handlers {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("handlers contains empty tag name")
		}
		if handler == nil {
			return fmt.Errorf("handler for %q is nil", tag)
		}
	}
	return nil
}
