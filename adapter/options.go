package adapter

import "github.com/rgonek/html-md-bridge/converter"

// Options configures the conversion. It is the converter's option set.
type Options = converter.Options

// Normalize returns a copy of opts with Document set to true when it is
// unset. An explicit false is kept. No other field is defaulted here; the
// converter owns the remaining defaults. Slices and maps are copied, so later
// changes to opts do not reach the result.
func Normalize(opts Options) Options {
	normalized := opts.Clone()
	if normalized.Document == nil {
		normalized.Document = converter.Bool(true)
	}
	return normalized
}
