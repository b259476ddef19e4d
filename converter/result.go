package converter

import "github.com/rgonek/html-md-bridge/mdast"

// Result holds the output of a conversion.
type Result struct {
	Tree     *mdast.Tree `json:"-"`
	Warnings []Warning   `json:"warnings,omitempty"`
}

// WarningType categorizes conversion warnings.
type WarningType string

const (
	WarningDroppedInput    WarningType = "dropped_input"
	WarningHandlerFallback WarningType = "handler_fallback"
)

// Warning represents a non-fatal issue encountered during conversion.
type Warning struct {
	Type    WarningType `json:"type"`
	Tag     string      `json:"tag,omitempty"`
	Message string      `json:"message"`
}
