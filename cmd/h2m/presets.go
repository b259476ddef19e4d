package main

import (
	"fmt"
	"strings"

	"github.com/rgonek/html-md-bridge/adapter"
	"github.com/rgonek/html-md-bridge/converter"
)

const (
	presetBalanced    = "balanced"
	presetTypographic = "typographic"
	presetInline      = "inline"
)

func presetOptions(preset string) (adapter.Options, error) {
	switch strings.ToLower(strings.TrimSpace(preset)) {
	case "", presetBalanced:
		return adapter.Options{}, nil
	case presetTypographic:
		return adapter.Options{
			Quotes: []string{"“”", "‘’"},
		}, nil
	case presetInline:
		return adapter.Options{
			Document: converter.Bool(false),
			Newlines: true,
		}, nil
	default:
		return adapter.Options{}, fmt.Errorf("unknown preset %q (allowed: balanced, typographic, inline)", preset)
	}
}
