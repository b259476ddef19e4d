// Command h2m converts HTML files to Markdown or HTML through a configurable
// document pipeline.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	// Error ignored: maxprocs.Set only fails on an invalid GOMAXPROCS env value.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
