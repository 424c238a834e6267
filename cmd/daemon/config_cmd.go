// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ManuGH/sitekit/internal/config"
	"gopkg.in/yaml.v3"
)

func runConfigCLI(args []string, src config.Source, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "check":
		return runConfigCheck(args[1:], src, stdout, stderr)
	case "keys":
		return runConfigKeys(stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  sitekit config check [--quiet]   resolve the environment and print it with secrets masked")
	fmt.Fprintln(w, "  sitekit config keys              list every recognised variable")
}

func runConfigCheck(args []string, src config.Source, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sitekit config check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	quiet := fs.Bool("quiet", false, "only report validity")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Resolve(src)
	if err != nil {
		var ce *config.ConfigurationError
		if errors.As(err, &ce) && ce.Key != "" {
			fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", ce.Key, err)
		} else {
			fmt.Fprintf(stderr, "Configuration error:\n  %v\n", err)
		}
		return 1
	}

	if *quiet {
		fmt.Fprintf(stdout, "configuration is valid (ENV=%s)\n", cfg.Environment)
		return 0
	}

	out, err := yaml.Marshal(cfg.Masked())
	if err != nil {
		fmt.Fprintf(stderr, "Failed to render configuration: %v\n", err)
		return 1
	}
	_, _ = stdout.Write(out)
	return 0
}

func runConfigKeys(stdout, stderr io.Writer) int {
	reg, err := config.Schema()
	if err != nil {
		fmt.Fprintf(stderr, "Schema error: %v\n", err)
		return 1
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tKIND\tREQUIRED\tDEFAULT\tDESCRIPTION")
	for _, b := range reg.Bindings() {
		def := "-"
		switch {
		case b.Sensitive && b.HasDefault():
			def = "(secret)"
		case b.HasDefault():
			def = fmt.Sprintf("%q", b.DefaultString())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", b.Key, b.Kind, b.Requirement(), def, b.Help)
	}
	if err := tw.Flush(); err != nil {
		return 1
	}
	return 0
}
