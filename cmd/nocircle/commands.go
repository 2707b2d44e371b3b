// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/AleutianAI/nocircle/services/nocircle/geometry"
	"github.com/AleutianAI/nocircle/services/nocircle/search"
	"github.com/spf13/cobra"
)

// searchOptions holds the flags of the search command. Flags that are not
// set on the command line leave the configuration file value in place.
type searchOptions struct {
	configPath       string
	side             int
	minSize          int
	maxSize          int
	progressInterval uint64
	epsilon          float64
	tolerance        string
	determinant      string
	workers          int
	metricsAddr      string
	cpuProfile       string
	traceStdout      bool
	logLevel         string
	logJSON          bool
	logDir           string
	logQuiet         bool
}

type verifyOptions struct {
	side        int
	epsilon     float64
	tolerance   string
	determinant string
}

type countOptions struct {
	side int
	n    int
}

// newRootCommand builds the command tree. Without a subcommand the root
// runs the search.
func newRootCommand() *cobra.Command {
	rootOpts := &searchOptions{}
	rootCmd := &cobra.Command{
		Use:   "nocircle",
		Short: "Search grid subsets with no four concyclic points",
		Long: `nocircle searches, for increasing subset sizes n, the first subset of an
(H+1)x(H+1) integer grid in which no four points lie on a common circle.
Collinear quadruples count as concyclic. The search stops at the first n
for which no such subset exists.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSearch(cmd, rootOpts)
		},
	}
	bindSearchFlags(rootCmd, rootOpts)

	searchOpts := &searchOptions{}
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Run the subset search (the default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSearch(cmd, searchOpts)
		},
	}
	bindSearchFlags(searchCmd, searchOpts)

	verifyOpts := &verifyOptions{}
	verifyCmd := &cobra.Command{
		Use:   "verify x,y [x,y ...]",
		Short: "Check a point list for four concyclic points",
		Example: `  nocircle verify 0,0 0,1 0,2 1,0 2,1
  nocircle verify --side 6 "(0, 0)" "(1, 1)" "(2, 0)" "(1, 2)"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, verifyOpts, args)
		},
	}
	verifyCmd.Flags().IntVar(&verifyOpts.side, "side", -1, "require points inside the grid of this side H (-1: any integer point)")
	verifyCmd.Flags().Float64Var(&verifyOpts.epsilon, "epsilon", geometry.DefaultEpsilon, "determinant tolerance")
	verifyCmd.Flags().StringVar(&verifyOpts.tolerance, "tolerance", "absolute", "tolerance mode: absolute or relative")
	verifyCmd.Flags().StringVar(&verifyOpts.determinant, "determinant", "cofactor", "determinant method: cofactor or lu")

	countOpts := &countOptions{}
	countCmd := &cobra.Command{
		Use:   "count",
		Short: "Print the number of n-point subsets of the grid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCount(cmd, countOpts)
		},
	}
	countCmd.Flags().IntVar(&countOpts.side, "side", search.DefaultSide, "grid side H")
	countCmd.Flags().IntVar(&countOpts.n, "n", search.DefaultMinSize, "subset size")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create configuration files",
	}
	var showPath string
	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, showPath)
		},
	}
	configShowCmd.Flags().StringVar(&showPath, "config", "", "YAML configuration file")
	configInitCmd := &cobra.Command{
		Use:   "init PATH",
		Short: "Write the default configuration to PATH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, args[0])
		},
	}
	configCmd.AddCommand(configShowCmd, configInitCmd)

	rootCmd.AddCommand(searchCmd, verifyCmd, countCmd, configCmd)
	return rootCmd
}

func bindSearchFlags(cmd *cobra.Command, opts *searchOptions) {
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	f.IntVar(&opts.side, "side", search.DefaultSide, "grid side H; the grid is (H+1)x(H+1)")
	f.IntVar(&opts.minSize, "min", search.DefaultMinSize, "smallest subset size")
	f.IntVar(&opts.maxSize, "max", search.DefaultMaxSize, "largest subset size")
	f.Uint64Var(&opts.progressInterval, "progress-interval", search.DefaultProgressInterval, "combinations between progress lines")
	f.Float64Var(&opts.epsilon, "epsilon", geometry.DefaultEpsilon, "determinant tolerance")
	f.StringVar(&opts.tolerance, "tolerance", "absolute", "tolerance mode: absolute or relative")
	f.StringVar(&opts.determinant, "determinant", "cofactor", "determinant method: cofactor or lu")
	f.IntVar(&opts.workers, "workers", search.DefaultWorkers, "parallel scan workers (1: sequential)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics at this address, e.g. :9464")
	f.StringVar(&opts.cpuProfile, "cpuprofile", "", "write a CPU profile into this directory")
	f.BoolVar(&opts.traceStdout, "trace-stdout", false, "print OpenTelemetry spans to stderr")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	f.BoolVar(&opts.logJSON, "log-json", false, "write logs as JSON")
	f.StringVar(&opts.logDir, "log-dir", "", "also write JSON logs into this directory")
	f.BoolVar(&opts.logQuiet, "log-quiet", false, "with --log-dir, log only to the file")
}
