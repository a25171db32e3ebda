package main

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vorteil/webgraph/pkg/elog"
)

var (
	flagVerbose bool
	flagDebug   bool
	flagJSON    bool

	log elog.View
)

func commandInit() {

	// setup logging across all commands
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "enable debug output")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "enable json output")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {

		logger := &elog.CLI{}

		if flagJSON {
			logger.DisableTTY = true
			logrus.SetFormatter(&logrus.JSONFormatter{})
		} else {
			logrus.SetFormatter(logger)
		}

		logrus.SetLevel(logrus.TraceLevel)

		if flagDebug {
			logger.IsDebug = true
			logger.IsVerbose = true
		} else if flagVerbose {
			logger.IsVerbose = true
		}

		log = logger
		return nil
	}

	viper.SetEnvPrefix("WEBGRAPH")
	viper.AutomaticEnv()

	addPackFlags()

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(checkCmd)
}

var rootCmd = &cobra.Command{
	Use:   "webgraph",
	Short: "Compressed web-graph tooling",
	Long: `The webgraph command-line interface reads, verifies, and recompresses
immutable compressed graphs stored in the BV bit-stream format.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "View CLI version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("version: %s\n", release)
		fmt.Printf("ref: %s\n", commit)
		fmt.Printf("released: %s\n", date)
	},
}
