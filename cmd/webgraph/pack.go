package main

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vorteil/webgraph/pkg/bvgraph"
)

var (
	flagWindowSize  int
	flagMaxRef      int
	flagMinInterval int
	flagZetaK       int
	flagThreads     int
	flagTmpDir      string
	flagResiduals   string
	flagOffline     bool
)

func addPackFlags() {
	f := packCmd.Flags()
	f.IntVarP(&flagWindowSize, "window-size", "w", bvgraph.DefaultWindowSize, "reference window size (0 disables references)")
	f.IntVarP(&flagMaxRef, "max-ref-count", "r", bvgraph.DefaultMaxRefCount, "maximum reference chain length")
	f.IntVarP(&flagMinInterval, "min-interval-length", "i", bvgraph.DefaultMinIntervalLength, "minimum interval length (0 disables intervals)")
	f.IntVarP(&flagZetaK, "zeta-k", "k", bvgraph.DefaultZetaK, "shrinking factor of the zeta code")
	f.IntVarP(&flagThreads, "threads", "T", 0, "compression threads (0 chooses automatically)")
	f.StringVar(&flagTmpDir, "tmpdir", "", "directory for temporary per-thread files")
	f.StringVar(&flagResiduals, "residual-code", "", "code used for residuals (GAMMA, DELTA, ZETA, NIBBLE)")
	f.BoolVar(&flagOffline, "offline", false, "read the source graph sequentially without loading it")

	_ = viper.BindPFlag("threads", f.Lookup("threads"))
	_ = viper.BindPFlag("tmpdir", f.Lookup("tmpdir"))
}

var packCmd = &cobra.Command{
	Use:   "pack SOURCE DEST",
	Short: "Recompress a stored graph under new parameters",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {

		mode := bvgraph.LoadMapped
		if flagOffline {
			mode = bvgraph.LoadOffline
		}

		src, err := bvgraph.Load(args[0], &bvgraph.LoadArgs{Mode: mode, Logger: log})
		if err != nil {
			return err
		}
		defer src.Close()

		storeArgs := &bvgraph.StoreArgs{
			WindowSize:        flagWindowSize,
			MaxRefCount:       flagMaxRef,
			MinIntervalLength: flagMinInterval,
			ZetaK:             uint(flagZetaK),
			Threads:           viper.GetInt("threads"),
			TmpDir:            viper.GetString("tmpdir"),
			Logger:            log,
		}
		if flagResiduals != "" {
			flags, err := bvgraph.ParseFlags("RESIDUALS_" + flagResiduals)
			if err != nil {
				return err
			}
			storeArgs.Flags = flags
		}

		if err = bvgraph.Store(context.Background(), src, args[1], storeArgs); err != nil {
			return err
		}

		dst, err := bvgraph.Load(args[1], &bvgraph.LoadArgs{Mode: bvgraph.LoadOffline, Logger: log})
		if err != nil {
			return err
		}
		fmt.Println(dst.Properties())
		return nil
	},
}
