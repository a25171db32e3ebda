package main

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vorteil/webgraph/pkg/bvgraph"
)

var showCmd = &cobra.Command{
	Use:   "show BASENAME [NODE...]",
	Short: "Print graph parameters and adjacency lists",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {

		g, err := bvgraph.Load(args[0], &bvgraph.LoadArgs{Logger: log})
		if err != nil {
			return err
		}
		defer g.Close()

		fmt.Println(g.Properties())

		for _, arg := range args[1:] {
			x, err := strconv.Atoi(arg)
			if err != nil {
				return errors.Wrapf(err, "bad node '%s'", arg)
			}
			succ, err := g.SuccessorArray(x)
			if err != nil {
				return err
			}
			fmt.Printf("%d (outdegree %d): %v\n", x, len(succ), succ)
		}
		return nil
	},
}
