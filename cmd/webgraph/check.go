package main

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vorteil/webgraph/pkg/bvgraph"
)

var checkCmd = &cobra.Command{
	Use:   "check BASENAME",
	Short: "Verify a stored graph against its invariants",
	Long: `Check walks the whole graph sequentially and through random access,
verifying that the two agree, that every successor list is strictly
increasing, and that the recorded arc count matches the stream.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {

		g, err := bvgraph.Load(args[0], &bvgraph.LoadArgs{Logger: log})
		if err != nil {
			return err
		}
		defer g.Close()

		progress := log.NewProgress("Checking graph", "nodes", int64(g.NumNodes()))
		defer progress.Finish(false)

		var arcs int64
		it := g.NodeIterator(0)
		for x := it.NextNode(); x != -1; x = it.NextNode() {
			seq := it.SuccessorArray()
			rnd, err := g.SuccessorArray(x)
			if err != nil {
				return errors.Wrapf(err, "node %d", x)
			}
			if len(seq) != len(rnd) {
				return errors.Errorf("node %d: sequential outdegree %d, random access outdegree %d", x, len(seq), len(rnd))
			}
			for i := range seq {
				if seq[i] != rnd[i] {
					return errors.Errorf("node %d: sequential and random access disagree at position %d", x, i)
				}
				if i > 0 && seq[i] <= seq[i-1] {
					return errors.Errorf("node %d: successors are not strictly increasing at position %d", x, i)
				}
			}
			arcs += int64(len(seq))
			progress.Increment(1)
		}
		if errIt, ok := it.(interface{ Err() error }); ok && errIt.Err() != nil {
			return errIt.Err()
		}
		if arcs != g.NumArcs() {
			return errors.Errorf("stream holds %d arcs, property file says %d", arcs, g.NumArcs())
		}

		progress.Finish(true)
		log.Printf("graph is consistent: %d nodes, %d arcs", g.NumNodes(), arcs)
		return nil
	},
}
