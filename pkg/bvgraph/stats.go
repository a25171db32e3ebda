package bvgraph

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"
	"strconv"

	"github.com/magiconair/properties"
)

// Stats aggregates the compression statistics collected while storing a
// graph. They end up in the optional keys of the property file.
type Stats struct {
	BitsForOutdegrees int64
	BitsForReferences int64
	BitsForBlocks     int64
	BitsForIntervals  int64
	BitsForResiduals  int64
	TotalBits         int64

	CopiedArcs       int64
	IntervalisedArcs int64
	ResidualArcs     int64

	SumRef  int64
	SumDist int64
	Records int64
}

func (s *Stats) add(o *Stats) {
	s.BitsForOutdegrees += o.BitsForOutdegrees
	s.BitsForReferences += o.BitsForReferences
	s.BitsForBlocks += o.BitsForBlocks
	s.BitsForIntervals += o.BitsForIntervals
	s.BitsForResiduals += o.BitsForResiduals
	s.TotalBits += o.TotalBits
	s.CopiedArcs += o.CopiedArcs
	s.IntervalisedArcs += o.IntervalisedArcs
	s.ResidualArcs += o.ResidualArcs
	s.SumRef += o.SumRef
	s.SumDist += o.SumDist
	s.Records += o.Records
}

func ratio(num, den int64) string {
	if den == 0 {
		return "0"
	}
	return fmt.Sprintf("%.3f", float64(num)/float64(den))
}

func (s *Stats) fill(out *properties.Properties, arcs int64) {
	set := func(key string, v int64) { out.Set(key, strconv.FormatInt(v, 10)) }

	set("bitsforoutdegrees", s.BitsForOutdegrees)
	set("bitsforreferences", s.BitsForReferences)
	set("bitsforblocks", s.BitsForBlocks)
	set("bitsforintervals", s.BitsForIntervals)
	set("bitsforresiduals", s.BitsForResiduals)
	set("copiedarcs", s.CopiedArcs)
	set("intervalisedarcs", s.IntervalisedArcs)
	set("residualarcs", s.ResidualArcs)

	out.Set("avgbitsforoutdegrees", ratio(s.BitsForOutdegrees, s.Records))
	out.Set("avgbitsforreferences", ratio(s.BitsForReferences, s.Records))
	out.Set("avgbitsforblocks", ratio(s.BitsForBlocks, s.Records))
	out.Set("avgbitsforintervals", ratio(s.BitsForIntervals, s.Records))
	out.Set("avgbitsforresiduals", ratio(s.BitsForResiduals, s.Records))
	out.Set("avgref", ratio(s.SumRef, s.Records))
	out.Set("avgdist", ratio(s.SumDist, arcs))
	out.Set("bitsperlink", ratio(s.TotalBits, arcs))
	out.Set("bitspernode", ratio(s.TotalBits, s.Records))
}
