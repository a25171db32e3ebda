package bvgraph

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"
	"os"
	"strconv"

	"github.com/magiconair/properties"
	"github.com/pkg/errors"
)

// GraphClass identifies the codec in property files; the loader refuses any
// other value.
const GraphClass = "webgraph.BVGraph"

// FormatVersion is the current format tag. Graphs carrying a newer version
// are rejected at load time.
const FormatVersion = 0

// Properties mirrors the key=value side file stored next to a compressed
// graph.
type Properties struct {
	GraphClass        string
	Version           int
	Nodes             int
	Arcs              int64
	WindowSize        int
	MaxRefCount       int
	MinIntervalLength int
	ZetaK             uint
	Flags             Flags
	Stats             *Stats
}

func propertiesPath(basename string) string { return basename + ".properties" }
func graphPath(basename string) string      { return basename + ".graph" }
func offsetsPath(basename string) string    { return basename + ".offsets" }
func offsetCachePath(basename string) string {
	return basename + ".obl"
}

func (p *Properties) write(basename string) error {
	out := properties.NewProperties()
	out.Set("graphclass", p.GraphClass)
	out.Set("version", strconv.Itoa(p.Version))
	out.Set("nodes", strconv.Itoa(p.Nodes))
	out.Set("arcs", strconv.FormatInt(p.Arcs, 10))
	out.Set("windowsize", strconv.Itoa(p.WindowSize))
	out.Set("maxrefcount", strconv.Itoa(p.MaxRefCount))
	out.Set("minintervallength", strconv.Itoa(p.MinIntervalLength))
	out.Set("zetak", strconv.Itoa(int(p.ZetaK)))
	out.Set("compressionflags", p.Flags.String())
	if p.Stats != nil {
		p.Stats.fill(out, p.Arcs)
	}

	f, err := os.Create(propertiesPath(basename))
	if err != nil {
		return errors.Wrap(err, "creating property file")
	}
	defer f.Close()
	if _, err = out.Write(f, properties.UTF8); err != nil {
		return errors.Wrap(err, "writing property file")
	}
	return f.Close()
}

func loadProperties(basename string) (*Properties, error) {
	in, err := properties.LoadFile(propertiesPath(basename), properties.UTF8)
	if err != nil {
		return nil, errors.Wrap(err, "loading property file")
	}

	p := &Properties{}
	p.GraphClass = in.GetString("graphclass", "")
	if p.GraphClass != GraphClass {
		return nil, errors.Errorf("unknown graph class '%s'", p.GraphClass)
	}

	intKey := func(key string, dst *int, mandatory bool) error {
		s, ok := in.Get(key)
		if !ok {
			if mandatory {
				return errors.Errorf("property file misses mandatory key '%s'", key)
			}
			return nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return errors.Wrapf(err, "bad value for key '%s'", key)
		}
		*dst = v
		return nil
	}

	for _, k := range []struct {
		key       string
		dst       *int
		mandatory bool
	}{
		{"version", &p.Version, true},
		{"nodes", &p.Nodes, true},
		{"windowsize", &p.WindowSize, true},
		{"maxrefcount", &p.MaxRefCount, true},
		{"minintervallength", &p.MinIntervalLength, true},
	} {
		if err := intKey(k.key, k.dst, k.mandatory); err != nil {
			return nil, err
		}
	}
	if p.Version > FormatVersion {
		return nil, errors.Errorf("graph version %d is newer than the supported version %d", p.Version, FormatVersion)
	}
	if p.Nodes < 0 || p.Nodes > 1<<31-1 {
		return nil, errors.Errorf("invalid node count %d", p.Nodes)
	}

	arcs, ok := in.Get("arcs")
	if !ok {
		return nil, errors.New("property file misses mandatory key 'arcs'")
	}
	if p.Arcs, err = strconv.ParseInt(arcs, 10, 64); err != nil {
		return nil, errors.Wrap(err, "bad value for key 'arcs'")
	}

	var zetaK int
	if err := intKey("zetak", &zetaK, false); err != nil {
		return nil, err
	}
	if zetaK == 0 {
		zetaK = DefaultZetaK
	}
	if zetaK < 1 || zetaK > 8 {
		return nil, errors.Errorf("zeta parameter %d outside [1, 8]", zetaK)
	}
	p.ZetaK = uint(zetaK)

	if p.Flags, err = ParseFlags(in.GetString("compressionflags", "")); err != nil {
		return nil, err
	}
	if err = p.Flags.validate(); err != nil {
		return nil, err
	}

	p.Stats = loadStats(in)
	return p, nil
}

// loadStats recovers the optional statistics keys, when present.
func loadStats(in *properties.Properties) *Stats {
	s := &Stats{}
	found := false
	for _, k := range []struct {
		key string
		dst *int64
	}{
		{"bitsforoutdegrees", &s.BitsForOutdegrees},
		{"bitsforreferences", &s.BitsForReferences},
		{"bitsforblocks", &s.BitsForBlocks},
		{"bitsforintervals", &s.BitsForIntervals},
		{"bitsforresiduals", &s.BitsForResiduals},
		{"copiedarcs", &s.CopiedArcs},
		{"intervalisedarcs", &s.IntervalisedArcs},
		{"residualarcs", &s.ResidualArcs},
	} {
		v, ok := in.Get(k.key)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		*k.dst = parsed
		found = true
	}
	if !found {
		return nil
	}
	s.TotalBits = s.BitsForOutdegrees + s.BitsForReferences + s.BitsForBlocks +
		s.BitsForIntervals + s.BitsForResiduals
	return s
}

// String renders a short human-readable summary.
func (p *Properties) String() string {
	return fmt.Sprintf("%s v%d: %d nodes, %d arcs, window %d, maxref %d, mininterval %d",
		p.GraphClass, p.Version, p.Nodes, p.Arcs, p.WindowSize, p.MaxRefCount, p.MinIntervalLength)
}
