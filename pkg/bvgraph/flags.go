package bvgraph

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/vorteil/webgraph/pkg/bitio"
)

// Code identifies one of the instantaneous codes the format can use for a
// record field. The zero value stands for the field's default code.
type Code int

// Supported codes.
const (
	CodeDefault Code = iota
	CodeUnary
	CodeGamma
	CodeDelta
	CodeZeta
	CodeNibble
	CodeGolomb
)

func (c Code) String() string {
	switch c {
	case CodeUnary:
		return "UNARY"
	case CodeGamma:
		return "GAMMA"
	case CodeDelta:
		return "DELTA"
	case CodeZeta:
		return "ZETA"
	case CodeNibble:
		return "NIBBLE"
	case CodeGolomb:
		return "GOLOMB"
	}
	return "DEFAULT"
}

// Flags selects the code used for each field of a record. Zero-valued fields
// use the format defaults: gamma for outdegrees, blocks, block counts and
// offsets, zeta for residuals, unary for references.
type Flags struct {
	Outdegrees Code
	References Code
	Blocks     Code
	BlockCount Code
	Residuals  Code
	Offsets    Code
}

type flagField struct {
	name string
	def  Code
	get  func(*Flags) *Code
}

var flagFields = []flagField{
	{"OUTDEGREES", CodeGamma, func(f *Flags) *Code { return &f.Outdegrees }},
	{"REFERENCES", CodeUnary, func(f *Flags) *Code { return &f.References }},
	{"BLOCKS", CodeGamma, func(f *Flags) *Code { return &f.Blocks }},
	{"BLOCK_COUNT", CodeGamma, func(f *Flags) *Code { return &f.BlockCount }},
	{"RESIDUALS", CodeZeta, func(f *Flags) *Code { return &f.Residuals }},
	{"OFFSETS", CodeGamma, func(f *Flags) *Code { return &f.Offsets }},
}

func codeFromToken(tok string) (Code, error) {
	switch tok {
	case "UNARY":
		return CodeUnary, nil
	case "GAMMA":
		return CodeGamma, nil
	case "DELTA":
		return CodeDelta, nil
	case "ZETA":
		return CodeZeta, nil
	case "NIBBLE":
		return CodeNibble, nil
	case "GOLOMB":
		return CodeGolomb, nil
	}
	return CodeDefault, errors.Errorf("unknown code '%s'", tok)
}

// resolve replaces zero-valued fields with the per-field defaults.
func (f Flags) resolve() Flags {
	for _, ff := range flagFields {
		c := ff.get(&f)
		if *c == CodeDefault {
			*c = ff.def
		}
	}
	return f
}

// validate rejects combinations the codec cannot store or reload. Golomb
// needs a modulus that the property file has no key for, so it is refused on
// every field.
func (f Flags) validate() error {
	r := f.resolve()
	for _, ff := range flagFields {
		if *ff.get(&r) == CodeGolomb {
			return errors.Errorf("golomb coding for %s is not supported by the on-disk format", strings.ToLower(ff.name))
		}
	}
	if r.References != CodeUnary && r.References != CodeGamma && r.References != CodeDelta {
		return errors.Errorf("references cannot be coded with %s", r.References)
	}
	return nil
}

// String renders the flags as the pipe-separated token list stored in the
// property file. Fields left at their defaults are omitted; all-default flags
// render as the empty string.
func (f Flags) String() string {
	var toks []string
	for _, ff := range flagFields {
		c := *ff.get(&f)
		if c != CodeDefault && c != ff.def {
			toks = append(toks, ff.name+"_"+c.String())
		}
	}
	return strings.Join(toks, "|")
}

// ParseFlags parses a compressionflags property value.
func ParseFlags(s string) (Flags, error) {
	var f Flags
	if s == "" {
		return f, nil
	}
	for _, tok := range strings.Split(s, "|") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		i := strings.LastIndex(tok, "_")
		if i < 0 {
			return Flags{}, errors.Errorf("bad compression flag '%s'", tok)
		}
		field, codeName := tok[:i], tok[i+1:]
		code, err := codeFromToken(codeName)
		if err != nil {
			return Flags{}, errors.Wrapf(err, "bad compression flag '%s'", tok)
		}
		found := false
		for _, ff := range flagFields {
			if ff.name == field {
				*ff.get(&f) = code
				found = true
				break
			}
		}
		if !found {
			return Flags{}, errors.Errorf("bad compression flag '%s'", tok)
		}
	}
	return f, nil
}

func readCode(in *bitio.InputBitStream, c Code, zetaK uint) int64 {
	switch c {
	case CodeUnary:
		return in.ReadUnary()
	case CodeGamma:
		return in.ReadGamma()
	case CodeDelta:
		return in.ReadDelta()
	case CodeZeta:
		return in.ReadZeta(zetaK)
	case CodeNibble:
		return in.ReadNibble()
	}
	panic("unresolved code")
}

func writeCode(out *bitio.OutputBitStream, c Code, zetaK uint, x int64) (int64, error) {
	switch c {
	case CodeUnary:
		return out.WriteUnary(x)
	case CodeGamma:
		return out.WriteGamma(x)
	case CodeDelta:
		return out.WriteDelta(x)
	case CodeZeta:
		return out.WriteZeta(x, zetaK)
	case CodeNibble:
		return out.WriteNibble(x)
	}
	panic("unresolved code")
}
