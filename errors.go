package main

import (
	"fmt"
	"strings"
)

// MalformedTrackError reports a bedgraph record that violates the track
// invariants: four fields, end > start, non-negative value, sorted and
// non-overlapping within each chromosome.
type MalformedTrackError struct {
	File   string
	Line   int
	Record string
	Reason string
}

func (e *MalformedTrackError) Error() string {
	return fmt.Sprintf("%s: malformed record at line %d (%q): %s",
		e.File, e.Line, e.Record, e.Reason)
}

// InvalidFractionError rejects a numeric AUC threshold outside (0,1].
type InvalidFractionError struct {
	Value float64
}

func (e *InvalidFractionError) Error() string {
	return fmt.Sprintf("AUC fraction %g is outside (0,1]", e.Value)
}

// InsufficientDataError means too few signal blocks exist to model a
// threshold curve.
type InsufficientDataError struct {
	Blocks int
	Min    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("found %d signal blocks, need at least %d to model a threshold", e.Blocks, e.Min)
}

// ControlMismatchError flags control-track chromosomes that never occur in
// the experimental track. Reported as a warning; the affected blocks are
// excluded from threshold modeling.
type ControlMismatchError struct {
	Chroms []string
}

func (e *ControlMismatchError) Error() string {
	return fmt.Sprintf("control track chromosomes %s absent from experimental track; excluded from threshold modeling",
		strings.Join(e.Chroms, ", "))
}
