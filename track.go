package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/brentp/xopen"
	gn "github.com/pbenner/gonetics"
)

// ImportTrack reads a four-column bedgraph file, optionally gzipped, into a
// GRanges object with the signal stored in the "values" meta column.
func ImportTrack(path string) (gn.GRanges, error) {
	r, err := xopen.Ropen(path)
	if err != nil {
		return gn.GRanges{}, err
	}
	defer r.Close()
	return ReadTrack(r, path)
}

// ReadTrack parses a bedgraph stream, validating every record on the way
// in. Records must have exactly four tab- or space-separated fields, an end
// greater than the start, a non-negative value, and must be sorted and
// non-overlapping within each chromosome. A chromosome may not reappear
// after records for another chromosome have been seen. Violations return a
// *MalformedTrackError naming the offending line.
func ReadTrack(r io.Reader, name string) (gn.GRanges, error) {
	scanner := bufio.NewScanner(r)

	seqnames := []string{}
	from := []int{}
	to := []int{}
	values := []float64{}

	seen := map[string]bool{}
	chrom := ""
	prevFrom := 0
	prevTo := 0
	line := 0

	for scanner.Scan() {
		line++
		text := scanner.Text()
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		malformed := func(reason string) error {
			return &MalformedTrackError{File: name, Line: line, Record: text, Reason: reason}
		}
		if len(fields) != 4 {
			return gn.GRanges{}, malformed("expected four fields")
		}
		start, err := strconv.Atoi(fields[1])
		if err != nil {
			return gn.GRanges{}, malformed("start is not an integer")
		}
		end, err := strconv.Atoi(fields[2])
		if err != nil {
			return gn.GRanges{}, malformed("end is not an integer")
		}
		value, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return gn.GRanges{}, malformed("value is not numeric")
		}
		if start < 0 {
			return gn.GRanges{}, malformed("negative start")
		}
		if end <= start {
			return gn.GRanges{}, malformed("end must exceed start")
		}
		if value < 0 {
			return gn.GRanges{}, malformed("negative signal value")
		}
		if fields[0] != chrom {
			if seen[fields[0]] {
				return gn.GRanges{}, malformed("chromosome appears out of order")
			}
			chrom = fields[0]
			seen[chrom] = true
		} else {
			if start < prevFrom {
				return gn.GRanges{}, malformed("records out of sorted order")
			}
			if start < prevTo {
				return gn.GRanges{}, malformed("record overlaps previous record")
			}
		}
		prevFrom = start
		prevTo = end
		seqnames = append(seqnames, fields[0])
		from = append(from, start)
		to = append(to, end)
		values = append(values, value)
	}
	if err := scanner.Err(); err != nil {
		return gn.GRanges{}, err
	}

	track := gn.NewGRanges(seqnames, from, to, nil)
	track.AddMeta("values", values)
	return track, nil
}

// Block is a maximal run of touching non-zero signal intervals on one
// chromosome, the unit over which enrichment is measured.
type Block struct {
	Chrom string
	Start int
	End   int
	// AUC is the total signal mass, sum of value*length over the
	// constituent intervals in input order.
	AUC float64
	// Max is the greatest interval value in the block. MaxStart/MaxEnd is
	// the envelope spanning the farthest upstream and downstream intervals
	// attaining Max; it may bridge lower signal between two equal-height
	// runs.
	Max      float64
	MaxStart int
	MaxEnd   int
}

func (b Block) Length() int { return b.End - b.Start }

// MaxRegion renders the max-signal envelope as "chrom:start-end".
func (b Block) MaxRegion() string {
	return fmt.Sprintf("%s:%d-%d", b.Chrom, b.MaxStart, b.MaxEnd)
}

// BlockScanner walks a signal track and yields one Block per maximal run of
// touching non-zero intervals, in track order. A gap of even a single base,
// or a zero-valued record, ends the current block. The scanner is cheap to
// construct; to restart, make a new one.
type BlockScanner struct {
	track  gn.GRanges
	values []float64
	i      int
}

func NewBlockScanner(track gn.GRanges) *BlockScanner {
	return &BlockScanner{track: track, values: track.GetMetaFloat("values")}
}

// Next returns the next Block and true, or false when the track is
// exhausted.
func (s *BlockScanner) Next() (Block, bool) {
	n := s.track.Length()
	for s.i < n && s.values[s.i] == 0 {
		s.i++
	}
	if s.i >= n {
		return Block{}, false
	}

	r := s.track.Ranges[s.i]
	v := s.values[s.i]
	b := Block{
		Chrom:    s.track.Seqnames[s.i],
		Start:    r.From,
		End:      r.To,
		AUC:      v * float64(r.To-r.From),
		Max:      v,
		MaxStart: r.From,
		MaxEnd:   r.To,
	}
	s.i++

	for s.i < n {
		r = s.track.Ranges[s.i]
		v = s.values[s.i]
		if s.track.Seqnames[s.i] != b.Chrom || r.From != b.End || v == 0 {
			break
		}
		b.End = r.To
		b.AUC += v * float64(r.To-r.From)
		if v > b.Max {
			b.Max = v
			b.MaxStart = r.From
			b.MaxEnd = r.To
		} else if v == b.Max {
			b.MaxEnd = r.To
		}
		s.i++
	}
	return b, true
}

// SegmentTrack materializes all blocks of a track in position order.
func SegmentTrack(track gn.GRanges) []Block {
	var blocks []Block
	s := NewBlockScanner(track)
	for b, ok := s.Next(); ok; b, ok = s.Next() {
		blocks = append(blocks, b)
	}
	return blocks
}
