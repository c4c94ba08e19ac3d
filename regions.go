package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Height modes selecting which AUC cutoff the experimental filter applies.
const (
	ModeStringent = "stringent"
	ModeRelaxed   = "relaxed"
)

// Region is a merged run of significant blocks, the final output unit.
type Region struct {
	Chrom    string
	Start    int
	End      int
	TotalAUC float64
	Max      float64
	MaxStart int
	MaxEnd   int
}

// FilterBlocks retains experimental blocks exceeding both the primary AUC
// cutoff for the chosen mode and the secondary height floor.
func FilterBlocks(blocks []Block, res ThresholdResult, mode string) []Block {
	primary := res.Stringent
	if mode == ModeRelaxed {
		primary = res.Relaxed
	}
	var keep []Block
	for _, b := range blocks {
		if b.AUC > primary && b.Max > res.Secondary {
			keep = append(keep, b)
		}
	}
	return keep
}

// FilterControl retains control blocks whose AUC exceeds the stringent
// cutoff, regardless of the chosen height mode. When a normalization
// constant was fit, control AUCs are scaled by it before the comparison.
func FilterControl(blocks []Block, res ThresholdResult) []Block {
	var keep []Block
	for _, b := range blocks {
		auc := b.AUC
		if res.Normalized {
			auc *= res.Norm
		}
		if auc > res.Stringent {
			keep = append(keep, b)
		}
	}
	return keep
}

// gapTolerance is a tenth of the mean filtered block length.
func gapTolerance(blocks []Block) float64 {
	lengths := make([]float64, len(blocks))
	for i, b := range blocks {
		lengths[i] = float64(b.Length())
	}
	return stat.Mean(lengths, nil) / 10
}

func regionFromBlock(b Block) Region {
	return Region{
		Chrom:    b.Chrom,
		Start:    b.Start,
		End:      b.End,
		TotalAUC: b.AUC,
		Max:      b.Max,
		MaxStart: b.MaxStart,
		MaxEnd:   b.MaxEnd,
	}
}

// MergeBlocks collapses runs of filtered blocks whose gaps are within the
// data-derived tolerance into regions, in a single left-to-right sweep, then
// drops any region overlapping a filtered control block. Blocks must be in
// position order, which segmentation and filtering preserve. An empty input
// yields an empty result.
func MergeBlocks(blocks, ctrl []Block) []Region {
	if len(blocks) == 0 {
		return nil
	}
	tol := gapTolerance(blocks)

	var regions []Region
	cur := regionFromBlock(blocks[0])
	for _, b := range blocks[1:] {
		if b.Chrom == cur.Chrom && float64(b.Start-cur.End) <= tol {
			cur.End = b.End
			cur.TotalAUC += b.AUC
			// First block attaining the overall max wins ties.
			if b.Max > cur.Max {
				cur.Max = b.Max
				cur.MaxStart = b.MaxStart
				cur.MaxEnd = b.MaxEnd
			}
		} else {
			regions = append(regions, cur)
			cur = regionFromBlock(b)
		}
	}
	regions = append(regions, cur)

	if len(ctrl) > 0 {
		regions = excludeOverlapping(regions, ctrl)
	}
	return regions
}

// excludeOverlapping drops regions sharing any base with a control block.
func excludeOverlapping(regions []Region, ctrl []Block) []Region {
	byChrom := map[string][]Block{}
	for _, b := range ctrl {
		byChrom[b.Chrom] = append(byChrom[b.Chrom], b)
	}
	var keep []Region
	for _, r := range regions {
		if !overlapsAny(r, byChrom[r.Chrom]) {
			keep = append(keep, r)
		}
	}
	return keep
}

func overlapsAny(r Region, blocks []Block) bool {
	// blocks are position sorted; find the first one ending past the
	// region start and check it against the region end.
	i := sort.Search(len(blocks), func(i int) bool { return blocks[i].End > r.Start })
	return i < len(blocks) && blocks[i].Start < r.End
}

// WriteRegions writes the final six-column table: chrom, start, end, total
// AUC, max signal and the max-signal envelope, tab separated with no
// header.
func WriteRegions(path string, regions []Region) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range regions {
		fmt.Fprintf(w, "%s\t%d\t%d\t%g\t%g\t%s:%d-%d\n",
			r.Chrom, r.Start, r.End, r.TotalAUC, r.Max, r.Chrom, r.MaxStart, r.MaxEnd)
	}
	return w.Flush()
}
