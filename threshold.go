package main

import (
	"math"
	"os"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// minBlocks is the smallest experimental block population a threshold curve
// can be fit on.
const minBlocks = 2

// ThresholdResult holds the cutoffs derived once per run from the block AUC
// distributions. It is immutable after construction.
type ThresholdResult struct {
	// Stringent is the AUC cutoff at the peak of the threshold curve,
	// Relaxed the cutoff at its knee. In fraction mode the two coincide.
	Stringent float64
	Relaxed   float64
	// Secondary is an independent per-base height floor; a block must clear
	// both its primary AUC cutoff and Secondary to survive filtering.
	Secondary float64
	// StringentFDR and RelaxedFDR are the empirical false discovery rates
	// at the two cutoffs. NaN in fraction mode.
	StringentFDR float64
	RelaxedFDR   float64
	// Norm is the experimental/control total-AUC ratio applied to control
	// AUC values; 1 unless Normalized is set.
	Norm       float64
	Normalized bool
	// Curve is the fitted threshold curve, present in control mode only.
	Curve ThresholdCurve
}

// ThresholdCurve records the candidate cutoffs examined in control mode
// together with the net retained signal and empirical FDR at each.
type ThresholdCurve struct {
	Cutoffs   []float64
	NetSignal []float64
	FDR       []float64
}

// Write dumps the curve as CSV with columns cutoff, net_signal, fdr.
func (c ThresholdCurve) Write(path string) error {
	df := dataframe.New(
		series.New(c.Cutoffs, series.Float, "cutoff"),
		series.New(c.NetSignal, series.Float, "net_signal"),
		series.New(c.FDR, series.Float, "fdr"),
	)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return df.WriteCSV(f)
}

// aucDist is a sorted value population with suffix sums for retained-signal
// and survivor-count queries.
type aucDist struct {
	vals   []float64 // ascending
	suffix []float64 // suffix[i] = sum(vals[i:]), len(vals)+1 entries
}

func newAUCDist(vals []float64) aucDist {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	suffix := make([]float64, len(sorted)+1)
	for i := len(sorted) - 1; i >= 0; i-- {
		suffix[i] = suffix[i+1] + sorted[i]
	}
	return aucDist{vals: sorted, suffix: suffix}
}

// retained is the total signal of values >= c.
func (d aucDist) retained(c float64) float64 {
	i := sort.SearchFloat64s(d.vals, c)
	return d.suffix[i]
}

// above counts values strictly greater than c.
func (d aucDist) above(c float64) int {
	i := sort.Search(len(d.vals), func(i int) bool { return d.vals[i] > c })
	return len(d.vals) - i
}

// ecdf is the fraction of values at or below c.
func (d aucDist) ecdf(c float64) float64 {
	i := sort.Search(len(d.vals), func(i int) bool { return d.vals[i] > c })
	return float64(i) / float64(len(d.vals))
}

// empiricalFDR estimates the false discovery rate at cutoff c as the ratio
// of control to experimental survivor counts, clamped to [0,1]. An empty
// experimental survivor set yields 0.
func empiricalFDR(exp, ctrl aucDist, c float64) float64 {
	e := exp.above(c)
	if e == 0 {
		return 0
	}
	fdr := float64(ctrl.above(c)) / float64(e)
	return math.Min(fdr, 1)
}

// kneeIndex locates the knee of the curve (xs, ys) as the point of maximum
// perpendicular distance from the chord joining its endpoints.
func kneeIndex(xs, ys []float64) int {
	n := len(xs)
	if n < 3 {
		return 0
	}
	dx := xs[n-1] - xs[0]
	dy := ys[n-1] - ys[0]
	norm := math.Hypot(dx, dy)
	if norm == 0 {
		return 0
	}
	best := 0.0
	bestIdx := 0
	for i := range xs {
		d := math.Abs(dy*(xs[i]-xs[0])-dx*(ys[i]-ys[0])) / norm
		if d > best {
			best = d
			bestIdx = i
		}
	}
	return bestIdx
}

func aucValues(blocks []Block) []float64 {
	vals := make([]float64, len(blocks))
	for i, b := range blocks {
		vals[i] = b.AUC
	}
	return vals
}

func maxValues(blocks []Block) []float64 {
	vals := make([]float64, len(blocks))
	for i, b := range blocks {
		vals[i] = b.Max
	}
	return vals
}

func uniqueSorted(vals []float64) []float64 {
	sort.Float64s(vals)
	out := vals[:1]
	for _, v := range vals[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// ModelControl fits the AUC threshold curve by comparing the experimental
// block population against a control population. Candidate cutoffs are the
// observed AUC values of both populations; at each cutoff the curve holds
// the experimental signal retained net of the retained control signal. The
// stringent cutoff sits at the first global maximum of the curve and the
// relaxed cutoff at its knee. When normalize is set the control AUCs are
// first scaled by the total-signal ratio of the two tracks.
//
// Control blocks on chromosomes the experimental track never covers cannot
// inform the fit; they are dropped and reported through the returned
// ControlMismatchError, which callers should treat as a warning.
func ModelControl(exp, ctrl []Block, normalize bool) (ThresholdResult, *ControlMismatchError, error) {
	res := ThresholdResult{Norm: 1}
	if len(exp) < minBlocks {
		return res, nil, &InsufficientDataError{Blocks: len(exp), Min: minBlocks}
	}

	chroms := map[string]bool{}
	for _, b := range exp {
		chroms[b.Chrom] = true
	}
	var kept []Block
	var missing []string
	dropped := map[string]bool{}
	for _, b := range ctrl {
		if !chroms[b.Chrom] {
			if !dropped[b.Chrom] {
				dropped[b.Chrom] = true
				missing = append(missing, b.Chrom)
			}
			continue
		}
		kept = append(kept, b)
	}
	var mismatch *ControlMismatchError
	if len(missing) > 0 {
		mismatch = &ControlMismatchError{Chroms: missing}
	}
	if len(kept) == 0 {
		return res, mismatch, &InsufficientDataError{Blocks: 0, Min: 1}
	}

	expAUC := aucValues(exp)
	ctrlAUC := aucValues(kept)
	if normalize {
		res.Norm = floats.Sum(expAUC) / floats.Sum(ctrlAUC)
		res.Normalized = true
		floats.Scale(res.Norm, ctrlAUC)
	}

	expDist := newAUCDist(expAUC)
	ctrlDist := newAUCDist(ctrlAUC)

	grid := uniqueSorted(append(append([]float64{}, expAUC...), ctrlAUC...))
	curve := make([]float64, len(grid))
	fdr := make([]float64, len(grid))
	for i, c := range grid {
		curve[i] = expDist.retained(c) - ctrlDist.retained(c)
		fdr[i] = empiricalFDR(expDist, ctrlDist, c)
	}

	peak := floats.MaxIdx(curve)
	knee := kneeIndex(grid[:peak+1], curve[:peak+1])

	res.Stringent = grid[peak]
	res.Relaxed = grid[knee]
	res.StringentFDR = fdr[peak]
	res.RelaxedFDR = fdr[knee]

	// Height floor: the max-signal quantile matching the stringent
	// cutoff's position in the experimental AUC distribution.
	maxes := maxValues(exp)
	sort.Float64s(maxes)
	res.Secondary = stat.Quantile(expDist.ecdf(res.Stringent), stat.Empirical, maxes, nil)

	res.Curve = ThresholdCurve{Cutoffs: grid, NetSignal: curve, FDR: fdr}
	return res, mismatch, nil
}

// ModelFraction sets both cutoffs so that the blocks carrying the top f
// fraction of total experimental signal survive the strict AUC filter. The
// cutoffs are nudged just below the boundary block's values so the boundary
// itself passes; f=1 therefore retains every block. FDR estimates are not
// available without a control and are reported as NaN.
func ModelFraction(exp []Block, f float64) (ThresholdResult, error) {
	res := ThresholdResult{Norm: 1, StringentFDR: math.NaN(), RelaxedFDR: math.NaN()}
	if f <= 0 || f > 1 {
		return res, &InvalidFractionError{Value: f}
	}
	if len(exp) < minBlocks {
		return res, &InsufficientDataError{Blocks: len(exp), Min: minBlocks}
	}

	order := append([]Block(nil), exp...)
	sort.Slice(order, func(i, j int) bool { return order[i].AUC > order[j].AUC })

	total := floats.Sum(aucValues(order))
	target := f * total
	cum := 0.0
	boundary := order[len(order)-1]
	for _, b := range order {
		cum += b.AUC
		if cum >= target {
			boundary = b
			break
		}
	}

	cut := math.Nextafter(boundary.AUC, math.Inf(-1))
	res.Stringent = cut
	res.Relaxed = cut

	// The height floor must not evict any block already inside the top-f
	// set, so it sits just below the lowest max among the survivors.
	floor := boundary.Max
	for _, b := range exp {
		if b.AUC > cut && b.Max < floor {
			floor = b.Max
		}
	}
	res.Secondary = math.Nextafter(floor, math.Inf(-1))
	return res, nil
}
