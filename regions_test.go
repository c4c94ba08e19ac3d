package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFilterBlocksModeSelection(t *testing.T) {
	res := ThresholdResult{Stringent: 10, Relaxed: 5, Secondary: 1}
	blocks := []Block{
		mkBlock("chr1", 0, 10, 6, 2),
		mkBlock("chr1", 20, 30, 12, 2),
		mkBlock("chr1", 40, 50, 12, 0.5),
	}

	stringent := FilterBlocks(blocks, res, ModeStringent)
	if len(stringent) != 1 || stringent[0].Start != 20 {
		t.Error("stringent mode: expected only the tall AUC-12 block, got", stringent)
	}

	relaxed := FilterBlocks(blocks, res, ModeRelaxed)
	if len(relaxed) != 2 {
		t.Error("relaxed mode: expected two blocks, got", relaxed)
	}
}

func TestFilterBlocksCutoffsAreStrict(t *testing.T) {
	res := ThresholdResult{Stringent: 10, Relaxed: 10, Secondary: 2}
	// One block sits exactly on the AUC cutoff, the other exactly on the
	// height floor.
	blocks := []Block{
		mkBlock("chr1", 0, 10, 10, 5),
		mkBlock("chr1", 20, 30, 11, 2),
	}
	if got := FilterBlocks(blocks, res, ModeStringent); len(got) != 0 {
		t.Error("boundary values must not pass the strict filter, got", got)
	}
}

func TestFilterControlUsesStringentCutoff(t *testing.T) {
	res := ThresholdResult{Stringent: 10, Relaxed: 2, Secondary: 100}
	blocks := []Block{
		mkBlock("chr1", 0, 10, 11, 0.1),
		mkBlock("chr1", 20, 30, 5, 0.1),
	}
	// The secondary height floor and the chosen mode do not apply to the
	// control side.
	got := FilterControl(blocks, res)
	if len(got) != 1 || got[0].AUC != 11 {
		t.Error("expected only the AUC-11 block, got", got)
	}
}

func TestFilterControlScaling(t *testing.T) {
	res := ThresholdResult{Stringent: 10, Norm: 2, Normalized: true}
	// The AUC-6 block scales to 12 and passes, the AUC-4 block scales to 8
	// and does not.
	blocks := []Block{
		mkBlock("chr1", 0, 10, 6, 1),
		mkBlock("chr1", 20, 30, 4, 1),
	}
	got := FilterControl(blocks, res)
	if len(got) != 1 || got[0].AUC != 6 {
		t.Error("expected only the block scaling past the cutoff, got", got)
	}
}

func TestMergeWithinTolerance(t *testing.T) {
	blocks := []Block{
		mkBlock("chr1", 100, 200, 10, 2),
		mkBlock("chr1", 205, 300, 20, 4),
		mkBlock("chr1", 500, 600, 30, 6),
	}
	// Mean length is 98.3, so the tolerance is 9.83: the 5-base gap merges,
	// the 200-base gap does not.
	regions := MergeBlocks(blocks, nil)
	if len(regions) != 2 {
		t.Fatal("expected two regions, got", len(regions))
	}
	r := regions[0]
	if r.Start != 100 || r.End != 300 {
		t.Errorf("expected merged region [100,300), got [%d,%d)", r.Start, r.End)
	}
	if r.TotalAUC != 30 || r.Max != 4 {
		t.Error("wrong aggregates:", r.TotalAUC, r.Max)
	}
	if regions[1].Start != 500 || regions[1].TotalAUC != 30 {
		t.Error("wrong second region:", regions[1])
	}
}

func TestMergeDoesNotCrossChromosomes(t *testing.T) {
	blocks := []Block{
		mkBlock("chr1", 100, 200, 10, 2),
		mkBlock("chr2", 200, 300, 10, 2),
	}
	if regions := MergeBlocks(blocks, nil); len(regions) != 2 {
		t.Error("expected two regions, got", len(regions))
	}
}

func TestMergeMaxRegionTieBreak(t *testing.T) {
	a := mkBlock("chr1", 100, 200, 10, 5)
	a.MaxStart, a.MaxEnd = 120, 140
	b := mkBlock("chr1", 200, 300, 10, 5)
	b.MaxStart, b.MaxEnd = 250, 260

	regions := MergeBlocks([]Block{a, b}, nil)
	if len(regions) != 1 {
		t.Fatal("expected one region, got", len(regions))
	}
	// On a tie the first block in position order keeps the max region.
	if r := regions[0]; r.MaxStart != 120 || r.MaxEnd != 140 {
		t.Errorf("expected envelope [120,140), got [%d,%d)", r.MaxStart, r.MaxEnd)
	}
}

func TestMergeEmptyInput(t *testing.T) {
	if regions := MergeBlocks(nil, nil); len(regions) != 0 {
		t.Error("expected no regions, got", regions)
	}
}

func TestControlExclusion(t *testing.T) {
	blocks := []Block{
		mkBlock("chr1", 100, 200, 10, 2),
		mkBlock("chr1", 500, 600, 30, 6),
	}
	// One shared base is enough to drop a region; touching end-to-start is
	// not an overlap under half-open coordinates.
	ctrl := []Block{mkBlock("chr1", 199, 300, 5, 1)}
	regions := MergeBlocks(blocks, ctrl)
	if len(regions) != 1 || regions[0].Start != 500 {
		t.Fatal("expected only the second region, got", regions)
	}

	ctrl = []Block{mkBlock("chr1", 200, 300, 5, 1)}
	regions = MergeBlocks(blocks, ctrl)
	if len(regions) != 2 {
		t.Error("touching control block must not exclude, got", regions)
	}

	ctrl = []Block{mkBlock("chr2", 100, 200, 5, 1)}
	regions = MergeBlocks(blocks, ctrl)
	if len(regions) != 2 {
		t.Error("control block on another chromosome must not exclude")
	}
}

func TestWriteRegions(t *testing.T) {
	regions := []Region{{
		Chrom:    "chr1",
		Start:    100,
		End:      300,
		TotalAUC: 50,
		Max:      8,
		MaxStart: 120,
		MaxEnd:   140,
	}}
	path := filepath.Join(t.TempDir(), "out.stringent.bed")
	if err := WriteRegions(path, regions); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "chr1\t100\t300\t50\t8\tchr1:120-140\n"
	if string(data) != want {
		t.Errorf("expected %q, got %q", want, string(data))
	}
}
