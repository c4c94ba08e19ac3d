package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/akamensky/argparse"
	gn "github.com/pbenner/gonetics"
	"github.com/sirupsen/logrus"
)

const seacr_version = "1.0.0"

// Metrics summarizes a run and is written next to the peaks file.
type Metrics struct {
	Version      string  `json:"seacr_version"`
	Date         string  `json:"date"`
	Elapsed      string  `json:"elapsed"`
	Prefix       string  `json:"prefix"`
	Command      string  `json:"command"`
	Mode         string  `json:"mode"`
	Stringent    float64 `json:"stringent_cutoff"`
	Relaxed      float64 `json:"relaxed_cutoff"`
	Secondary    float64 `json:"secondary_cutoff"`
	StringentFDR string  `json:"stringent_fdr"`
	RelaxedFDR   string  `json:"relaxed_fdr"`
	Norm         string  `json:"norm_constant"`
	Regions      int     `json:"region_counts"`
}

func (m *Metrics) Log(op string) {
	resp, err := json.MarshalIndent(m, "", "\t")
	if err != nil {
		logrus.Errorln(err)
		os.Exit(1)
	}

	f, err := os.Create(op + "_seacr.json")
	if err != nil {
		logrus.Errorln(err)
		os.Exit(1)
	}
	defer f.Close()

	f.WriteString(string(resp))
	f.WriteString("\n")
}

func fatal(err error) {
	logrus.Errorln(err)
	os.Exit(1)
}

func fdrString(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func main() {

	startTime := time.Now()

	parser := argparse.NewParser("SEACR", `SEACR (Sparse Enrichment Analysis for CUT&RUN) calls enriched regions from a sparse bedgraph signal track. Enrichment is measured per contiguous non-zero signal block; an AUC cutoff is fit empirically against a control (IgG) track, or taken as a top fraction of total signal when a numeric threshold is given instead of a control.`)
	bedgraph := parser.String("b", "bedgraph", &argparse.Options{Help: "Experimental signal track in bedgraph format (optionally gzipped)"})
	control := parser.String("c", "control", &argparse.Options{Help: "Control signal track in bedgraph format, or a numeric AUC fraction in (0,1] to use in place of a control"})
	norm := parser.Flag("n", "norm", &argparse.Options{Help: "Normalize the control track to the experimental track by total signal"})
	mode := parser.Selector("m", "mode", []string{ModeStringent, ModeRelaxed}, &argparse.Options{Help: "Height mode: stringent uses the threshold curve peak, relaxed its knee", Default: ModeStringent})
	outprefix := parser.String("o", "output", &argparse.Options{Help: "Output prefix to write enriched regions and metrics file", Default: "seacr"})
	curveOut := parser.Flag("", "curve", &argparse.Options{Help: "Write the fitted threshold curve to <prefix>.curve.csv"})
	verbose := parser.Flag("", "verbose", &argparse.Options{Help: "Run in verbose mode."})
	version := parser.Flag("v", "version", &argparse.Options{Help: "Print the current SEACR version"})
	err := parser.Parse(os.Args)

	// parse flags --------------------------------------------------------------------------------

	if *version == true {
		fmt.Println("SEACR version:", seacr_version)
		os.Exit(0)
	}

	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	if *bedgraph == "" || *control == "" {
		fmt.Println(parser.Help(nil))
		os.Exit(1)
	}

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	// The control argument is dual typed: a value that parses as a number
	// selects fraction mode, anything else is read as a track path.
	fraction := 0.0
	fractionMode := false
	if f, err := strconv.ParseFloat(*control, 64); err == nil {
		fraction = f
		fractionMode = true
	}
	if fractionMode {
		if fraction <= 0 || fraction > 1 {
			fatal(&InvalidFractionError{Value: fraction})
		}
		if *norm {
			logrus.Warnln("--norm has no effect without a control track")
		}
	}

	// import and segment tracks ------------------------------------------------------------------

	var (
		expBlocks  []Block
		ctrlBlocks []Block
		expErr     error
		ctrlErr    error
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var track gn.GRanges
		if track, expErr = ImportTrack(*bedgraph); expErr == nil {
			expBlocks = SegmentTrack(track)
		}
	}()
	if !fractionMode {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var track gn.GRanges
			if track, ctrlErr = ImportTrack(*control); ctrlErr == nil {
				ctrlBlocks = SegmentTrack(track)
			}
		}()
	}
	wg.Wait()

	if expErr != nil {
		fatal(expErr)
	}
	if ctrlErr != nil {
		fatal(ctrlErr)
	}

	logrus.Debugf("segmented %d experimental and %d control blocks", len(expBlocks), len(ctrlBlocks))

	// model threshold ----------------------------------------------------------------------------

	var res ThresholdResult
	if fractionMode {
		res, err = ModelFraction(expBlocks, fraction)
		if err != nil {
			fatal(err)
		}
	} else {
		var mismatch *ControlMismatchError
		res, mismatch, err = ModelControl(expBlocks, ctrlBlocks, *norm)
		if mismatch != nil {
			logrus.Warnln(mismatch)
		}
		if err != nil {
			fatal(err)
		}
	}

	logrus.Infof("stringent cutoff %g (FDR %s), relaxed cutoff %g (FDR %s), height floor %g",
		res.Stringent, fdrString(res.StringentFDR), res.Relaxed, fdrString(res.RelaxedFDR), res.Secondary)
	if res.Normalized {
		logrus.Infof("control normalization constant %g", res.Norm)
	}

	if *curveOut {
		if fractionMode {
			logrus.Warnln("--curve has no effect without a control track")
		} else if err := res.Curve.Write(*outprefix + ".curve.csv"); err != nil {
			fatal(err)
		}
	}

	// filter and merge ---------------------------------------------------------------------------

	keep := FilterBlocks(expBlocks, res, *mode)
	var ctrlKeep []Block
	if !fractionMode {
		ctrlKeep = FilterControl(ctrlBlocks, res)
	}
	logrus.Debugf("%d experimental and %d control blocks pass the cutoffs", len(keep), len(ctrlKeep))

	regions := MergeBlocks(keep, ctrlKeep)
	if len(regions) == 0 {
		logrus.Warnln("no enriched regions found")
	}

	outfile := fmt.Sprintf("%s.%s.bed", *outprefix, *mode)
	if err := WriteRegions(outfile, regions); err != nil {
		fatal(err)
	}

	// write output metrics -----------------------------------------------------------------------

	normString := "n/a"
	if res.Normalized {
		normString = strconv.FormatFloat(res.Norm, 'g', -1, 64)
	}
	metrics := &Metrics{
		Version:      seacr_version,
		Date:         time.Now().Format("2006-01-02 3:4:5 PM"),
		Elapsed:      time.Since(startTime).String(),
		Prefix:       *outprefix,
		Command:      strings.Join(os.Args, " "),
		Mode:         *mode,
		Stringent:    res.Stringent,
		Relaxed:      res.Relaxed,
		Secondary:    res.Secondary,
		StringentFDR: fdrString(res.StringentFDR),
		RelaxedFDR:   fdrString(res.RelaxedFDR),
		Norm:         normString,
		Regions:      len(regions),
	}
	metrics.Log(*outprefix)
}
