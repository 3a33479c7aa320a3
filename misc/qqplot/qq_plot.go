// qq_plot creates a QQ plot of hposim p-values against the uniform
// distribution expected under the null.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

func main() {
	in := flag.String("in", "", "hposim result table (tsv)")
	out := flag.String("out", "qq.png", "output image")
	flag.Parse()

	if *in == "" {
		flag.PrintDefaults()
		os.Exit(2)
	}

	f, err := os.Open(*in)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	pvals, err := readPValues(f)
	if err != nil {
		log.Fatal(err)
	}
	if len(pvals) == 0 {
		log.Fatal("no p-values found")
	}

	pts := qqPoints(pvals)
	diag := plotter.XYs{{X: 0, Y: 0}, {X: pts[0].X, Y: pts[0].X}}

	p := plot.New()
	p.X.Label.Text = "expected -log10(p)"
	p.Y.Label.Text = "observed -log10(p)"

	err = plotutil.AddScatters(p, "genes", pts)
	if err != nil {
		panic(err)
	}
	err = plotutil.AddLines(p, "null", diag)
	if err != nil {
		panic(err)
	}

	if err := p.Save(4*vg.Inch, 4*vg.Inch, *out); err != nil {
		panic(err)
	}
	fmt.Println("wrote", *out)
}

// readPValues extracts the p-value column from an hposim result
// table.
func readPValues(r io.Reader) ([]float64, error) {
	var pvals []float64
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) != 3 || fields[0] == "hgnc" {
			continue
		}
		p, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("bad p-value for %s: %v", fields[0], err)
		}
		pvals = append(pvals, p)
	}
	return pvals, scanner.Err()
}

// qqPoints pairs sorted observed -log10 p-values with their uniform
// expectations. Exact zeros are below the permutation resolution;
// they are substituted with the smallest nonzero p-value so they
// survive the log scale.
func qqPoints(pvals []float64) plotter.XYs {
	sort.Float64s(pvals)

	minNonZero := 1.0
	for _, p := range pvals {
		if p > 0 && p < minNonZero {
			minNonZero = p
		}
	}

	n := len(pvals)
	pts := make(plotter.XYs, n)
	for i, p := range pvals {
		if p == 0 {
			p = minNonZero
		}
		pts[i].X = -math.Log10((float64(i) + 0.5) / float64(n))
		pts[i].Y = -math.Log10(p)
	}
	return pts
}
