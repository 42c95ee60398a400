package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/notargets/golowmach/utils"
)

var (
	csvFile string
)

func main() {
	csvFilePtr := flag.String("csvFile", csvFile, "file containing entries of a convergence study: title, passes, dt, error")
	flag.Parse()
	csvFile = *csvFilePtr
	if len(csvFile) == 0 {
		flag.Usage()
		os.Exit(1)
	}
	fmt.Printf("Input file: %v\n", csvFile)
	f, err := os.Open(csvFile)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	studies, err := readCSV(f)
	if err != nil {
		panic(err)
	}
	for _, key := range sortedTitles(studies) {
		cs := studies[key]
		fmt.Printf("Title = %s, SDC passes = %d\n", cs.title, cs.passes)
		order, err := cs.Orders()
		if err != nil {
			fmt.Printf("\t%v\n", err)
			continue
		}
		for i := range cs.dt {
			if i == 0 {
				fmt.Printf("%12.5e, %12.5e\n", cs.dt[i], cs.err[i])
				continue
			}
			fmt.Printf("%12.5e, %12.5e, order = %5.2f\n", cs.dt[i], cs.err[i], order[i-1])
		}
	}
}

type ConvergenceStudy struct {
	title   string
	passes  int
	dt, err []float64
}

func NewConvergenceStudy(title string, passes int) *ConvergenceStudy {
	return &ConvergenceStudy{
		title:  title,
		passes: passes,
	}
}

func (cs *ConvergenceStudy) Add(dt, err float64) {
	cs.dt = append(cs.dt, dt)
	cs.err = append(cs.err, err)
}

// Orders sorts the samples from coarse to fine dt and returns the observed order of each refinement
func (cs *ConvergenceStudy) Orders() (order []float64, err error) {
	idx := make([]int, len(cs.dt))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return cs.dt[idx[a]] > cs.dt[idx[b]] })
	dt, e := make([]float64, len(idx)), make([]float64, len(idx))
	for i, k := range idx {
		dt[i], e[i] = cs.dt[k], cs.err[k]
	}
	cs.dt, cs.err = dt, e
	return utils.ObservedOrder(cs.dt, cs.err)
}

func sortedTitles(studies map[string]*ConvergenceStudy) (keys []string) {
	for k := range studies {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return
}

// readCSV groups the rows by title and SDC pass count; the first row is a header
func readCSV(rd io.Reader) (studies map[string]*ConvergenceStudy, err error) {
	var (
		records [][]string
		ok      bool
		cs      *ConvergenceStudy
	)
	studies = make(map[string]*ConvergenceStudy)
	r := csv.NewReader(bufio.NewReader(rd))
	r.FieldsPerRecord = -1
	if records, err = r.ReadAll(); err != nil {
		return
	}
	for i, rec := range records {
		if i == 0 {
			continue
		}
		if len(rec) < 4 {
			return nil, fmt.Errorf("line %d: need title, passes, dt, error, have %d fields", i+1, len(rec))
		}
		var (
			passes  int
			dt, e   float64
			title   = rec[0]
			passtxt = rec[1]
		)
		if passes, err = strconv.Atoi(passtxt); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if dt, err = strconv.ParseFloat(rec[2], 64); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if e, err = strconv.ParseFloat(rec[3], 64); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		combTitle := title + passtxt
		if cs, ok = studies[combTitle]; !ok {
			cs = NewConvergenceStudy(title, passes)
			studies[combTitle] = cs
		}
		cs.Add(dt, e)
	}
	return
}
