/*

Hposim tests whether groups of probands who share a candidate gene
also share their phenotypes more than expected by chance. Phenotypes
are Human Phenotype Ontology (HPO) terms; similarity between two terms
is the information content of their most informative common ancestor,
probands are compared with the geometric mean over all term pairs, and
a gene's group score is compared against a Monte Carlo null of
same-size random proband groups.

The basic usage of hposim looks like this:

	hposim --ontology hp.obo --genes genes.json --phenotypes phenotypes.json

, this will print a tab-separated table of gene symbol, observed group
score and empirical p-value.

To see all the options run:

	hposim --help

*/
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/op/go-logging"

	"github.com/clinphen/hposim/ontology"
	"github.com/clinphen/hposim/perm"
	"github.com/clinphen/hposim/pheno"
	"github.com/clinphen/hposim/sim"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = fmt.Sprintf("branch: %s, revision: %s, build time: %s", gitbranch, githash, buildstamp)

// Logger settings.
var log = logging.MustGetLogger("hposim")
var formatter = logging.MustStringFormatter(`%{message}`)

// getScoreModeFromString returns a score mode constant from sim from
// a string.
func getScoreModeFromString(scoreModeString string) (sim.ScoreMode, error) {
	switch scoreModeString {
	case "geomean":
		return sim.ScoreGeoMean, nil
	case "max":
		return sim.ScoreMax, nil
	case "simgic":
		return sim.ScoreSimGIC, nil
	}
	return sim.ScoreGeoMean, fmt.Errorf("Unknown score mode: %s", scoreModeString)
}

// command-line options
var (
	// application
	app = kingpin.New("hposim", "phenotype similarity significance testing").Version(version)

	// input files
	ontologyFileName   = app.Flag("ontology", "HPO ontology in obo format").Required().ExistingFile()
	genesFileName      = app.Flag("genes", "JSON file listing probands per gene").Required().ExistingFile()
	phenotypesFileName = app.Flag("phenotypes", "JSON file listing HPO terms per proband").Required().ExistingFile()

	// analysis parameters
	iterations = app.Flag("iter", "number of permutations per null distribution").Default("10000").Int()
	scoreMode  = app.Flag("score", "proband pair combining rule "+
		"(geomean: geometric mean over all term pairs, "+
		"max: best matching term pair, "+
		"simgic: induced ancestor graph overlap"+
		")").Default("geomean").Enum("geomean", "max", "simgic")
	permute = app.Flag("permute", "randomly reassign probands to genes before the analysis; "+
		"p-values should then follow the uniform distribution").Bool()
	minSupport = app.Flag("minsupport", "warn about terms observed in fewer probands than this").Default("5").Int()

	// technical
	nThreads      = app.Flag("nt", "number of threads to use").Int()
	seed          = app.Flag("seed", "random generator seed, default time based").Default("-1").Int64()
	cpuProfile    = app.Flag("cpuprofile", "write cpu profile to file").String()
	cacheFileName = app.Flag("cache", "bolt database caching null distributions between runs").String()

	// input/output
	outLogF  = app.Flag("log", "write log to a file").String()
	outF     = app.Flag("out", "write the result table to a file").String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")
	jsonF = app.Flag("json", "write json output to a file").String()
)

func run() (summary *RunSummary) {
	startTime := time.Now()
	summary = &RunSummary{}

	oboFile, err := os.Open(*ontologyFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer oboFile.Close()

	graph, err := ontology.ParseOBO(oboFile)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("Read ontology of %d terms, root %s", graph.NTerms(), graph.Root())

	phenotypesFile, err := os.Open(*phenotypesFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer phenotypesFile.Close()

	phenotypes, err := pheno.LoadPhenotypes(phenotypesFile, graph)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("Read phenotypes for %d probands, %d with at least one term",
		len(phenotypes), len(phenotypes.Phenotyped()))

	genesFile, err := os.Open(*genesFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer genesFile.Close()

	genes, err := pheno.LoadGenes(genesFile)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("Read proband lists for %d genes", len(genes))

	if *permute {
		log.Notice("Permuting proband assignments across genes")
		rng := rand.New(rand.NewSource(*seed))
		genes, err = perm.PermuteProbands(genes, rng)
		if err != nil {
			log.Fatal(err)
		}
	}

	model, err := sim.NewModel(graph, phenotypes)
	if err != nil {
		log.Fatal(err)
	}

	mode, err := getScoreModeFromString(*scoreMode)
	if err != nil {
		log.Fatal(err)
	}
	model.SetScoreMode(mode)
	log.Infof("Using %s score over %d reference probands", mode, model.Total())

	if low := model.LowSupport(*minSupport); len(low) > 0 {
		log.Warningf("%d terms are observed in fewer than %d probands; "+
			"their information content estimates are unreliable", len(low), *minSupport)
		log.Debugf("low support terms: %v", low)
	}

	settings := newSimSettings()
	simulator, cache, closeCache, err := settings.create(model, phenotypes)
	if err != nil {
		log.Fatal(err)
	}
	defer closeCache()

	var out io.Writer = os.Stdout
	if *outF != "" {
		f, err := os.Create(*outF)
		if err != nil {
			log.Fatal("Error creating output file:", err)
		}
		defer f.Close()
		out = f
	}

	fmt.Fprintf(out, "hgnc\tscore\thpo_similarity_p_value\n")

	for _, gene := range genes.GeneSymbols() {
		group := phenotypes.Group(genes[gene])
		if len(group) < 2 {
			log.Infof("skipping %s: %d phenotyped probands", gene, len(group))
			continue
		}

		observed, err := model.GroupScore(group)
		if err != nil {
			log.Fatalf("scoring %s: %v", gene, err)
		}

		dist, err := simulateWithCache(simulator, cache, settings, len(group))
		if err != nil {
			log.Fatalf("simulating null for %s: %v", gene, err)
		}

		p := perm.PValue(observed, dist)
		fmt.Fprintf(out, "%s\t%g\t%g\n", gene, observed, p)

		summary.Results = append(summary.Results, GeneResult{
			Gene:       gene,
			NProbands:  len(group),
			Score:      observed,
			PValue:     p,
			Resolution: perm.Resolution(dist),
		})
	}

	endTime := time.Now()

	deltaT := endTime.Sub(startTime)
	log.Noticef("Running time: %v", deltaT)
	summary.Time = deltaT.Seconds()

	return
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	// logging
	logging.SetFormatter(formatter)

	var backend *logging.LogBackend
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		defer f.Close()
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	for _, pkg := range []string{"hposim", "ontology", "pheno", "sim", "perm", "checkpoint"} {
		logging.SetLevel(level, pkg)
	}

	// print revision
	log.Info(version)

	// print commandline
	log.Info("Command line:", os.Args)

	if *seed == -1 {
		*seed = time.Now().UnixNano()
		log.Debug("Random seed from time")
	}
	log.Infof("Random seed=%v", *seed)

	runtime.GOMAXPROCS(*nThreads)

	effectiveNThreads := runtime.GOMAXPROCS(0)
	log.Infof("Using threads: %d.\n", effectiveNThreads)

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	summary := run()
	summary.NThreads = effectiveNThreads
	summary.Version = version
	summary.CommandLine = os.Args
	summary.Seed = *seed
	summary.Iterations = *iterations

	// output summary in json format
	if *jsonF != "" {
		j, err := json.Marshal(summary)
		if err != nil {
			log.Error(err)
		} else {
			log.Debug(string(j))
			f, err := os.Create(*jsonF)
			if err != nil {
				log.Error("Error creating json output file:", err)
			} else {
				f.Write(j)
				f.Close()
			}
		}
	}
}
