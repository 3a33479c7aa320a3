package main

// RunSummary is storing hposim run summary information.
type RunSummary struct {
	// Version stores hposim version.
	Version string `json:"version"`
	// CommandLine is an array storing binary name and all command-line parameters.
	CommandLine []string `json:"commandLine"`
	// Seed is the seed used for random number generation initialization.
	Seed int64 `json:"seed"`
	// NThreads is the number of processes used.
	NThreads int `json:"nThreads"`
	// Iterations is the number of permutations per null distribution.
	Iterations int `json:"iterations"`
	// Time is the computations time in seconds.
	Time float64 `json:"time"`
	// Results stores the per-gene results.
	Results []GeneResult `json:"results"`
}

// GeneResult is storing the result of one gene's analysis.
type GeneResult struct {
	// Gene is the gene symbol.
	Gene string `json:"gene"`
	// NProbands is the number of phenotyped probands in the group.
	NProbands int `json:"nProbands"`
	// Score is the observed group similarity score.
	Score float64 `json:"score"`
	// PValue is the empirical p-value against the null distribution.
	PValue float64 `json:"pValue"`
	// Resolution is the smallest nonzero p-value attainable with the
	// used number of permutations; a PValue of 0 means below this.
	Resolution float64 `json:"resolution"`
}
