package main

import (
	"runtime"

	bolt "go.etcd.io/bbolt"

	"github.com/clinphen/hposim/checkpoint"
	"github.com/clinphen/hposim/perm"
	"github.com/clinphen/hposim/pheno"
	"github.com/clinphen/hposim/sim"
)

// simSettings stores settings for creation of a new null simulator.
type simSettings struct {
	iterations int
	seed       int64
	workers    int

	scoreMode string

	cacheFileName string
}

// newSimSettings creates a new simSettings from the command line
// parameters (global variables).
func newSimSettings() *simSettings {
	return &simSettings{
		iterations: *iterations,
		seed:       *seed,
		workers:    runtime.GOMAXPROCS(0),

		scoreMode: *scoreMode,

		cacheFileName: *cacheFileName,
	}
}

// create creates a simulator and, when requested, the persistent null
// distribution cache. The returned function closes the cache
// database; it is safe to call when no cache is in use.
func (s *simSettings) create(model *sim.Model, phenotypes pheno.Phenotypes) (*perm.Simulator, *checkpoint.NullCacheIO, func(), error) {
	simulator := perm.NewSimulator(model, phenotypes, s.iterations, s.seed, s.workers)

	if s.cacheFileName == "" {
		return simulator, checkpoint.NewNullCacheIO(nil), func() {}, nil
	}

	db, err := bolt.Open(s.cacheFileName, 0666, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Infof("Caching null distributions in %s", s.cacheFileName)
	return simulator, checkpoint.NewNullCacheIO(db), func() { db.Close() }, nil
}

// simulateWithCache returns the null distribution for a group size,
// preferring the persistent cache and writing back fresh simulations.
func simulateWithCache(simulator *perm.Simulator, cache *checkpoint.NullCacheIO, s *simSettings, size int) ([]float64, error) {
	key := checkpoint.Key(size, s.iterations, s.seed, s.scoreMode)

	cached, err := cache.Load(key)
	if err != nil {
		return nil, err
	}
	used := false
	if cached != nil {
		if err := simulator.Prime(size, cached); err != nil {
			// A stale or foreign entry; fall through and
			// simulate from scratch.
			log.Warningf("ignoring cached distribution: %v", err)
		} else {
			used = true
		}
	}

	dist, err := simulator.Simulate(size)
	if err != nil {
		return nil, err
	}
	if !used {
		// This also replaces any stale entry that Prime rejected.
		if err := cache.Save(key, dist); err != nil {
			return nil, err
		}
	}
	return dist, nil
}
