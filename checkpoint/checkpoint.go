// checkpoint persists simulated null distributions between runs.
//
// Simulating a null distribution is by far the most expensive part of
// an analysis, and every gene with the same number of probands shares
// one distribution. The cache keys a distribution by group size,
// permutation count, seed and score mode, so a cached entry is only
// reused when it would be bit-identical to a fresh simulation.
package checkpoint

import (
	"encoding/json"
	"fmt"

	"github.com/op/go-logging"

	bolt "go.etcd.io/bbolt"
)

// log is the global logging variable.
var log = logging.MustGetLogger("checkpoint")

// MAIN is the bucket name for all distributions.
var MAIN = []byte("null")

// NullCacheIO provides cache operations on one database.
type NullCacheIO struct {
	db *bolt.DB
}

// NewNullCacheIO creates a new NullCacheIO. A nil database disables
// the cache; all operations become no-ops.
func NewNullCacheIO(db *bolt.DB) *NullCacheIO {
	return &NullCacheIO{db: db}
}

// Key returns the cache key for a null distribution.
func Key(size, iterations int, seed int64, mode string) []byte {
	return []byte(fmt.Sprintf("size=%d;iter=%d;seed=%d;score=%s", size, iterations, seed, mode))
}

// Save stores a distribution under the given key.
func (c *NullCacheIO) Save(key []byte, dist []float64) error {
	data, err := json.Marshal(dist)
	if err != nil {
		log.Error("Error serializing null distribution", err)
		return err
	}
	err = SaveData(c.db, key, data)
	if err != nil {
		log.Error("Error saving null distribution", err)
	}
	return err
}

// Load returns the distribution stored under the given key, or nil
// when there is none.
func (c *NullCacheIO) Load(key []byte) ([]float64, error) {
	data, err := LoadData(c.db, key)
	if err != nil || data == nil {
		return nil, err
	}

	var dist []float64
	err = json.Unmarshal(data, &dist)
	if err != nil {
		return nil, err
	}
	if len(dist) == 0 {
		return nil, nil
	}

	log.Noticef("Found cached null distribution (%s, %d scores)", key, len(dist))
	return dist, nil
}

// SaveData saves values in bolt database.
func SaveData(db *bolt.DB, key []byte, data []byte) error {
	if db == nil {
		return nil
	}
	err := db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(MAIN)
		if err != nil {
			return err
		}

		return b.Put(key, data)
	})
	return err
}

// LoadData loads data from bolt database.
func LoadData(db *bolt.DB, key []byte) ([]byte, error) {
	var data []byte
	if db == nil {
		return nil, nil
	}
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(MAIN)
		if b == nil {
			return nil
		}

		v := b.Get(key)
		if v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
