// Package reliability implements the high-reliability admission filter: an
// optional layer in front of commit that gates new versions behind an
// N-of-N matching-payload check across consecutive finalized transactions.
package reliability

import (
	"bytes"
	"crypto/sha256"
	"sync"

	"github.com/cachegrid/assetcache/pkg/key"
	"github.com/cachegrid/assetcache/pkg/transaction"
)

// Filter maintains per-(guid, hash) tallies of observed payload hashes per
// kind and admits a version only once the same manifest has been observed
// threshold+1 times consecutively with byte-identical payloads.
type Filter struct {
	mu        sync.Mutex
	threshold int
	records   map[key.VersionKey]*record
}

type record struct {
	manifest map[key.Kind]bool
	digest   map[key.Kind][32]byte
	files    []transaction.CommittedFile
	matches  int
	locked   bool
}

// New creates a filter that admits a version after threshold additional
// matching observations beyond the first (i.e. the (threshold+1)-th
// consecutive matching finalize admits it).
func New(threshold int) *Filter {
	return &Filter{
		threshold: threshold,
		records:   make(map[key.VersionKey]*record),
	}
}

// Reconfigure changes the admission threshold without discarding existing
// records. No engine's Init calls it.
func (f *Filter) Reconfigure(threshold int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threshold = threshold
}

// Locked reports whether v has already been admitted and locked.
func (f *Filter) Locked(v key.VersionKey) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[v]
	return ok && rec.locked
}

// Observe presents a candidate finalized transaction's manifest and payload
// to the filter. It returns admit=true and the payload to commit exactly
// when this observation is the (threshold+1)-th consecutive match; every
// other case returns admit=false and the engine must not touch storage.
//
// A transaction for an already-locked version is discarded with no state
// change: further uploads do not alter the stored bytes.
func (f *Filter) Observe(v key.VersionKey, manifest []key.Kind, files []transaction.CommittedFile) (admit bool, commit []transaction.CommittedFile) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, exists := f.records[v]
	if exists && rec.locked {
		return false, nil
	}

	manifestSet := toSet(manifest)
	digests := digestsOf(files)

	if !exists {
		rec = &record{
			manifest: manifestSet,
			digest:   digests,
			files:    cloneFiles(files),
			matches:  1,
		}
		f.records[v] = rec
	} else if !setsEqual(rec.manifest, manifestSet) || !digestsEqual(rec.digest, digests) {
		rec.manifest = manifestSet
		rec.digest = digests
		rec.files = cloneFiles(files)
		rec.matches = 1
	} else {
		rec.matches++
	}

	if rec.matches > f.threshold {
		rec.locked = true
		return true, cloneFiles(rec.files)
	}

	return false, nil
}

func toSet(manifest []key.Kind) map[key.Kind]bool {
	set := make(map[key.Kind]bool, len(manifest))
	for _, k := range manifest {
		set[k] = true
	}
	return set
}

func setsEqual(a, b map[key.Kind]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func digestsOf(files []transaction.CommittedFile) map[key.Kind][32]byte {
	digests := make(map[key.Kind][32]byte, len(files))
	for _, f := range files {
		digests[f.Kind] = sha256.Sum256(f.Data)
	}
	return digests
}

func digestsEqual(a, b map[key.Kind][32]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		ov, ok := b[k]
		if !ok || !bytes.Equal(v[:], ov[:]) {
			return false
		}
	}
	return true
}

func cloneFiles(files []transaction.CommittedFile) []transaction.CommittedFile {
	out := make([]transaction.CommittedFile, len(files))
	for i, f := range files {
		data := make([]byte, len(f.Data))
		copy(data, f.Data)
		out[i] = transaction.CommittedFile{Kind: f.Kind, Data: data}
	}
	return out
}
