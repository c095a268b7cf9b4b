package gmos

import (
	"sync"
	"time"

	"github.com/samber/lo"
)

const (
	// SetupFull is the fixed charge for a full initial setup.
	SetupFull = 960 * time.Second

	// SetupReacquisition is the fixed charge for reacquiring a target
	// already observed earlier in the night.
	SetupReacquisition = 300 * time.Second

	// acquisitionDigestAtoms bounds the unbounded acquisition sequence
	// for accounting purposes: the opening atom plus one fine
	// adjustment make up one attempt.
	acquisitionDigestAtoms = 2
)

// SetupTime carries the fixed setup charges.
type SetupTime struct {
	Full          time.Duration `json:"full"`
	Reacquisition time.Duration `json:"reacquisition"`
}

// SequenceDigest summarises one sequence: the observe class, the total
// categorised time, the set of offsets visited and the atom count.
type SequenceDigest struct {
	Class     ObserveClass    `json:"class"`
	Time      CategorizedTime `json:"time"`
	Offsets   []Offset        `json:"offsets"`
	AtomCount int             `json:"atom_count"`
}

// ExecutionDigest aggregates the per observation planning summary.
type ExecutionDigest struct {
	Setup       SetupTime      `json:"setup"`
	Acquisition SequenceDigest `json:"acquisition"`
	Science     SequenceDigest `json:"science"`
}

func digestAtoms(atoms []Atom, class ObserveClass) SequenceDigest {
	total := CategorizedTime{}
	offsets := make([]Offset, 0)

	for _, a := range atoms {
		total = total.Add(a.Time())
		for _, s := range a.Steps {
			offsets = append(offsets, s.Proto.Offset)
		}
	}

	return SequenceDigest{
		Class:     class,
		Time:      total,
		Offsets:   lo.Uniq(offsets),
		AtomCount: len(atoms),
	}
}

// ComputeDigest plans both sequences as of the timestamp and summarises
// them. The science sequence is drained; the acquisition sequence,
// unbounded by design, is summarised over one attempt.
func ComputeDigest(g ExecutionConfigGenerator, timestamp time.Time) ExecutionDigest {
	acq := g.Acquisition.Generate(timestamp).Take(acquisitionDigestAtoms)
	sci := g.Science.Generate(timestamp).Collect()

	return ExecutionDigest{
		Setup:       SetupTime{Full: SetupFull, Reacquisition: SetupReacquisition},
		Acquisition: digestAtoms(acq, ClassAcquisition),
		Science:     digestAtoms(sci, ClassScience),
	}
}

// DigestCache memoises execution digests keyed by the byte exact config
// hash. The mutex gives single-writer-at-a-time semantics per key; the
// cache is advisory and a miss is never an error.
type DigestCache struct {
	mu      sync.Mutex
	entries map[ConfigHash]ExecutionDigest
}

func NewDigestCache() *DigestCache {
	return &DigestCache{entries: make(map[ConfigHash]ExecutionDigest)}
}

// Get looks a digest up.
func (c *DigestCache) Get(h ConfigHash) (ExecutionDigest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.entries[h]
	return d, ok
}

// Put stores a digest.
func (c *DigestCache) Put(h ConfigHash, d ExecutionDigest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[h] = d
}

// Invalidate drops a cached digest; recorded steps that change the
// generator's output must drop the stale summary.
func (c *DigestCache) Invalidate(h ConfigHash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, h)
}

// GetOrCompute returns the cached digest or computes and stores it.
func (c *DigestCache) GetOrCompute(h ConfigHash, compute func() ExecutionDigest) ExecutionDigest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.entries[h]; ok {
		return d
	}
	d := compute()
	c.entries[h] = d
	return d
}

// defaultDigestCache is the process wide cache behind CachedDigest.
var defaultDigestCache = NewDigestCache()

// CachedDigest serves the digest for a generator from the process wide
// cache, computing it on a miss.
func CachedDigest(g ExecutionConfigGenerator, timestamp time.Time) ExecutionDigest {
	return defaultDigestCache.GetOrCompute(g.Hash, func() ExecutionDigest {
		return ComputeDigest(g, timestamp)
	})
}

// InvalidateDigest drops the process wide cache entry for a generator.
// ExecutionConfigGenerator.RecordStep calls it; steps recorded directly
// on a SequenceGenerator need an explicit call.
func InvalidateDigest(g ExecutionConfigGenerator) {
	defaultDigestCache.Invalidate(g.Hash)
}
