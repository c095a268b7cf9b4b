package gmos

import (
	"testing"
	"time"
)

func TestComputeDigest(t *testing.T) {
	g, err := testGenerator(IntegrationTime{Exposure: 60 * time.Second, Count: 4})
	if err != nil {
		t.Fatal(err)
	}

	digest := ComputeDigest(g, t0)

	if digest.Setup.Full != 960*time.Second || digest.Setup.Reacquisition != 300*time.Second {
		t.Error("setup charges are fixed constants")
	}

	if digest.Science.AtomCount != 2 {
		t.Errorf("science atom count = %d, want 2", digest.Science.AtomCount)
	}
	if digest.Science.Class != ClassScience {
		t.Error("science digest carries the science class")
	}
	if len(digest.Science.Offsets) != 1 || !digest.Science.Offsets[0].IsZero() {
		t.Errorf("science offsets = %v, want the base position only", digest.Science.Offsets)
	}
	if digest.Science.Time.Total() <= 0 {
		t.Error("science time must be positive")
	}

	if digest.Acquisition.AtomCount != acquisitionDigestAtoms {
		t.Errorf("acquisition atom count = %d, want %d", digest.Acquisition.AtomCount, acquisitionDigestAtoms)
	}
	// ccd2 at base, p10 at (10, 0)
	if len(digest.Acquisition.Offsets) != 2 {
		t.Errorf("acquisition offsets = %v, want base and (10, 0)", digest.Acquisition.Offsets)
	}
}

func TestDigestOffsetsReflectConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Offsets = []int64{0, 15 * MicroarcsecPerArcsec}

	g, err := NewLongSlit(testCommit, testObs, cfg, IntegrationTime{Exposure: 60 * time.Second, Count: 4}, 10*time.Second, RoleScience, testExpander())
	if err != nil {
		t.Fatal(err)
	}

	digest := ComputeDigest(g, t0)
	if len(digest.Science.Offsets) != 2 {
		t.Errorf("science offsets = %v, want both configured q offsets", digest.Science.Offsets)
	}
}

func TestDigestCache(t *testing.T) {
	g, err := testGenerator(IntegrationTime{Exposure: 60 * time.Second, Count: 4})
	if err != nil {
		t.Fatal(err)
	}

	cache := NewDigestCache()

	calls := 0
	compute := func() ExecutionDigest {
		calls++
		return ComputeDigest(g, t0)
	}

	a := cache.GetOrCompute(g.Hash, compute)
	b := cache.GetOrCompute(g.Hash, compute)
	if calls != 1 {
		t.Errorf("compute ran %d times, want 1", calls)
	}
	if a.Science.AtomCount != b.Science.AtomCount {
		t.Error("cache returned a different digest")
	}

	cache.Invalidate(g.Hash)
	if _, ok := cache.Get(g.Hash); ok {
		t.Error("invalidation must drop the entry")
	}

	_ = cache.GetOrCompute(g.Hash, compute)
	if calls != 2 {
		t.Error("a miss after invalidation must recompute")
	}
}

func TestDigestCacheKeying(t *testing.T) {
	g1, err := testGenerator(IntegrationTime{Exposure: 60 * time.Second, Count: 4})
	if err != nil {
		t.Fatal(err)
	}
	g2, err := testGenerator(IntegrationTime{Exposure: 60 * time.Second, Count: 5})
	if err != nil {
		t.Fatal(err)
	}

	if g1.Hash == g2.Hash {
		t.Fatal("different integration times must key differently")
	}

	cache := NewDigestCache()
	cache.Put(g1.Hash, ComputeDigest(g1, t0))

	if _, ok := cache.Get(g2.Hash); ok {
		t.Error("a different config hash must miss")
	}
}
