package gmos

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestDeriveNamespaceDeterminism(t *testing.T) {
	a := DeriveNamespace(testCommit, testObs, []byte{1, 2, 3})
	b := DeriveNamespace(testCommit, testObs, []byte{1, 2, 3})

	if a != b {
		t.Fatalf("identical inputs produced different namespaces: %s vs %s", a, b)
	}
}

func TestDeriveNamespaceSensitivity(t *testing.T) {
	base := DeriveNamespace(testCommit, testObs, []byte{1, 2, 3})

	cases := []struct {
		name string
		got  uuid.UUID
	}{
		{"commit", DeriveNamespace([]byte{0xff}, testObs, []byte{1, 2, 3})},
		{"observation", DeriveNamespace(testCommit, "GN-2024B-Q-101-34", []byte{1, 2, 3})},
		{"params", DeriveNamespace(testCommit, testObs, []byte{1, 2, 4})},
	}

	for _, tc := range cases {
		if tc.got == base {
			t.Errorf("changing %s did not change the namespace", tc.name)
		}
	}
}

func TestAtomAndStepIds(t *testing.T) {
	ns := DeriveNamespace(testCommit, testObs, nil)

	atom := AtomID(ns, SequenceScience, 0, 0)
	if atom == AtomID(ns, SequenceScience, 1, 0) {
		t.Error("cycle must participate in atom id derivation")
	}
	if atom == AtomID(ns, SequenceAcquisition, 0, 0) {
		t.Error("sequence type must participate in atom id derivation")
	}
	if atom != AtomID(ns, SequenceScience, 0, 0) {
		t.Error("atom id derivation is not deterministic")
	}

	step := StepID(ns, SequenceScience, atom, 0)
	if step == StepID(ns, SequenceScience, atom, 1) {
		t.Error("index must participate in step id derivation")
	}
	other := AtomID(ns, SequenceScience, 7, 0)
	if step == StepID(ns, SequenceScience, other, 0) {
		t.Error("atom id must participate in step id derivation")
	}
}

// Two planner instantiations with identical inputs emit identical atom
// and step ids.
func TestPlanIdStability(t *testing.T) {
	g1, err := testGenerator(IntegrationTime{Exposure: 60 * time.Second, Count: 4})
	if err != nil {
		t.Fatal(err)
	}
	g2, err := testGenerator(IntegrationTime{Exposure: 60 * time.Second, Count: 4})
	if err != nil {
		t.Fatal(err)
	}

	a1 := g1.Science.Generate(t0).Collect()
	a2 := g2.Science.Generate(t0).Collect()

	if len(a1) != len(a2) {
		t.Fatalf("atom counts differ: %d vs %d", len(a1), len(a2))
	}
	for i := range a1 {
		if a1[i].Id != a2[i].Id {
			t.Errorf("atom %d ids differ: %s vs %s", i, a1[i].Id, a2[i].Id)
		}
		for j := range a1[i].Steps {
			if a1[i].Steps[j].Id != a2[i].Steps[j].Id {
				t.Errorf("atom %d step %d ids differ", i, j)
			}
		}
	}
}
