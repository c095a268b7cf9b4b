package gmos

import (
	"github.com/google/uuid"
)

// Step is a finalised step: a proto step with its derived id and time
// estimate.
type Step struct {
	Id       uuid.UUID       `json:"id"`
	Proto    ProtoStep       `json:"proto"`
	Estimate CategorizedTime `json:"estimate"`
}

// Atom is an indivisible ordered group of steps sharing an identifier;
// the repetition unit for the executor.
type Atom struct {
	Id          uuid.UUID `json:"id"`
	Description string    `json:"description,omitempty"`
	Steps       []Step    `json:"steps"`
}

// Time sums the estimates of the atom's steps.
func (a Atom) Time() CategorizedTime {
	total := CategorizedTime{}
	for _, s := range a.Steps {
		total = total.Add(s.Estimate)
	}
	return total
}

// AtomBuilder assembles proto atoms into finalised atoms with stable ids
// and time estimates. It is a cheap value holding only the namespace and
// sequence type the ids derive from.
type AtomBuilder struct {
	Namespace uuid.UUID
	Sequence  SequenceType
}

// Build finalises one atom. The atom id derives from the atom index
// (cycle); each step id derives from the atom id and the step's
// intra-atom index starting at stepBase. The previous steps memory is
// threaded through the estimates and returned for the next atom.
func (b AtomBuilder) Build(description string, atomIndex int, stepBase int, last Last, protos []ProtoStep) (Atom, Last) {
	atomID := AtomID(b.Namespace, b.Sequence, int32(atomIndex), 0)

	steps := make([]Step, len(protos))
	var cost CategorizedTime
	for i, p := range protos {
		last, cost = EstimateStep(last, p)
		steps[i] = Step{
			Id:       StepID(b.Namespace, b.Sequence, atomID, int32(stepBase+i)),
			Proto:    p,
			Estimate: cost,
		}
	}

	return Atom{Id: atomID, Description: description, Steps: steps}, last
}
