// Package tags keeps a product's mutually-exclusive type tag in sync with
// its assigned pricing regime while leaving every other tag untouched.
package tags

import (
	"strings"

	"github.com/merchware/repricer/pkg/model"
)

// Outcome is the minimal tag change moving a product to its desired regime
// tag. Desired always holds the full resulting tag set; Changed is true iff
// anything needs to be added or removed.
type Outcome struct {
	Desired []string
	Add     []string
	Remove  []string
	Changed bool
}

// Reconcile computes the minimal add/remove set so current carries exactly
// the type tag of regime. For RegimeSkip no change is proposed and the
// current tags pass through unchanged. Non-type tags keep their original
// relative order and casing.
func Reconcile(current []string, regime model.Regime) Outcome {
	want, ok := regime.TypeTag()
	if !ok {
		return Outcome{Desired: current}
	}

	out := Outcome{Desired: make([]string, 0, len(current)+1)}
	haveWanted := false
	for _, t := range current {
		if !model.IsTypeTag(t) {
			out.Desired = append(out.Desired, t)
			continue
		}
		if strings.EqualFold(t, want) {
			haveWanted = true
		} else {
			out.Remove = append(out.Remove, t)
		}
	}
	out.Desired = append(out.Desired, want)

	if !haveWanted {
		out.Add = append(out.Add, want)
	}
	out.Changed = len(out.Add) > 0 || len(out.Remove) > 0
	return out
}
