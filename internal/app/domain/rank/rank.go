// Package rank defines the biblical rank catalog and the pure calculator
// mapping a memorized-verse count onto a tier, within-tier progress, and the
// distance to the next tier. The same numbers are rendered client-side, so
// the mapping here must stay deterministic and side-effect free.
package rank

import (
	"fmt"
	"math"
)

// Tier is one named band of the verse-count axis. Tiers are static,
// contiguous, and ordered by MinVerses ascending; the terminal tier has an
// empty NextLevel.
type Tier struct {
	Level       string `json:"level"`
	MinVerses   int    `json:"min_verses"`
	MaxVerses   int    `json:"max_verses"`
	NextLevel   string `json:"next_level,omitempty"`
	Description string `json:"description"`
}

// Terminal reports whether the tier has no successor.
func (t Tier) Terminal() bool { return t.NextLevel == "" }

// Info is the result of a rank calculation.
type Info struct {
	Current      Tier    `json:"current_rank"`
	Progress     float64 `json:"progress"`
	VersesToNext int     `json:"verses_to_next_rank"`
}

// tiers is the compiled-in catalog. Each rank is a biblical character known
// for their spiritual journey.
var tiers = []Tier{
	{Level: "Nicodemus", MinVerses: 1, MaxVerses: 3, NextLevel: "Thomas", Description: "Just beginning your journey, seeking truth"},
	{Level: "Thomas", MinVerses: 4, MaxVerses: 8, NextLevel: "Peter", Description: "Growing in faith, overcoming doubts"},
	{Level: "Peter", MinVerses: 9, MaxVerses: 16, NextLevel: "John", Description: "Bold and passionate follower"},
	{Level: "John", MinVerses: 17, MaxVerses: 27, NextLevel: "Paul", Description: "Drawing close to the heart of God"},
	{Level: "Paul", MinVerses: 28, MaxVerses: 40, NextLevel: "David", Description: "Transformed and zealous for the Word"},
	{Level: "David", MinVerses: 41, MaxVerses: 55, NextLevel: "Daniel", Description: "A person after God's own heart"},
	{Level: "Daniel", MinVerses: 56, MaxVerses: 75, NextLevel: "Solomon", Description: "Steadfast in faith and commitment"},
	{Level: "Solomon", MinVerses: 76, MaxVerses: 100, Description: "Wise and deeply rooted in Scripture"},
}

func init() {
	if err := validate(tiers); err != nil {
		panic(fmt.Sprintf("rank: invalid tier catalog: %v", err))
	}
}

// validate enforces the catalog invariants: ascending contiguous bands
// starting at 1, NextLevel references matching the following tier, and a
// single terminal tier at the end.
func validate(ts []Tier) error {
	if len(ts) == 0 {
		return fmt.Errorf("catalog is empty")
	}
	if ts[0].MinVerses != 1 {
		return fmt.Errorf("first tier must start at 1, got %d", ts[0].MinVerses)
	}
	for i, t := range ts {
		if t.MinVerses > t.MaxVerses {
			return fmt.Errorf("tier %s has inverted bounds", t.Level)
		}
		last := i == len(ts)-1
		if last {
			if !t.Terminal() {
				return fmt.Errorf("last tier %s must be terminal", t.Level)
			}
			continue
		}
		if t.Terminal() {
			return fmt.Errorf("non-final tier %s is terminal", t.Level)
		}
		next := ts[i+1]
		if t.NextLevel != next.Level {
			return fmt.Errorf("tier %s points at %s, next is %s", t.Level, t.NextLevel, next.Level)
		}
		if t.MaxVerses+1 != next.MinVerses {
			return fmt.Errorf("gap between %s and %s", t.Level, next.Level)
		}
	}
	return nil
}

// Calculate maps a verse count onto its tier, the within-tier completion
// percentage (two decimal places), and the verses remaining to the next
// tier. Counts at or below zero map to the first tier with zero progress;
// counts beyond the terminal tier clamp to it at 100%.
func Calculate(versesCount int) Info {
	first := tiers[0]
	if versesCount <= 0 {
		return Info{Current: first, Progress: 0, VersesToNext: first.MinVerses}
	}

	current := tiers[len(tiers)-1]
	for _, t := range tiers {
		if versesCount >= t.MinVerses && versesCount <= t.MaxVerses {
			current = t
			break
		}
	}

	var progress float64
	if current.Terminal() && versesCount >= current.MaxVerses {
		progress = 100
	} else {
		levelRange := float64(current.MaxVerses - current.MinVerses + 1)
		inLevel := float64(versesCount - current.MinVerses + 1)
		progress = math.Min(math.Max(inLevel/levelRange*100, 0), 100)
	}
	progress = math.Round(progress*100) / 100

	versesToNext := 0
	if !current.Terminal() {
		versesToNext = current.MaxVerses + 1 - versesCount
		if versesToNext < 0 {
			versesToNext = 0
		}
	}

	return Info{Current: current, Progress: progress, VersesToNext: versesToNext}
}

// ByLevel returns the tier with the given level name.
func ByLevel(level string) (Tier, bool) {
	for _, t := range tiers {
		if t.Level == level {
			return t, true
		}
	}
	return Tier{}, false
}

// Next returns the tier following the given level, if any.
func Next(level string) (Tier, bool) {
	current, ok := ByLevel(level)
	if !ok || current.Terminal() {
		return Tier{}, false
	}
	return ByLevel(current.NextLevel)
}

// All returns a copy of the full catalog in ascending order.
func All() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// Initial returns the first tier.
func Initial() Tier { return tiers[0] }
