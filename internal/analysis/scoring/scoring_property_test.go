package scoring

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"smc-signals/internal/analysis/structure"
	"smc-signals/internal/models"
)

func TestScore_FourConfirmationsWithBonus(t *testing.T) {
	set := NewSet(SwingBullishBOS, InternalBullishBOS, BullishFairValueGap, PremiumZoneEntry)
	s := NewScorer(DefaultWeights(), 60)

	// 30 + 20 + 15 + 10 = 75, +10 for two structure breaks, no penalty.
	if got := s.Score(set); got != 85 {
		t.Errorf("Score = %d, want 85", got)
	}

	res := s.Evaluate(set)
	if !res.Valid || res.Direction != models.DirectionBuy || res.Primary != 2 || res.Total != 4 {
		t.Errorf("Evaluate = %+v, want valid BUY with 2 primary of 4", res)
	}
}

func TestScore_PenaltyAndClamp(t *testing.T) {
	s := NewScorer(DefaultWeights(), 0)

	// 30 * 0.8 = 24 with a single confirmation.
	if got := s.Score(NewSet(SwingBullishBOS)); got != 24 {
		t.Errorf("Score = %d, want 24", got)
	}

	all := NewSet(AllTags()...)
	if got := s.Score(all); got != 100 {
		t.Errorf("Score(all) = %d, want clamp to 100", got)
	}

	if got := s.Score(NewSet()); got != 0 {
		t.Errorf("Score(empty) = %d, want 0", got)
	}
}

func TestEvaluate_Gate(t *testing.T) {
	s := NewScorer(DefaultWeights(), 60)

	tests := []struct {
		name  string
		set   *Set
		valid bool
		dir   models.Direction
	}{
		{"no structure", NewSet(BullishFairValueGap, PremiumZoneEntry, EqualHighsBreak, SwingBullishOrderBlock), false, models.DirectionNone},
		{"too few", NewSet(SwingBearishBOS, BearishFairValueGap, DiscountZoneEntry), false, models.DirectionSell},
		{"below confidence", NewSet(InternalBearishCHoCH, EquilibriumZone, EqualLowsBreak, BearishFairValueGap), false, models.DirectionSell},
		{"bearish valid", NewSet(SwingBearishCHoCH, InternalBearishBOS, BearishFairValueGap, DiscountZoneEntry), true, models.DirectionSell},
		{"tie goes to buy", NewSet(SwingBearishBOS, InternalBullishBOS, BullishFairValueGap, PremiumZoneEntry), true, models.DirectionBuy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Evaluate(tt.set)
			if res.Valid != tt.valid || res.Direction != tt.dir {
				t.Errorf("Evaluate = %+v, want valid=%v dir=%q", res, tt.valid, tt.dir)
			}
			if !res.Valid && res.Reason == "" {
				t.Error("rejected result must carry a reason")
			}
		})
	}
}

func TestSet_OrderedAndDeduplicated(t *testing.T) {
	set := NewSet(BullishFairValueGap, SwingBullishBOS, BullishFairValueGap)
	if set.Len() != 2 {
		t.Fatalf("Len = %d, want 2", set.Len())
	}
	keys := set.Keys()
	if keys[0] != "bullishFairValueGap" || keys[1] != "swingBullishBOS" {
		t.Errorf("Keys = %v", keys)
	}
	if !set.HasCategory(CategorySwingStructure) || set.HasCategory(CategoryZone) {
		t.Error("HasCategory mismatch")
	}
}

func TestTagTables(t *testing.T) {
	for _, tag := range AllTags() {
		parsed, err := ParseTag(tag.String())
		if err != nil || parsed != tag {
			t.Errorf("ParseTag(%q) = %v, %v", tag.String(), parsed, err)
		}
		if tag.Label() == "" {
			t.Errorf("tag %v has no label", tag)
		}
		w := tag.DefaultWeight()
		if w < 4 || w > 30 {
			t.Errorf("tag %v weight %d outside [4, 30]", tag, w)
		}
		if tag.IsPrimary() && w < 18 {
			t.Errorf("structure tag %v weight %d too low", tag, w)
		}
	}
	if got, err := ParseTag("swingbullishbos"); err != nil || got != SwingBullishBOS {
		t.Errorf("lowercase key: %v, %v", got, err)
	}
	if _, err := ParseTag("nope"); err == nil {
		t.Error("ParseTag accepted an unknown key")
	}
}

func TestParseWeights(t *testing.T) {
	w, err := ParseWeights(map[string]int{"premiumZoneEntry": 12})
	if err != nil {
		t.Fatalf("ParseWeights: %v", err)
	}
	if w[PremiumZoneEntry] != 12 || w[SwingBullishBOS] != 30 {
		t.Errorf("weights not merged: %v", w)
	}
	if _, err := ParseWeights(map[string]int{"bogus": 1}); err == nil {
		t.Error("unknown key accepted")
	}
	if _, err := ParseWeights(map[string]int{"equilibriumZone": -1}); err == nil {
		t.Error("negative weight accepted")
	}
}

func TestStructureTag(t *testing.T) {
	tests := []struct {
		swing bool
		brk   structure.Break
		want  Tag
	}{
		{true, structure.Break{Type: structure.BOS, Bias: structure.BiasBullish}, SwingBullishBOS},
		{true, structure.Break{Type: structure.CHoCH, Bias: structure.BiasBearish}, SwingBearishCHoCH},
		{false, structure.Break{Type: structure.CHoCH, Bias: structure.BiasBullish}, InternalBullishCHoCH},
		{false, structure.Break{Type: structure.BOS, Bias: structure.BiasBearish}, InternalBearishBOS},
	}
	for _, tt := range tests {
		if got := StructureTag(tt.swing, tt.brk); got != tt.want {
			t.Errorf("StructureTag(%v, %+v) = %v, want %v", tt.swing, tt.brk, got, tt.want)
		}
	}
}

// Property: adding a confirmation to a fixed set never lowers the score.
func TestProperty_ScoreMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	s := NewScorer(DefaultWeights(), 0)

	properties.Property("score(S + t) >= score(S)", prop.ForAll(
		func(base []int, extra int) bool {
			set := NewSet()
			for _, b := range base {
				set.Add(Tag(b))
			}
			before := s.Score(set)
			set.Add(Tag(extra))
			return s.Score(set) >= before
		},
		gen.SliceOf(gen.IntRange(0, int(numTags)-1)),
		gen.IntRange(0, int(numTags)-1),
	))

	properties.Property("score within [0, 100]", prop.ForAll(
		func(base []int) bool {
			set := NewSet()
			for _, b := range base {
				set.Add(Tag(b))
			}
			score := s.Score(set)
			return score >= 0 && score <= 100
		},
		gen.SliceOf(gen.IntRange(0, int(numTags)-1)),
	))

	properties.TestingRun(t)
}
