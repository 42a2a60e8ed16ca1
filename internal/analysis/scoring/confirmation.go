package scoring

import (
	"fmt"
	"sort"
	"strings"

	"smc-signals/internal/analysis/structure"
)

// Tag identifies one kind of confirmation.
type Tag int

const (
	SwingBullishBOS Tag = iota
	SwingBearishBOS
	SwingBullishCHoCH
	SwingBearishCHoCH
	InternalBullishBOS
	InternalBearishBOS
	InternalBullishCHoCH
	InternalBearishCHoCH
	SwingBullishOrderBlock
	SwingBearishOrderBlock
	InternalBullishOrderBlock
	InternalBearishOrderBlock
	BullishFairValueGap
	BearishFairValueGap
	EqualHighsBreak
	EqualLowsBreak
	PremiumZoneEntry
	DiscountZoneEntry
	EquilibriumZone

	numTags
)

// Category groups tags for rationale building.
type Category string

const (
	CategorySwingStructure    Category = "swing_structure"
	CategoryInternalStructure Category = "internal_structure"
	CategoryOrderBlock        Category = "order_block"
	CategoryFairValueGap      Category = "fair_value_gap"
	CategoryLiquidity         Category = "liquidity"
	CategoryZone              Category = "zone"
)

type tagInfo struct {
	key      string
	label    string
	weight   int
	category Category
	bias     structure.Bias
	primary  bool
}

var tags = [numTags]tagInfo{
	SwingBullishBOS:           {"swingBullishBOS", "Swing Bullish BOS", 30, CategorySwingStructure, structure.BiasBullish, true},
	SwingBearishBOS:           {"swingBearishBOS", "Swing Bearish BOS", 30, CategorySwingStructure, structure.BiasBearish, true},
	SwingBullishCHoCH:         {"swingBullishCHoCH", "Swing Bullish CHoCH", 25, CategorySwingStructure, structure.BiasBullish, true},
	SwingBearishCHoCH:         {"swingBearishCHoCH", "Swing Bearish CHoCH", 25, CategorySwingStructure, structure.BiasBearish, true},
	InternalBullishBOS:        {"internalBullishBOS", "Internal Bullish BOS", 20, CategoryInternalStructure, structure.BiasBullish, true},
	InternalBearishBOS:        {"internalBearishBOS", "Internal Bearish BOS", 20, CategoryInternalStructure, structure.BiasBearish, true},
	InternalBullishCHoCH:      {"internalBullishCHoCH", "Internal Bullish CHoCH", 18, CategoryInternalStructure, structure.BiasBullish, true},
	InternalBearishCHoCH:      {"internalBearishCHoCH", "Internal Bearish CHoCH", 18, CategoryInternalStructure, structure.BiasBearish, true},
	SwingBullishOrderBlock:    {"swingBullishOrderBlock", "Swing Bullish Order Block", 15, CategoryOrderBlock, structure.BiasBullish, false},
	SwingBearishOrderBlock:    {"swingBearishOrderBlock", "Swing Bearish Order Block", 15, CategoryOrderBlock, structure.BiasBearish, false},
	InternalBullishOrderBlock: {"internalBullishOrderBlock", "Internal Bullish Order Block", 12, CategoryOrderBlock, structure.BiasBullish, false},
	InternalBearishOrderBlock: {"internalBearishOrderBlock", "Internal Bearish Order Block", 12, CategoryOrderBlock, structure.BiasBearish, false},
	BullishFairValueGap:       {"bullishFairValueGap", "Bullish Fair Value Gap", 15, CategoryFairValueGap, structure.BiasBullish, false},
	BearishFairValueGap:       {"bearishFairValueGap", "Bearish Fair Value Gap", 15, CategoryFairValueGap, structure.BiasBearish, false},
	EqualHighsBreak:           {"equalHighsBreak", "Equal Highs Break", 8, CategoryLiquidity, structure.BiasBullish, false},
	EqualLowsBreak:            {"equalLowsBreak", "Equal Lows Break", 8, CategoryLiquidity, structure.BiasBearish, false},
	PremiumZoneEntry:          {"premiumZoneEntry", "Premium Zone", 10, CategoryZone, structure.BiasNone, false},
	DiscountZoneEntry:         {"discountZoneEntry", "Discount Zone", 10, CategoryZone, structure.BiasNone, false},
	EquilibriumZone:           {"equilibriumZone", "Equilibrium Zone", 4, CategoryZone, structure.BiasNone, false},
}

var tagsByKey = make(map[string]Tag, numTags)

func init() {
	for i := Tag(0); i < numTags; i++ {
		info := tags[i]
		if info.key == "" || info.label == "" || info.category == "" || info.weight <= 0 {
			panic(fmt.Sprintf("scoring: incomplete entry for tag %d", i))
		}
		key := strings.ToLower(info.key)
		if _, dup := tagsByKey[key]; dup {
			panic(fmt.Sprintf("scoring: duplicate tag key %q", info.key))
		}
		tagsByKey[key] = i
	}
}

// AllTags returns every tag in declaration order.
func AllTags() []Tag {
	out := make([]Tag, numTags)
	for i := range out {
		out[i] = Tag(i)
	}
	return out
}

// ParseTag looks up a tag by its key (e.g. "swingBullishBOS"), ignoring case.
func ParseTag(key string) (Tag, error) {
	if t, ok := tagsByKey[strings.ToLower(key)]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("unknown confirmation %q", key)
}

func (t Tag) valid() bool { return t >= 0 && t < numTags }

// String returns the tag key.
func (t Tag) String() string {
	if !t.valid() {
		return fmt.Sprintf("Tag(%d)", int(t))
	}
	return tags[t].key
}

// Label returns the display label.
func (t Tag) Label() string {
	if !t.valid() {
		return t.String()
	}
	return tags[t].label
}

// Category returns the rationale category.
func (t Tag) Category() Category {
	if !t.valid() {
		return ""
	}
	return tags[t].category
}

// Bias returns the direction the tag argues for, if any.
func (t Tag) Bias() structure.Bias {
	if !t.valid() {
		return structure.BiasNone
	}
	return tags[t].bias
}

// IsPrimary reports whether the tag is a structure break (BOS or CHoCH).
func (t Tag) IsPrimary() bool {
	return t.valid() && tags[t].primary
}

// DefaultWeight returns the built-in weight of the tag.
func (t Tag) DefaultWeight() int {
	if !t.valid() {
		return 0
	}
	return tags[t].weight
}

// StructureTag maps a structure break on the given tier to its tag.
func StructureTag(swing bool, b structure.Break) Tag {
	bullish := b.Bias == structure.BiasBullish
	choch := b.Type == structure.CHoCH
	switch {
	case swing && bullish && choch:
		return SwingBullishCHoCH
	case swing && bullish:
		return SwingBullishBOS
	case swing && choch:
		return SwingBearishCHoCH
	case swing:
		return SwingBearishBOS
	case bullish && choch:
		return InternalBullishCHoCH
	case bullish:
		return InternalBullishBOS
	case choch:
		return InternalBearishCHoCH
	default:
		return InternalBearishBOS
	}
}

// Weights maps every tag to its score contribution.
type Weights map[Tag]int

// DefaultWeights returns the built-in weight table.
func DefaultWeights() Weights {
	w := make(Weights, numTags)
	for i := Tag(0); i < numTags; i++ {
		w[i] = tags[i].weight
	}
	return w
}

// ParseWeights applies overrides keyed by tag key on top of the defaults.
func ParseWeights(overrides map[string]int) (Weights, error) {
	w := DefaultWeights()
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		t, err := ParseTag(strings.TrimSpace(k))
		if err != nil {
			return nil, err
		}
		v := overrides[k]
		if v < 0 {
			return nil, fmt.Errorf("weight for %s must be non-negative, got %d", k, v)
		}
		w[t] = v
	}
	return w, nil
}

// Set is an insertion-ordered set of tags.
type Set struct {
	order []Tag
	seen  [numTags]bool
}

// NewSet builds a set from tags, dropping duplicates.
func NewSet(ts ...Tag) *Set {
	s := &Set{}
	for _, t := range ts {
		s.Add(t)
	}
	return s
}

// Add inserts t and reports whether it was new.
func (s *Set) Add(t Tag) bool {
	if !t.valid() || s.seen[t] {
		return false
	}
	s.seen[t] = true
	s.order = append(s.order, t)
	return true
}

// Has reports whether t is present.
func (s *Set) Has(t Tag) bool {
	return t.valid() && s.seen[t]
}

// Len returns the number of tags.
func (s *Set) Len() int {
	return len(s.order)
}

// Tags returns the tags in insertion order.
func (s *Set) Tags() []Tag {
	out := make([]Tag, len(s.order))
	copy(out, s.order)
	return out
}

// Keys returns the tag keys in insertion order.
func (s *Set) Keys() []string {
	out := make([]string, len(s.order))
	for i, t := range s.order {
		out[i] = t.String()
	}
	return out
}

// HasCategory reports whether any tag of category c is present.
func (s *Set) HasCategory(c Category) bool {
	for _, t := range s.order {
		if t.Category() == c {
			return true
		}
	}
	return false
}

// PrimaryCount returns the number of structure-break tags.
func (s *Set) PrimaryCount() int {
	n := 0
	for _, t := range s.order {
		if t.IsPrimary() {
			n++
		}
	}
	return n
}
