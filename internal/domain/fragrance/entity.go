// Package fragrance holds the catalog side of the domain: fragrance records,
// brand tiers and the vector math shared by similarity-based analyses.
package fragrance

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Family names used by the balance and diversity heuristics.
const (
	FamilyFresh    = "fresh"
	FamilyFloral   = "floral"
	FamilyOriental = "oriental"
	FamilyWoody    = "woody"
	FamilyGourmand = "gourmand"
	FamilyCitrus   = "citrus"
	FamilyAromatic = "aromatic"
	FamilyChypre   = "chypre"
	FamilyFougere  = "fougere"
	FamilyLeather  = "leather"
	FamilyAquatic  = "aquatic"
	FamilyGreen    = "green"
)

// CanonicalFamilies are the five families every balanced wardrobe is checked against.
var CanonicalFamilies = []string{FamilyFresh, FamilyFloral, FamilyOriental, FamilyWoody, FamilyGourmand}

// KnownFamilies is the broader vocabulary used when suggesting expansions.
var KnownFamilies = []string{
	FamilyFresh, FamilyFloral, FamilyOriental, FamilyWoody, FamilyGourmand,
	FamilyCitrus, FamilyAromatic, FamilyChypre, FamilyFougere, FamilyLeather,
	FamilyAquatic, FamilyGreen,
}

// Defaults substituted for absent numeric attributes.
const (
	DefaultIntensity  = 5
	DefaultComplexity = 5.0
)

// BrandTier classifies a house by market position.
type BrandTier string

const (
	TierLuxury   BrandTier = "luxury"
	TierNiche    BrandTier = "niche"
	TierDesigner BrandTier = "designer"
	TierUnknown  BrandTier = ""
)

// Fragrance is the denormalized catalog record attached to collection items.
type Fragrance struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Brand           string    `json:"brand"`
	BrandTier       BrandTier `json:"brand_tier,omitempty"`
	Family          string    `json:"family"`
	Accords         []string  `json:"accords,omitempty"`
	TopNotes        []string  `json:"top_notes,omitempty"`
	MiddleNotes     []string  `json:"middle_notes,omitempty"`
	BaseNotes       []string  `json:"base_notes,omitempty"`
	IntensityLevel  int       `json:"intensity_level,omitempty"`
	ComplexityScore float64   `json:"complexity_score,omitempty"`
	Price           float64   `json:"price,omitempty"`
	LaunchYear      int       `json:"launch_year,omitempty"`
	Embedding       Embedding `json:"embedding,omitempty"`
}

// Intensity returns IntensityLevel, or DefaultIntensity when unset.
func (f *Fragrance) Intensity() int {
	if f == nil || f.IntensityLevel <= 0 {
		return DefaultIntensity
	}
	return f.IntensityLevel
}

// Complexity returns ComplexityScore, or DefaultComplexity when unset.
func (f *Fragrance) Complexity() float64 {
	if f == nil || f.ComplexityScore <= 0 {
		return DefaultComplexity
	}
	return f.ComplexityScore
}

// NormalizedFamily returns the lower-cased family name, "unknown" when blank.
func (f *Fragrance) NormalizedFamily() string {
	if f == nil {
		return "unknown"
	}
	fam := NormalizeTag(f.Family)
	if fam == "" {
		return "unknown"
	}
	return fam
}

// Notes returns top, middle and base notes in pyramid order, normalized and
// deduplicated.
func (f *Fragrance) Notes() []string {
	if f == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, group := range [][]string{f.TopNotes, f.MiddleNotes, f.BaseNotes} {
		for _, n := range group {
			n = NormalizeTag(n)
			if n == "" {
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

// HasEmbedding reports whether the fragrance carries a usable vector.
func (f *Fragrance) HasEmbedding() bool {
	return f != nil && len(f.Embedding) > 0
}

// NormalizeTag case-folds and trims a free-form tag and strips diacritics,
// so "Hermès", "HERMES" and full-width "ＨＥＲＭＥＳ" compare equal.
func NormalizeTag(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFKC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.TrimSpace(cases.Fold().String(folded))
}

// TierClassifier infers brand tiers from configured brand lists when the
// catalog row does not carry one.
type TierClassifier struct {
	luxury map[string]struct{}
	niche  map[string]struct{}
}

// NewTierClassifier builds a classifier from brand name lists (case-insensitive).
func NewTierClassifier(luxury, niche []string) *TierClassifier {
	c := &TierClassifier{
		luxury: make(map[string]struct{}, len(luxury)),
		niche:  make(map[string]struct{}, len(niche)),
	}
	for _, b := range luxury {
		c.luxury[NormalizeTag(b)] = struct{}{}
	}
	for _, b := range niche {
		c.niche[NormalizeTag(b)] = struct{}{}
	}
	return c
}

// Tier returns the explicit tier of f, else the tier implied by its brand.
func (c *TierClassifier) Tier(f *Fragrance) BrandTier {
	if f == nil {
		return TierUnknown
	}
	if f.BrandTier != TierUnknown {
		return f.BrandTier
	}
	if c == nil {
		return TierUnknown
	}
	brand := NormalizeTag(f.Brand)
	if _, ok := c.luxury[brand]; ok {
		return TierLuxury
	}
	if _, ok := c.niche[brand]; ok {
		return TierNiche
	}
	return TierUnknown
}
