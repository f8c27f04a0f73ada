package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/pantrylog/pantrylog/internal/textgen"
)

const estimateInstructions = `You are a food expiration expert. Estimate how many days until a food item expires.

ASSUMPTIONS:
- Item is stored properly at home (refrigerated if needed)
- Item is unopened/fresh from store
- Average quality product

CONFIDENCE LEVELS:
- high: Very predictable items (milk, bread, fresh meat)
- medium: Somewhat variable (produce, cheese)
- low: Highly variable or uncertain

RULES:
- Return only the number of days (integer)
- Be conservative (better to estimate shorter than longer)
- Consider typical home storage conditions

OUTPUT FORMAT (JSON only):
{
  "expiration_days": number,
  "confidence": "high" | "medium" | "low"
}

EXAMPLES:
- Fresh milk -> { "expiration_days": 7, "confidence": "high" }
- Bananas -> { "expiration_days": 5, "confidence": "medium" }
- Fresh salmon -> { "expiration_days": 2, "confidence": "high" }
- Canned beans -> { "expiration_days": 730, "confidence": "medium" }

IMPORTANT: Return ONLY valid JSON, no other text.`

// fallbackDays is used when a backend response omits or mangles the day count
const fallbackDays = 7

// categoryDefaults is the first level of the deterministic lookup
var categoryDefaults = map[FoodCategory]ExpirationEstimate{
	CategoryProduce:  {ExpirationDays: 7, Confidence: ConfidenceMedium},
	CategoryDairy:    {ExpirationDays: 14, Confidence: ConfidenceHigh},
	CategoryMeat:     {ExpirationDays: 3, Confidence: ConfidenceHigh},
	CategorySeafood:  {ExpirationDays: 2, Confidence: ConfidenceHigh},
	CategoryBakery:   {ExpirationDays: 5, Confidence: ConfidenceMedium},
	CategoryPantry:   {ExpirationDays: 365, Confidence: ConfidenceMedium},
	CategoryFrozen:   {ExpirationDays: 90, Confidence: ConfidenceMedium},
	CategorySnack:    {ExpirationDays: 60, Confidence: ConfidenceMedium},
	CategoryBeverage: {ExpirationDays: 30, Confidence: ConfidenceMedium},
	CategoryNonFood:  {ExpirationDays: 365, Confidence: ConfidenceLow},
	CategoryUnknown:  {ExpirationDays: 7, Confidence: ConfidenceLow},
}

// estimateRule refines a category default when the item name contains one
// of the keywords. Rules are evaluated in order, first match wins.
type estimateRule struct {
	keywords []string
	estimate ExpirationEstimate
}

var estimatorOverrides = map[FoodCategory][]estimateRule{
	CategoryProduce: {
		{[]string{"berry", "strawberry", "raspberry", "lettuce", "spinach", "salad"}, ExpirationEstimate{3, ConfidenceHigh}},
		{[]string{"banana", "tomato", "cucumber", "pepper", "avocado"}, ExpirationEstimate{5, ConfidenceHigh}},
		{[]string{"potato", "onion", "carrot", "apple", "cabbage"}, ExpirationEstimate{14, ConfidenceHigh}},
	},
	CategoryDairy: {
		{[]string{"milk"}, ExpirationEstimate{7, ConfidenceHigh}},
		{[]string{"yogurt"}, ExpirationEstimate{14, ConfidenceHigh}},
		{[]string{"cheese"}, ExpirationEstimate{21, ConfidenceHigh}},
		{[]string{"butter"}, ExpirationEstimate{30, ConfidenceHigh}},
	},
	CategoryMeat: {
		{[]string{"ground"}, ExpirationEstimate{2, ConfidenceHigh}},
		{[]string{"chicken"}, ExpirationEstimate{2, ConfidenceHigh}},
		{[]string{"bacon", "sausage", "ham"}, ExpirationEstimate{7, ConfidenceHigh}},
	},
	CategoryBakery: {
		{[]string{"bread"}, ExpirationEstimate{7, ConfidenceHigh}},
		{[]string{"bagel"}, ExpirationEstimate{5, ConfidenceHigh}},
		{[]string{"cake"}, ExpirationEstimate{3, ConfidenceMedium}},
	},
	CategoryPantry: {
		{[]string{"canned"}, ExpirationEstimate{730, ConfidenceMedium}},
	},
	CategoryBeverage: {
		{[]string{"juice"}, ExpirationEstimate{7, ConfidenceHigh}},
		{[]string{"water"}, ExpirationEstimate{365, ConfidenceHigh}},
	},
}

// Estimator predicts shelf-life in days for a classified item. Items are
// estimated one at a time so the backend sees name and category together.
type Estimator struct {
	gen    textgen.Generator
	health *textgen.Health
}

// NewEstimator creates an Estimator. gen may be nil for rules-only operation.
func NewEstimator(gen textgen.Generator, health *textgen.Health) *Estimator {
	if health == nil {
		health = textgen.NewHealth()
	}
	return &Estimator{gen: gen, health: health}
}

// Estimate returns a shelf-life estimate for one item. ExpirationDays is
// always a positive integer regardless of backend behavior.
func (e *Estimator) Estimate(ctx context.Context, normalizedName string, category FoodCategory) ExpirationEstimate {
	if e.gen != nil && e.health.Available() {
		result, err := e.estimateWithBackend(ctx, normalizedName, category)
		if err == nil {
			return result
		}
		if textgen.IsQuotaError(err) {
			slog.Warn("Backend quota exceeded, disabling for process lifetime")
			e.health.MarkUnavailable(time.Now())
		}
		slog.Warn("Backend estimation failed, using rules", "item", normalizedName, "error", err)
	}

	return estimateWithRules(normalizedName, category)
}

func (e *Estimator) estimateWithBackend(ctx context.Context, normalizedName string, category FoodCategory) (ExpirationEstimate, error) {
	userContent := fmt.Sprintf("Item: %q\nCategory: %s\n\nEstimate expiration days.", normalizedName, category)

	text, err := e.gen.Generate(ctx, estimateInstructions, userContent)
	if err != nil {
		return ExpirationEstimate{}, err
	}

	jsonText, err := extractJSONObject(text)
	if err != nil {
		return ExpirationEstimate{}, err
	}

	var wire struct {
		ExpirationDays any    `json:"expiration_days"`
		Confidence     string `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(jsonText), &wire); err != nil {
		return ExpirationEstimate{}, &ParseError{Reason: err.Error()}
	}

	days := fallbackDays
	if f, ok := wire.ExpirationDays.(float64); ok {
		days = int(math.Round(f))
		if days < 1 {
			days = 1
		}
	}

	confidence := Confidence(wire.Confidence)
	if !confidence.Valid() {
		confidence = ConfidenceMedium
	}

	return ExpirationEstimate{ExpirationDays: days, Confidence: confidence}, nil
}

// estimateWithRules is the deterministic fallback: a category default,
// refined by name-keyword overrides within the category.
func estimateWithRules(normalizedName string, category FoodCategory) ExpirationEstimate {
	result, ok := categoryDefaults[category]
	if !ok {
		result = categoryDefaults[CategoryUnknown]
	}

	nameLower := strings.ToLower(normalizedName)
	for _, rule := range estimatorOverrides[category] {
		if matchesAny(nameLower, rule.keywords) {
			result = rule.estimate
			break
		}
	}

	return result
}
