package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/pantrylog/pantrylog/internal/textgen"
)

const classifyInstructions = `You are a grocery item classifier. Classify each item into a food category.

CATEGORIES (use exactly these values):
- produce: Fresh fruits and vegetables
- dairy: Milk, cheese, yogurt, butter, cream
- meat: Beef, pork, poultry, eggs, deli meats
- seafood: Fish, shellfish, other seafood
- bakery: Bread, bagels, cakes, pastries
- pantry: Rice, pasta, flour, canned goods, sauces, spices, oils
- frozen: Frozen meals, ice cream, frozen vegetables
- snack: Chips, cookies, candy, crackers, nuts
- beverage: Water, juice, soda, coffee, tea, alcohol
- non-food: Household and personal care products
- unknown: Cannot be determined

RULES:
- Preserve the exact order of input items
- Normalize names (capitalize properly, fix typos if obvious)
- is_food should be false only for non-food and unknown categories

OUTPUT FORMAT (JSON array, one entry per input item):
[
  {
    "is_food": true/false,
    "normalized_name": "Properly Capitalized Name",
    "category": "category_name"
  }
]

IMPORTANT: Return ONLY valid JSON, no other text.`

// categoryRule maps a keyword list to a category. Rules are evaluated in
// order; the first rule containing a substring match wins. A category may
// appear in several rules.
type categoryRule struct {
	category FoodCategory
	keywords []string
}

var classifierRules = []categoryRule{
	{CategoryProduce, []string{
		"apple", "banana", "orange", "lettuce", "tomato", "potato", "onion",
		"carrot", "spinach", "broccoli", "cucumber", "pepper", "avocado",
		"strawberry", "grape", "watermelon", "pear", "peach", "plum", "berry",
		"lemon", "lime", "mango", "pineapple", "celery", "garlic", "ginger",
		"cabbage", "mushroom", "fruit", "vegetable",
	}},
	{CategorySeafood, []string{
		"fish", "salmon", "tuna", "shrimp", "crab", "lobster", "cod",
		"tilapia", "oyster", "clam", "scallop", "squid", "seafood",
	}},
	{CategoryMeat, []string{
		"chicken", "beef", "pork", "turkey", "steak", "ground", "sausage",
		"bacon", "ham", "lamb", "egg", "meat",
	}},
	{CategoryFrozen, []string{
		"frozen", "ice cream", "popsicle", "pizza",
	}},
	{CategoryDairy, []string{
		"milk", "cheese", "yogurt", "butter", "cream", "cottage", "cheddar",
		"mozzarella", "parmesan",
	}},
	{CategoryBakery, []string{
		"bread", "bagel", "muffin", "croissant", "donut", "cake", "pastry",
		"bun", "roll", "tortilla",
	}},
	{CategorySnack, []string{
		"chips", "crackers", "cookies", "candy", "chocolate", "popcorn",
		"pretzels", "nuts", "granola",
	}},
	// Dry goods and condiments both live in the pantry
	{CategoryPantry, []string{
		"pasta", "rice", "cereal", "oatmeal", "quinoa", "flour", "wheat",
		"barley", "noodle", "canned", "soup",
	}},
	{CategoryPantry, []string{
		"sauce", "dressing", "ketchup", "mustard", "mayonnaise", "oil",
		"vinegar", "salt", "spice", "seasoning", "soy", "honey", "sugar",
		"jam", "peanut butter",
	}},
	{CategoryBeverage, []string{
		"water", "juice", "soda", "coffee", "tea", "beer", "wine", "drink",
		"beverage", "cola",
	}},
	{CategoryNonFood, []string{
		"paper towel", "toilet paper", "napkin", "soap", "shampoo",
		"detergent", "cleaner", "sponge", "foil", "bag", "battery",
		"toothpaste", "deodorant",
	}},
}

// Classifier maps raw item names to normalized names, categories, and an
// is-food flag, preserving input length and order under all conditions.
type Classifier struct {
	gen    textgen.Generator
	health *textgen.Health
}

// NewClassifier creates a Classifier. gen may be nil for rules-only operation.
func NewClassifier(gen textgen.Generator, health *textgen.Health) *Classifier {
	if health == nil {
		health = textgen.NewHealth()
	}
	return &Classifier{gen: gen, health: health}
}

// Classify returns one Classification per input name, in input order.
// Empty input returns an empty slice without invoking the backend.
func (c *Classifier) Classify(ctx context.Context, rawNames []string) []Classification {
	if len(rawNames) == 0 {
		return []Classification{}
	}

	if c.gen != nil && c.health.Available() {
		results, err := c.classifyWithBackend(ctx, rawNames)
		if err == nil {
			return results
		}
		if textgen.IsQuotaError(err) {
			slog.Warn("Backend quota exceeded, disabling for process lifetime")
			c.health.MarkUnavailable(time.Now())
		}
		slog.Warn("Backend classification failed, using rules", "error", err)
	}

	return classifyWithRules(rawNames)
}

// classifyWithBackend classifies the whole batch in a single request. A
// result count that does not match the input count rejects the entire
// batch; there is no partial acceptance.
func (c *Classifier) classifyWithBackend(ctx context.Context, rawNames []string) ([]Classification, error) {
	var sb strings.Builder
	sb.WriteString("Classify these items:\n")
	for i, name := range rawNames {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, name)
	}

	text, err := c.gen.Generate(ctx, classifyInstructions, sb.String())
	if err != nil {
		return nil, err
	}

	jsonText, err := extractJSONValue(text)
	if err != nil {
		return nil, err
	}

	wire, err := decodeClassifications(jsonText)
	if err != nil {
		return nil, err
	}
	if len(wire) != len(rawNames) {
		return nil, &ParseError{Reason: fmt.Sprintf("got %d classifications for %d items", len(wire), len(rawNames))}
	}

	results := make([]Classification, len(wire))
	for i, w := range wire {
		category := FoodCategory(w.Category)
		if !category.Valid() {
			category = CategoryUnknown
		}

		isFood := category.IsFood()
		if w.IsFood != nil {
			isFood = *w.IsFood
		}

		name := strings.TrimSpace(w.NormalizedName)
		if name == "" {
			name = titleCase(rawNames[i])
		}

		results[i] = Classification{IsFood: isFood, NormalizedName: name, Category: category}
	}

	return results, nil
}

type wireClassification struct {
	IsFood         *bool  `json:"is_food"`
	NormalizedName string `json:"normalized_name"`
	Category       string `json:"category"`
}

// decodeClassifications accepts either a bare array or an object wrapping
// one under "items" or "classifications"
func decodeClassifications(jsonText string) ([]wireClassification, error) {
	var wire []wireClassification
	if err := json.Unmarshal([]byte(jsonText), &wire); err == nil {
		return wire, nil
	}

	var envelope struct {
		Items           []wireClassification `json:"items"`
		Classifications []wireClassification `json:"classifications"`
	}
	if err := json.Unmarshal([]byte(jsonText), &envelope); err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}
	if envelope.Items != nil {
		return envelope.Items, nil
	}
	if envelope.Classifications != nil {
		return envelope.Classifications, nil
	}
	return nil, &ParseError{Reason: "no classification array in response"}
}

// classifyWithRules is the deterministic fallback: the first rule whose
// keyword list contains a substring of the lower-cased name wins. No match
// defaults to a food item in the pantry catch-all.
func classifyWithRules(rawNames []string) []Classification {
	results := make([]Classification, len(rawNames))
	for i, rawName := range rawNames {
		nameLower := strings.ToLower(rawName)

		category := CategoryPantry
		for _, rule := range classifierRules {
			if matchesAny(nameLower, rule.keywords) {
				category = rule.category
				break
			}
		}

		results[i] = Classification{
			IsFood:         category.IsFood(),
			NormalizedName: titleCase(rawName),
			Category:       category,
		}
	}
	return results
}

func matchesAny(nameLower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(nameLower, kw) {
			return true
		}
	}
	return false
}

// titleCase capitalizes the first letter of each whitespace-delimited word
// and lower-cases the rest
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
