package pipeline

// FoodCategory is the closed set of categories the classifier and
// estimator share. "non-food" and "unknown" form the non-food partition.
type FoodCategory string

const (
	CategoryProduce  FoodCategory = "produce"
	CategoryDairy    FoodCategory = "dairy"
	CategoryMeat     FoodCategory = "meat"
	CategorySeafood  FoodCategory = "seafood"
	CategoryBakery   FoodCategory = "bakery"
	CategoryPantry   FoodCategory = "pantry"
	CategoryFrozen   FoodCategory = "frozen"
	CategorySnack    FoodCategory = "snack"
	CategoryBeverage FoodCategory = "beverage"
	CategoryNonFood  FoodCategory = "non-food"
	CategoryUnknown  FoodCategory = "unknown"
)

// Categories returns all members of the enumeration in display order
func Categories() []FoodCategory {
	return []FoodCategory{
		CategoryProduce, CategoryDairy, CategoryMeat, CategorySeafood,
		CategoryBakery, CategoryPantry, CategoryFrozen, CategorySnack,
		CategoryBeverage, CategoryNonFood, CategoryUnknown,
	}
}

// Valid reports whether c is a member of the enumeration
func (c FoodCategory) Valid() bool {
	switch c {
	case CategoryProduce, CategoryDairy, CategoryMeat, CategorySeafood,
		CategoryBakery, CategoryPantry, CategoryFrozen, CategorySnack,
		CategoryBeverage, CategoryNonFood, CategoryUnknown:
		return true
	}
	return false
}

// IsFood reports whether c belongs to the food partition
func (c FoodCategory) IsFood() bool {
	return c.Valid() && c != CategoryNonFood && c != CategoryUnknown
}

// Confidence expresses how reliable a shelf-life estimate is
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Valid reports whether c is a recognized confidence level
func (c Confidence) Valid() bool {
	return c == ConfidenceHigh || c == ConfidenceMedium || c == ConfidenceLow
}

// RawLine is one parsed input line. Quantity is an un-interpreted token
// ("2", "3x"); empty means no quantity was stated.
type RawLine struct {
	RawName  string `json:"raw_name"`
	Quantity string `json:"quantity,omitempty"`
}

// NormalizedInput is the normalizer's output. PurchaseDate is an ISO 8601
// datetime string, empty when no date could be located in the text.
type NormalizedInput struct {
	PurchaseDate string    `json:"purchase_date,omitempty"`
	Items        []RawLine `json:"items"`
}

// Classification is the classifier's output for one raw item name.
// Results are 1:1 and order-preserving with the input names.
type Classification struct {
	IsFood         bool         `json:"is_food"`
	NormalizedName string       `json:"normalized_name"`
	Category       FoodCategory `json:"category"`
}

// ExpirationEstimate is the estimator's output for one classified item
type ExpirationEstimate struct {
	ExpirationDays int        `json:"expiration_days"`
	Confidence     Confidence `json:"confidence"`
}
