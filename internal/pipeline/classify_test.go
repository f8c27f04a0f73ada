package pipeline

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pantrylog/pantrylog/internal/textgen"
)

var _ = Describe("Classifier", func() {
	var (
		gen        *mockGenerator
		health     *textgen.Health
		classifier *Classifier
		rawNames   []string
		results    []Classification
	)

	BeforeEach(func() {
		gen = &mockGenerator{}
		health = textgen.NewHealth()
		classifier = NewClassifier(gen, health)
	})

	JustBeforeEach(func() {
		results = classifier.Classify(context.Background(), rawNames)
	})

	When("the input is empty", func() {
		BeforeEach(func() {
			rawNames = []string{}
		})

		It("returns an empty slice", func() {
			Expect(results).To(BeEmpty())
		})

		It("does not call the backend", func() {
			Expect(gen.calls).To(BeZero())
		})
	})

	When("the backend returns one result per item", func() {
		BeforeEach(func() {
			rawNames = []string{"whl mlk", "paper towels"}
			gen.response = `[
				{"is_food": true, "normalized_name": "Whole Milk", "category": "dairy"},
				{"is_food": false, "normalized_name": "Paper Towels", "category": "non-food"}
			]`
		})

		It("returns results in input order", func() {
			Expect(results).To(Equal([]Classification{
				{IsFood: true, NormalizedName: "Whole Milk", Category: CategoryDairy},
				{IsFood: false, NormalizedName: "Paper Towels", Category: CategoryNonFood},
			}))
		})

		It("sends the items as a numbered list", func() {
			Expect(gen.lastUserContent).To(ContainSubstring("1. whl mlk"))
			Expect(gen.lastUserContent).To(ContainSubstring("2. paper towels"))
		})
	})

	When("the backend wraps the array in an envelope", func() {
		BeforeEach(func() {
			rawNames = []string{"milk"}
			gen.response = `{"items": [{"is_food": true, "normalized_name": "Milk", "category": "dairy"}]}`
		})

		It("unwraps it", func() {
			Expect(results).To(HaveLen(1))
			Expect(results[0].Category).To(Equal(CategoryDairy))
		})
	})

	When("the backend returns an unrecognized category", func() {
		BeforeEach(func() {
			rawNames = []string{"mystery item"}
			gen.response = `[{"is_food": true, "normalized_name": "Mystery Item", "category": "exotic"}]`
		})

		It("maps it to unknown", func() {
			Expect(results[0].Category).To(Equal(CategoryUnknown))
		})
	})

	When("the backend omits the normalized name", func() {
		BeforeEach(func() {
			rawNames = []string{"whole MILK"}
			gen.response = `[{"is_food": true, "normalized_name": "", "category": "dairy"}]`
		})

		It("title-cases the raw name", func() {
			Expect(results[0].NormalizedName).To(Equal("Whole Milk"))
		})
	})

	When("the backend returns too few results", func() {
		BeforeEach(func() {
			rawNames = []string{"milk", "bread", "eggs"}
			gen.response = `[
				{"is_food": true, "normalized_name": "Milk", "category": "dairy"},
				{"is_food": true, "normalized_name": "Bread", "category": "bakery"}
			]`
		})

		It("rejects the whole batch and uses the rules", func() {
			Expect(results).To(HaveLen(3))
			Expect(results[0].Category).To(Equal(CategoryDairy))
			Expect(results[1].Category).To(Equal(CategoryBakery))
			Expect(results[2].Category).To(Equal(CategoryMeat))
		})

		It("leaves the backend available", func() {
			Expect(health.Available()).To(BeTrue())
		})
	})

	When("the backend fails with a quota error", func() {
		BeforeEach(func() {
			rawNames = []string{"milk"}
			gen.err = &textgen.QuotaError{Backend: "gemini", Message: "quota exceeded"}
		})

		It("falls back to the rules", func() {
			Expect(results).To(HaveLen(1))
			Expect(results[0].Category).To(Equal(CategoryDairy))
		})

		It("trips the circuit breaker", func() {
			Expect(health.Available()).To(BeFalse())
		})
	})

	When("the backend fails with an ordinary error", func() {
		BeforeEach(func() {
			rawNames = []string{"milk"}
			gen.err = errors.New("timeout")
		})

		It("leaves the backend available", func() {
			Expect(health.Available()).To(BeTrue())
		})
	})

	Describe("deterministic rules", func() {
		BeforeEach(func() {
			classifier = NewClassifier(nil, nil)
		})

		When("classifying common groceries", func() {
			BeforeEach(func() {
				rawNames = []string{"bananas", "frozen pizza", "cheddar cheese", "dish soap"}
			})

			It("returns one result per input in order", func() {
				Expect(results).To(HaveLen(4))
			})

			It("matches keywords case-insensitively", func() {
				Expect(results[0].Category).To(Equal(CategoryProduce))
				Expect(results[1].Category).To(Equal(CategoryFrozen))
				Expect(results[2].Category).To(Equal(CategoryDairy))
				Expect(results[3].Category).To(Equal(CategoryNonFood))
			})

			It("title-cases the names", func() {
				Expect(results[0].NormalizedName).To(Equal("Bananas"))
				Expect(results[2].NormalizedName).To(Equal("Cheddar Cheese"))
			})

			It("derives is_food from the category", func() {
				Expect(results[0].IsFood).To(BeTrue())
				Expect(results[3].IsFood).To(BeFalse())
			})
		})

		When("nothing matches", func() {
			BeforeEach(func() {
				rawNames = []string{"zzyzx"}
			})

			It("defaults to the pantry catch-all as food", func() {
				Expect(results[0].Category).To(Equal(CategoryPantry))
				Expect(results[0].IsFood).To(BeTrue())
			})
		})

		When("earlier rules shadow later ones", func() {
			BeforeEach(func() {
				// "frozen chicken" hits the meat rule before frozen
				rawNames = []string{"frozen chicken"}
			})

			It("uses the first matching rule", func() {
				Expect(results[0].Category).To(Equal(CategoryMeat))
			})
		})
	})
})
