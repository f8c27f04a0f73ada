package pipeline

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pantrylog/pantrylog/internal/textgen"
)

var _ = Describe("Estimator", func() {
	var (
		gen       *mockGenerator
		health    *textgen.Health
		estimator *Estimator
		name      string
		category  FoodCategory
		result    ExpirationEstimate
	)

	BeforeEach(func() {
		gen = &mockGenerator{}
		health = textgen.NewHealth()
		estimator = NewEstimator(gen, health)
		name = "Whole Milk"
		category = CategoryDairy
	})

	JustBeforeEach(func() {
		result = estimator.Estimate(context.Background(), name, category)
	})

	When("the backend returns a valid estimate", func() {
		BeforeEach(func() {
			gen.response = `{"expiration_days": 7, "confidence": "high"}`
		})

		It("returns it", func() {
			Expect(result).To(Equal(ExpirationEstimate{ExpirationDays: 7, Confidence: ConfidenceHigh}))
		})

		It("includes name and category in the request", func() {
			Expect(gen.lastUserContent).To(ContainSubstring("Whole Milk"))
			Expect(gen.lastUserContent).To(ContainSubstring("dairy"))
		})
	})

	When("the backend returns a fractional day count", func() {
		BeforeEach(func() {
			gen.response = `{"expiration_days": 6.7, "confidence": "high"}`
		})

		It("rounds to the nearest day", func() {
			Expect(result.ExpirationDays).To(Equal(7))
		})
	})

	When("the backend returns zero days", func() {
		BeforeEach(func() {
			gen.response = `{"expiration_days": 0, "confidence": "high"}`
		})

		It("clamps to one day", func() {
			Expect(result.ExpirationDays).To(Equal(1))
		})
	})

	When("the backend returns days as a string", func() {
		BeforeEach(func() {
			gen.response = `{"expiration_days": "about a week", "confidence": "high"}`
		})

		It("defaults to seven days", func() {
			Expect(result.ExpirationDays).To(Equal(7))
		})
	})

	When("the backend returns an unknown confidence", func() {
		BeforeEach(func() {
			gen.response = `{"expiration_days": 10, "confidence": "certain"}`
		})

		It("defaults to medium", func() {
			Expect(result.Confidence).To(Equal(ConfidenceMedium))
		})
	})

	When("the backend fails with a quota error", func() {
		BeforeEach(func() {
			gen.err = &textgen.QuotaError{Backend: "gemini", Message: "quota"}
		})

		It("falls back to the rules", func() {
			Expect(result).To(Equal(ExpirationEstimate{ExpirationDays: 7, Confidence: ConfidenceHigh}))
		})

		It("trips the circuit breaker", func() {
			Expect(health.Available()).To(BeFalse())
		})
	})

	When("the backend fails with an ordinary error", func() {
		BeforeEach(func() {
			gen.err = errors.New("timeout")
		})

		It("falls back without tripping the breaker", func() {
			Expect(result.ExpirationDays).To(Equal(7))
			Expect(health.Available()).To(BeTrue())
		})
	})

	Describe("deterministic rules", func() {
		BeforeEach(func() {
			estimator = NewEstimator(nil, nil)
		})

		When("the category has a default", func() {
			BeforeEach(func() {
				name = "Salmon Fillet"
				category = CategorySeafood
			})

			It("uses it", func() {
				Expect(result).To(Equal(ExpirationEstimate{ExpirationDays: 2, Confidence: ConfidenceHigh}))
			})
		})

		When("a keyword override refines the default", func() {
			BeforeEach(func() {
				name = "Strawberries"
				category = CategoryProduce
			})

			It("uses the override", func() {
				Expect(result).To(Equal(ExpirationEstimate{ExpirationDays: 3, Confidence: ConfidenceHigh}))
			})
		})

		When("the name matches no override", func() {
			BeforeEach(func() {
				name = "Kohlrabi"
				category = CategoryProduce
			})

			It("falls back to the category default", func() {
				Expect(result).To(Equal(ExpirationEstimate{ExpirationDays: 7, Confidence: ConfidenceMedium}))
			})
		})

		When("canned goods are in the pantry", func() {
			BeforeEach(func() {
				name = "Canned Beans"
				category = CategoryPantry
			})

			It("extends the shelf life", func() {
				Expect(result).To(Equal(ExpirationEstimate{ExpirationDays: 730, Confidence: ConfidenceMedium}))
			})
		})

		When("the category is unrecognized", func() {
			BeforeEach(func() {
				name = "Thing"
				category = FoodCategory("gadget")
			})

			It("uses the unknown default", func() {
				Expect(result).To(Equal(ExpirationEstimate{ExpirationDays: 7, Confidence: ConfidenceLow}))
			})
		})
	})
})
