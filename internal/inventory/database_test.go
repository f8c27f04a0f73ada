package inventory

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pantrylog/pantrylog/internal/pipeline"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveItem", func() {
		var (
			item *Item
			err  error
		)

		BeforeEach(func() {
			item = &Item{
				ID:                 "item-1",
				ReceiptID:          "receipt-1",
				Name:               "Whole Milk",
				Quantity:           "2",
				Category:           pipeline.CategoryDairy,
				IsFood:             true,
				PurchaseDate:       time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
				AutoExpirationDate: time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC),
				ExpirationSource:   SourceAuto,
				Confidence:         pipeline.ConfidenceHigh,
				CreatedAt:          time.Now().UTC(),
				UpdatedAt:          time.Now().UTC(),
			}
		})

		JustBeforeEach(func() {
			err = db.SaveItem(item)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("round-trips every field", func() {
				saved, getErr := db.GetItem("item-1")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved).To(Equal(item))
			})
		})

		When("the item has a manual expiration date", func() {
			BeforeEach(func() {
				manual := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
				item.ManualExpirationDate = &manual
				item.ExpirationSource = SourceManual
			})

			It("round-trips the manual date", func() {
				saved, getErr := db.GetItem("item-1")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.ManualExpirationDate).NotTo(BeNil())
				Expect(saved.ManualExpirationDate.Equal(*item.ManualExpirationDate)).To(BeTrue())
				Expect(saved.ExpirationSource).To(Equal(SourceManual))
			})
		})

		When("saving the same ID again", func() {
			JustBeforeEach(func() {
				item.Name = "Oat Milk"
				err = db.SaveItem(item)
			})

			It("replaces the record", func() {
				saved, _ := db.GetItem("item-1")
				Expect(saved.Name).To(Equal("Oat Milk"))
				items, _ := db.ListItems()
				Expect(items).To(HaveLen(1))
			})
		})
	})

	Describe("GetItem", func() {
		When("the item does not exist", func() {
			It("returns an error", func() {
				_, err := db.GetItem("missing")
				Expect(err).To(MatchError(ContainSubstring("item not found")))
			})
		})
	})

	Describe("ListItems", func() {
		When("the database is empty", func() {
			It("returns an empty slice", func() {
				items, err := db.ListItems()
				Expect(err).NotTo(HaveOccurred())
				Expect(items).To(BeEmpty())
				Expect(items).NotTo(BeNil())
			})
		})

		When("items exist", func() {
			BeforeEach(func() {
				Expect(db.SaveItem(&Item{ID: "a", Name: "Apples"})).To(Succeed())
				Expect(db.SaveItem(&Item{ID: "b", Name: "Bread"})).To(Succeed())
			})

			It("returns all of them", func() {
				items, err := db.ListItems()
				Expect(err).NotTo(HaveOccurred())
				Expect(items).To(HaveLen(2))
			})
		})
	})

	Describe("DeleteItem", func() {
		BeforeEach(func() {
			Expect(db.SaveItem(&Item{ID: "a", Name: "Apples"})).To(Succeed())
		})

		It("removes the item", func() {
			Expect(db.DeleteItem("a")).To(Succeed())
			_, err := db.GetItem("a")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("receipts", func() {
		var receipt *Receipt

		BeforeEach(func() {
			receipt = &Receipt{
				ID:           "receipt-1",
				PurchaseDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
				CreatedAt:    time.Now().UTC(),
			}
			Expect(db.SaveReceipt(receipt)).To(Succeed())
		})

		It("round-trips a receipt", func() {
			saved, err := db.GetReceipt("receipt-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved).To(Equal(receipt))
		})

		It("lists receipts", func() {
			receipts, err := db.ListReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveLen(1))
		})

		It("errors for a missing receipt", func() {
			_, err := db.GetReceipt("missing")
			Expect(err).To(MatchError(ContainSubstring("receipt not found")))
		})
	})

	Describe("persistence across reopen", func() {
		It("keeps data after close and reopen", func() {
			Expect(db.SaveItem(&Item{ID: "a", Name: "Apples"})).To(Succeed())
			Expect(db.Close()).To(Succeed())

			reopened, err := NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer reopened.Close()

			saved, err := reopened.GetItem("a")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Name).To(Equal("Apples"))
			db = nil
		})
	})
})
