package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pantrylog/pantrylog/internal/pipeline"
	"github.com/pantrylog/pantrylog/internal/vision"
)

// Normalizer turns raw text into a structured item list plus an optional
// purchase date
type Normalizer interface {
	Normalize(ctx context.Context, rawText string) pipeline.NormalizedInput
}

// Classifier maps raw item names to classifications, preserving input
// length and order
type Classifier interface {
	Classify(ctx context.Context, rawNames []string) []pipeline.Classification
}

// Estimator predicts shelf-life for a classified item
type Estimator interface {
	Estimate(ctx context.Context, normalizedName string, category pipeline.FoodCategory) pipeline.ExpirationEstimate
}

// IDGenerator generates unique IDs for records and batches
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// pendingBatch holds one pipeline run awaiting review and commit
type pendingBatch struct {
	purchaseDate time.Time
	items        []Item
}

// Service sequences the pipeline stages and owns the pending batches and
// persisted records
type Service struct {
	db          DB
	normalizer  Normalizer
	classifier  Classifier
	estimator   Estimator
	extractor   vision.TextExtractor
	idGenerator IDGenerator
	timeSource  TimeSource

	mu      sync.Mutex
	pending map[string]*pendingBatch
}

// NewService creates a new Service with default ID generator and time
// source. extractor may be nil when image intake is not configured.
func NewService(db DB, normalizer Normalizer, classifier Classifier, estimator Estimator, extractor vision.TextExtractor) *Service {
	return NewServiceWithDeps(db, normalizer, classifier, estimator, extractor, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, normalizer Normalizer, classifier Classifier, estimator Estimator, extractor vision.TextExtractor, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		normalizer:  normalizer,
		classifier:  classifier,
		estimator:   estimator,
		extractor:   extractor,
		idGenerator: idGen,
		timeSource:  timeSrc,
		pending:     make(map[string]*pendingBatch),
	}
}

// Process runs raw text through normalize, classify, and estimate, and
// holds the resulting candidates as a pending batch for review. The
// classifier output is index-aligned with the normalizer output, so
// quantity i belongs to classification i. Estimation runs sequentially in
// input order.
func (s *Service) Process(ctx context.Context, rawText string) (string, []Item) {
	normalized := s.normalizer.Normalize(ctx, rawText)

	rawNames := make([]string, len(normalized.Items))
	for i, line := range normalized.Items {
		rawNames[i] = line.RawName
	}
	classified := s.classifier.Classify(ctx, rawNames)

	now := s.timeSource.Now()
	purchaseDate := now
	if normalized.PurchaseDate != "" {
		if t, err := time.Parse(time.RFC3339, normalized.PurchaseDate); err == nil {
			purchaseDate = t
		}
	}

	items := make([]Item, 0, len(classified))
	for i, c := range classified {
		estimate := s.estimator.Estimate(ctx, c.NormalizedName, c.Category)

		items = append(items, Item{
			ID:                 "pending-" + s.idGenerator.Generate(),
			Name:               c.NormalizedName,
			Quantity:           normalized.Items[i].Quantity,
			Category:           c.Category,
			IsFood:             c.IsFood,
			PurchaseDate:       purchaseDate,
			AutoExpirationDate: purchaseDate.AddDate(0, 0, estimate.ExpirationDays),
			ExpirationSource:   SourceAuto,
			Confidence:         estimate.Confidence,
		})
	}

	batchID := s.idGenerator.Generate()
	s.mu.Lock()
	s.pending[batchID] = &pendingBatch{purchaseDate: purchaseDate, items: items}
	s.mu.Unlock()

	return batchID, items
}

// ProcessImage extracts text from a receipt photo or PDF, then runs the
// text pipeline. Extraction failures are surfaced, not swallowed: without
// text there is nothing for the fallback rules to work on.
func (s *Service) ProcessImage(ctx context.Context, imageData []byte, contentType string) (string, []Item, error) {
	if s.extractor == nil {
		return "", nil, fmt.Errorf("no text extractor configured")
	}

	rawText, err := s.extractor.ExtractText(imageData, contentType)
	if err != nil {
		return "", nil, fmt.Errorf("extracting text: %w", err)
	}

	batchID, items := s.Process(ctx, rawText)
	return batchID, items, nil
}

// UpdatePending replaces an item in a pending batch by identity (a full
// record replace, not a patch). A set manual expiration date flips the
// source to manual; the pipeline's auto date is always preserved.
func (s *Service) UpdatePending(batchID string, edited Item) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.pending[batchID]
	if !ok {
		return Item{}, fmt.Errorf("batch not found: %s", batchID)
	}

	for i := range batch.items {
		if batch.items[i].ID != edited.ID {
			continue
		}

		edited.AutoExpirationDate = batch.items[i].AutoExpirationDate
		if edited.ManualExpirationDate != nil {
			edited.ExpirationSource = SourceManual
		} else {
			edited.ExpirationSource = SourceAuto
		}
		if edited.PurchaseDate.IsZero() {
			edited.PurchaseDate = batch.items[i].PurchaseDate
		}

		batch.items[i] = edited
		return edited, nil
	}

	return Item{}, fmt.Errorf("item not found in batch: %s", edited.ID)
}

// PendingItems returns the current state of a pending batch
func (s *Service) PendingItems(batchID string) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.pending[batchID]
	if !ok {
		return nil, fmt.Errorf("batch not found: %s", batchID)
	}

	items := make([]Item, len(batch.items))
	copy(items, batch.items)
	return items, nil
}

// Commit persists a pending batch, exchanging transient identities for
// persisted ones. On storage failure the batch is left intact so the
// caller can retry without recomputing the pipeline.
func (s *Service) Commit(ctx context.Context, batchID string) ([]Item, error) {
	s.mu.Lock()
	batch, ok := s.pending[batchID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("batch not found: %s", batchID)
	}

	now := s.timeSource.Now()
	receipt := &Receipt{
		ID:           s.idGenerator.Generate(),
		PurchaseDate: batch.purchaseDate,
		CreatedAt:    now,
	}
	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}

	saved := make([]Item, 0, len(batch.items))
	for _, item := range batch.items {
		item.ID = s.idGenerator.Generate()
		item.ReceiptID = receipt.ID
		item.CreatedAt = now
		item.UpdatedAt = now
		if err := s.db.SaveItem(&item); err != nil {
			return nil, fmt.Errorf("saving item %q: %w", item.Name, err)
		}
		saved = append(saved, item)
	}

	s.mu.Lock()
	delete(s.pending, batchID)
	s.mu.Unlock()

	return saved, nil
}

// CreateItem saves a single manually entered item along with a receipt to
// group it. Missing fields get the same defaults the pipeline would apply.
func (s *Service) CreateItem(item *Item) error {
	now := s.timeSource.Now()

	if item.PurchaseDate.IsZero() {
		item.PurchaseDate = now
	}
	if !item.Category.Valid() {
		item.Category = pipeline.CategoryUnknown
	}
	item.IsFood = item.Category.IsFood()
	if item.AutoExpirationDate.IsZero() {
		item.AutoExpirationDate = item.PurchaseDate.AddDate(0, 0, 7)
	}
	if item.ManualExpirationDate != nil {
		item.ExpirationSource = SourceManual
	} else {
		item.ExpirationSource = SourceAuto
	}

	receipt := &Receipt{
		ID:           s.idGenerator.Generate(),
		PurchaseDate: item.PurchaseDate,
		CreatedAt:    now,
	}
	if err := s.db.SaveReceipt(receipt); err != nil {
		return fmt.Errorf("saving receipt: %w", err)
	}

	item.ID = s.idGenerator.Generate()
	item.ReceiptID = receipt.ID
	item.CreatedAt = now
	item.UpdatedAt = now
	if err := s.db.SaveItem(item); err != nil {
		return fmt.Errorf("saving item: %w", err)
	}
	return nil
}

// UpdateItem replaces a persisted item (full-record replace). The stored
// auto expiration date is preserved as the original estimate.
func (s *Service) UpdateItem(item *Item) error {
	existing, err := s.db.GetItem(item.ID)
	if err != nil {
		return fmt.Errorf("getting item for update: %w", err)
	}

	item.ReceiptID = existing.ReceiptID
	item.AutoExpirationDate = existing.AutoExpirationDate
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = s.timeSource.Now()
	if item.ManualExpirationDate != nil {
		item.ExpirationSource = SourceManual
	} else {
		item.ExpirationSource = SourceAuto
	}

	if err := s.db.SaveItem(item); err != nil {
		return fmt.Errorf("saving item: %w", err)
	}
	return nil
}

// GetItem retrieves an item by ID
func (s *Service) GetItem(id string) (*Item, error) {
	item, err := s.db.GetItem(id)
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns all items sorted by effective expiration, soonest first
func (s *Service) ListItems() ([]*Item, error) {
	items, err := s.db.ListItems()
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	sortByEffectiveExpiration(items)
	return items, nil
}

// ListByCategory returns items in one category sorted by effective expiration
func (s *Service) ListByCategory(category pipeline.FoodCategory) ([]*Item, error) {
	items, err := s.db.ListItems()
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	filtered := make([]*Item, 0, len(items))
	for _, item := range items {
		if item.Category == category {
			filtered = append(filtered, item)
		}
	}
	sortByEffectiveExpiration(filtered)
	return filtered, nil
}

// ListExpiringSoon returns items whose effective expiration falls within
// the next N days, soonest first
func (s *Service) ListExpiringSoon(days int) ([]*Item, error) {
	items, err := s.db.ListItems()
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	now := s.timeSource.Now()
	cutoff := now.AddDate(0, 0, days)

	expiring := make([]*Item, 0)
	for _, item := range items {
		exp := item.EffectiveExpiration()
		if !exp.Before(now) && !exp.After(cutoff) {
			expiring = append(expiring, item)
		}
	}
	sortByEffectiveExpiration(expiring)
	return expiring, nil
}

// DeleteItem removes an item
func (s *Service) DeleteItem(id string) error {
	if _, err := s.db.GetItem(id); err != nil {
		return fmt.Errorf("getting item for deletion: %w", err)
	}
	if err := s.db.DeleteItem(id); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all receipts, newest first
func (s *Service) ListReceipts() ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	sort.Slice(receipts, func(i, j int) bool {
		return receipts[i].CreatedAt.After(receipts[j].CreatedAt)
	})
	return receipts, nil
}

func sortByEffectiveExpiration(items []*Item) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].EffectiveExpiration().Before(items[j].EffectiveExpiration())
	})
}
