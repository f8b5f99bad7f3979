// Package pipeline sequences one receipt scan: text recognition, structured
// extraction with mandatory heuristic fallback, categorization, and
// confidence scoring, ending in one canonical record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sgrimes/expenselens/internal/category"
	"github.com/sgrimes/expenselens/internal/expense"
	"github.com/sgrimes/expenselens/internal/heuristic"
	"github.com/sgrimes/expenselens/internal/metrics"
	"github.com/sgrimes/expenselens/internal/ocr"
	"github.com/sgrimes/expenselens/internal/scanning"
)

// State names the pipeline stages. Stages run strictly in sequence per
// receipt; no partial state is observable by callers.
type State string

const (
	StateIdle                 State = "idle"
	StateExtractingText       State = "extracting_text"
	StateStructuredExtraction State = "structured_extraction"
	StateHeuristicFallback    State = "heuristic_fallback"
	StateCategorizing         State = "categorizing"
	StateDone                 State = "done"
)

// Retry policy for user-initiated rescans. Only extraction-service failures
// are retried; input errors are terminal without a new photo.
const maxAttempts = 3

var retryBackoff = []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}

// IDGenerator mints record IDs.
type IDGenerator interface {
	Generate() uuid.UUID
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() uuid.UUID { return uuid.New() }

// Pipeline is the extraction orchestrator. It is safe for concurrent scans;
// each run keeps its own state.
type Pipeline struct {
	text      ocr.TextSource
	extractor scanning.Extractor
	logger    *slog.Logger
	idGen     IDGenerator
	clock     expense.TimeSource
	sleep     func(time.Duration)
}

func New(text ocr.TextSource, extractor scanning.Extractor, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		text:      text,
		extractor: extractor,
		logger:    logger,
		idGen:     uuidGenerator{},
		clock:     nil,
		sleep:     time.Sleep,
	}
}

// NewWithDeps is the test constructor.
func NewWithDeps(text ocr.TextSource, extractor scanning.Extractor, logger *slog.Logger, idGen IDGenerator, clock expense.TimeSource, sleep func(time.Duration)) *Pipeline {
	p := New(text, extractor, logger)
	if idGen != nil {
		p.idGen = idGen
	}
	p.clock = clock
	if sleep != nil {
		p.sleep = sleep
	}
	return p
}

func (p *Pipeline) now() time.Time {
	if p.clock != nil {
		return p.clock.Now()
	}
	return time.Now()
}

// Scan runs the full pipeline once: a single structured-extraction attempt,
// falling back to the pattern extractor on any failure. Whenever text
// recognition succeeds a record comes back, never an error.
func (p *Pipeline) Scan(ctx context.Context, image []byte, contentType string) (*expense.Record, error) {
	return p.run(ctx, image, contentType, 1)
}

// Rescan is the user-initiated retry variant: the structured stage gets up
// to three attempts with increasing backoff before the fallback kicks in.
func (p *Pipeline) Rescan(ctx context.Context, image []byte, contentType string) (*expense.Record, error) {
	return p.run(ctx, image, contentType, maxAttempts)
}

func (p *Pipeline) run(ctx context.Context, image []byte, contentType string, attempts int) (*expense.Record, error) {
	scanID := p.idGen.Generate()
	run := &scanRun{id: scanID, state: StateIdle, logger: p.logger}
	metrics.ScansStarted.Inc()
	start := time.Now()
	defer func() { metrics.ExtractionDuration.Observe(time.Since(start).Seconds()) }()

	png, _, err := scanning.PrepareImage(image, contentType)
	if err != nil {
		metrics.ScansFailed.Inc()
		return nil, fmt.Errorf("%w: %v", ocr.ErrInvalidImage, err)
	}

	run.advance(StateExtractingText)
	recognized, err := p.text.Recognize(ctx, png)
	if err != nil {
		// no readable text means no record; the user needs a new photo
		metrics.ScansFailed.Inc()
		p.logger.Error("scan.ocr.failed", "scan_id", scanID, "error", err)
		return nil, fmt.Errorf("recognizing text: %w", err)
	}

	run.advance(StateStructuredExtraction)
	result, extractErr := p.extractStructured(ctx, png, recognized.Text(), attempts, scanID)

	var rec *expense.Record
	if extractErr != nil {
		run.advance(StateHeuristicFallback)
		p.logger.Warn("scan.fallback",
			"scan_id", scanID,
			"error", extractErr,
			"ocr_confidence", recognized.AverageConfidence,
		)
		rec = recordFromHeuristic(heuristic.Extract(recognized.LineTexts()))
	} else {
		rec = recordFromStructured(result, recognized.Text())
	}

	run.advance(StateCategorizing)
	rec.Category = refineCategory(rec, result)

	run.advance(StateDone)
	rec.ID = scanID
	now := p.now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	metrics.ScansCompleted.WithLabelValues(string(rec.Source)).Inc()
	if rec.NeedsReview {
		metrics.RecordsFlagged.Inc()
	}
	p.logger.Info("scan.done",
		"scan_id", scanID,
		"source", rec.Source,
		"vendor", rec.Vendor.DisplayName(),
		"category", rec.Category,
		"confidence", rec.Confidence,
		"needs_review", rec.NeedsReview,
	)
	return rec, nil
}

// extractStructured performs up to `attempts` extraction calls. The client
// itself never retries; backoff and the attempt cap live here.
func (p *Pipeline) extractStructured(ctx context.Context, png []byte, text string, attempts int, scanID uuid.UUID) (*scanning.StructuredResult, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			p.sleep(retryBackoff[attempt-2])
		}

		result, err := p.extractor.Extract(ctx, png, text)
		if err == nil {
			return result, nil
		}
		lastErr = err

		kind := "unknown"
		retryable := false
		var extErr *scanning.ExtractionError
		if errors.As(err, &extErr) {
			kind = string(extErr.Kind)
			retryable = extErr.Retryable()
		}
		metrics.StructuredFailures.WithLabelValues(kind).Inc()
		p.logger.Error("scan.structured.failed",
			"scan_id", scanID,
			"attempt", attempt,
			"kind", kind,
			"error", err,
		)
		if !retryable {
			break
		}
	}
	return nil, lastErr
}

// refineCategory applies the shared classifier. It can only make the
// category more specific; a fallback record keeps its keyword category when
// the classifier has nothing better to say.
func refineCategory(rec *expense.Record, result *scanning.StructuredResult) category.Category {
	var itemCats []string
	if result != nil {
		itemCats = result.ItemCategories()
	}
	refined := category.Classify(itemCats, rec.ReceiptType)
	if refined == category.OtherBusiness && rec.Category != "" {
		return rec.Category
	}
	return refined
}

// recordFromStructured maps a structured result onto the canonical record,
// normalizing location casing and the date format on the way.
func recordFromStructured(r *scanning.StructuredResult, rawText string) *expense.Record {
	rec := &expense.Record{
		RawText:     rawText,
		ReceiptType: r.ReceiptType,
		Source:      expense.SourceStructured,
		Vendor: expense.VendorInfo{
			Name:       r.Vendor.Name,
			StoreName:  r.Vendor.StoreName,
			Address:    r.Vendor.Address,
			City:       strings.ToLower(strings.TrimSpace(r.Vendor.City)),
			State:      normalizeState(r.Vendor.State),
			PostalCode: r.Vendor.PostalCode,
			Phone:      r.Vendor.Phone,
			Website:    r.Vendor.Website,
			TaxID:      r.Vendor.TaxID,
		},
		Transaction: expense.TransactionInfo{
			Time:          r.Transaction.Time,
			TransactionID: r.Transaction.TransactionID,
			PaymentMethod: r.Transaction.PaymentMethod,
			CardLastFour:  r.Transaction.CardLastFour,
			AuthCode:      r.Transaction.AuthCode,
			RegisterID:    r.Transaction.RegisterID,
			CustomerID:    r.Transaction.CustomerID,
			Promotions:    r.Transaction.Promotions,
			Codes:         r.Transaction.Codes,
		},
		Totals: expense.Totals{
			Subtotal: r.Totals.Subtotal,
			Tax:      r.Totals.Tax,
			TaxRate:  r.Totals.TaxRate,
			Tip:      r.Totals.Tip,
			Discount: r.Totals.Discount,
			Total:    r.Totals.Total,
			CashBack: r.Totals.CashBack,
			Change:   r.Totals.Change,
		},
		Notes: expense.Notes{
			Handwriting:     r.Notes.Handwriting,
			Description:     r.Notes.Description,
			VehicleID:       r.Notes.VehicleID,
			Mileage:         r.Notes.Mileage,
			TripLabel:       r.Notes.TripLabel,
			BusinessPurpose: r.Notes.BusinessPurpose,
			RawText:         r.Notes.RawText,
		},
	}
	if rec.Notes.RawText == "" {
		rec.Notes.RawText = rawText
	}

	if canonical, ok := expense.ParseDate(r.Transaction.Date); ok {
		rec.Transaction.Date = canonical
	}

	for _, it := range r.Items {
		li := expense.LineItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal,
			Total:       it.Total,
			TaxCategory: it.TaxCategory,
			SKU:         it.SKU,
			Discount:    it.Discount,
			Codes:       it.Codes,
			IsExpense:   it.IsExpense,
			NeedsReview: it.NeedsReview,
		}
		if it.ExpenseCategory != "" {
			cat, _ := category.Canonicalize(it.ExpenseCategory)
			li.ExpenseCategory = cat
		}
		rec.Items = append(rec.Items, li)
	}

	rec.Confidence = scoreResult(r)
	rec.NeedsReview = needsReview(rec.Confidence, rec.Totals.Total, rec.Vendor.Resolved(), rec.AnyItemFlagged())
	return rec
}

// recordFromHeuristic maps the fallback fields onto the canonical record. A
// fallback record carries a fixed low confidence and always goes to review.
func recordFromHeuristic(f heuristic.Fields) *expense.Record {
	rec := &expense.Record{
		RawText:  f.RawText,
		Source:   expense.SourceHeuristic,
		Category: f.Category,
		Vendor: expense.VendorInfo{
			Name:       f.Vendor,
			Address:    f.Address,
			City:       f.City,
			State:      f.State,
			PostalCode: f.PostalCode,
		},
		Transaction: expense.TransactionInfo{
			Date:          f.Date,
			PaymentMethod: f.PaymentMethod,
		},
		Totals: expense.Totals{
			Total: f.Amount,
		},
		Notes: expense.Notes{
			RawText: f.RawText,
		},
	}

	for _, it := range f.Items {
		price := it.Price
		rec.Items = append(rec.Items, expense.LineItem{
			Description: it.Description,
			Total:       &price,
			IsExpense:   true,
		})
	}

	rec.Confidence = heuristicConfidence
	rec.NeedsReview = true
	return rec
}

// normalizeState uppercases 2-letter state codes; anything longer passes
// through uppercased so nothing is invented.
func normalizeState(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// scanRun tracks one scan's progress through the states, for the logs.
type scanRun struct {
	id     uuid.UUID
	state  State
	logger *slog.Logger
}

func (r *scanRun) advance(next State) {
	r.logger.Debug("scan.state", "scan_id", r.id, "from", r.state, "to", next)
	r.state = next
}
