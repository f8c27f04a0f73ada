package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/pantrylog/pantrylog/internal/textgen"
)

// isoFormat renders datetimes as ISO 8601 with millisecond precision,
// e.g. "2024-01-15T00:00:00.000Z"
const isoFormat = "2006-01-02T15:04:05.000Z07:00"

const normalizeInstructions = `You are a grocery receipt parser. Extract items and purchase date from the given text.

RULES:
- Extract only food/grocery items
- Ignore prices, totals, store names, slogans, tax
- Extract quantity if mentioned (e.g., "2 Apples" -> quantity: "2")
- Find purchase date if present (any format) and convert it to ISO 8601
- Return valid JSON only

OUTPUT FORMAT:
{
  "purchase_date": "ISO 8601 date string or null",
  "items": [
    { "raw_name": "item name as written", "quantity": "number as string or null" }
  ]
}

EXAMPLES:
Input: "2 Apples $3.99"
Output: { "purchase_date": null, "items": [{ "raw_name": "Apples", "quantity": "2" }] }

Input: "Date: 01/15/2024\nMilk\nBread"
Output: { "purchase_date": "2024-01-15T00:00:00.000Z", "items": [{ "raw_name": "Milk", "quantity": null }, { "raw_name": "Bread", "quantity": null }] }

IMPORTANT: Return ONLY valid JSON, no other text.`

var (
	// D/D/YYYY-like or YYYY/M/D-like, separators / or -
	datePattern = regexp.MustCompile(`(\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}|\d{4}[/\-]\d{1,2}[/\-]\d{1,2})`)

	// Receipt noise that never describes an item
	noisePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)total`),
		regexp.MustCompile(`(?i)subtotal`),
		regexp.MustCompile(`(?i)tax`),
		regexp.MustCompile(`^\$[\d.]+$`),
		regexp.MustCompile(`^\d+\.\d{2}$`),
		regexp.MustCompile(`(?i)thank you`),
		regexp.MustCompile(`(?i)visit us`),
		regexp.MustCompile(`(?i)store`),
		regexp.MustCompile(`(?i)receipt`),
		regexp.MustCompile(`(?i)change`),
		regexp.MustCompile(`(?i)cash`),
		regexp.MustCompile(`(?i)card`),
		regexp.MustCompile(`(?i)visa`),
		regexp.MustCompile(`(?i)mastercard`),
	}

	currencyPattern = regexp.MustCompile(`\$[\d.]+`)
	quantityPattern = regexp.MustCompile(`(?i)^(\d+)\s*x?\s*(.+)$`)
)

var dateFormats = []string{
	"1/2/2006",
	"1-2-2006",
	"1/2/06",
	"1-2-06",
	"2006/1/2",
	"2006-1-2",
}

// Normalizer turns raw receipt or manual text into a structured item list
// plus an optional purchase date. The backend is optional; with no backend
// (or after the circuit breaker trips) only the deterministic rules run.
type Normalizer struct {
	gen    textgen.Generator
	health *textgen.Health
}

// NewNormalizer creates a Normalizer. gen may be nil for rules-only operation.
func NewNormalizer(gen textgen.Generator, health *textgen.Health) *Normalizer {
	if health == nil {
		health = textgen.NewHealth()
	}
	return &Normalizer{gen: gen, health: health}
}

// Normalize extracts items and a purchase date from raw text. It never
// fails: every backend error falls through to the deterministic rules.
func (n *Normalizer) Normalize(ctx context.Context, rawText string) NormalizedInput {
	if strings.TrimSpace(rawText) == "" {
		return NormalizedInput{Items: []RawLine{}}
	}

	if n.gen != nil && n.health.Available() {
		out, err := n.normalizeWithBackend(ctx, rawText)
		if err == nil {
			return out
		}
		if textgen.IsQuotaError(err) {
			slog.Warn("Backend quota exceeded, disabling for process lifetime")
			n.health.MarkUnavailable(time.Now())
		}
		slog.Warn("Backend normalization failed, using rules", "error", err)
	}

	return normalizeWithRules(rawText)
}

func (n *Normalizer) normalizeWithBackend(ctx context.Context, rawText string) (NormalizedInput, error) {
	text, err := n.gen.Generate(ctx, normalizeInstructions, rawText)
	if err != nil {
		return NormalizedInput{}, err
	}

	jsonText, err := extractJSONObject(text)
	if err != nil {
		return NormalizedInput{}, err
	}

	var out NormalizedInput
	if err := json.Unmarshal([]byte(jsonText), &out); err != nil {
		return NormalizedInput{}, &ParseError{Reason: err.Error()}
	}
	if out.Items == nil {
		return NormalizedInput{}, &ParseError{Reason: "items is not an array"}
	}

	return out, nil
}

// normalizeWithRules is the deterministic fallback. Line by line: capture
// the first date-like line as the purchase date, skip noise, strip embedded
// currency amounts, split off a leading quantity token.
func normalizeWithRules(rawText string) NormalizedInput {
	out := NormalizedInput{Items: []RawLine{}}

	for _, line := range strings.Split(rawText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Only the first date-like line is treated as the purchase date;
		// later ones run through the ordinary line rules.
		if out.PurchaseDate == "" {
			if match := datePattern.FindString(line); match != "" {
				if parsed, ok := parseReceiptDate(match); ok {
					out.PurchaseDate = parsed.UTC().Format(isoFormat)
				}
				continue
			}
		}

		if isNoiseLine(line) {
			continue
		}

		name := strings.TrimSpace(currencyPattern.ReplaceAllString(line, ""))
		if name == "" {
			continue
		}

		if match := quantityPattern.FindStringSubmatch(name); match != nil {
			out.Items = append(out.Items, RawLine{
				RawName:  strings.TrimSpace(match[2]),
				Quantity: match[1],
			})
		} else {
			out.Items = append(out.Items, RawLine{RawName: name})
		}
	}

	return out
}

func isNoiseLine(line string) bool {
	for _, pattern := range noisePatterns {
		if pattern.MatchString(line) {
			return true
		}
	}
	return false
}

func parseReceiptDate(token string) (time.Time, bool) {
	for _, format := range dateFormats {
		if t, err := time.Parse(format, token); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
