package vision

// TextExtractor defines the interface for pulling raw text out of a
// receipt photo or PDF. The output is untrusted, unstructured input for
// the pipeline regardless of source quality.
type TextExtractor interface {
	// ExtractText transcribes all readable text from the document
	ExtractText(imageData []byte, contentType string) (string, error)
	// Close closes the extractor and releases resources
	Close() error
}
