package inventory

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pantrylog/pantrylog/internal/pipeline"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// batchResponse pairs a pending batch ID with its current items
type batchResponse struct {
	BatchID string `json:"batch_id"`
	Items   []Item `json:"items"`
}

// handleProcessText runs raw text through the pipeline
func (s *Server) handleProcessText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	batchID, items := s.service.Process(r.Context(), req.Text)
	writeJSON(w, http.StatusOK, batchResponse{BatchID: batchID, Items: items})
}

// handleProcessImage extracts text from an uploaded receipt and runs the
// pipeline on the result
func (s *Server) handleProcessImage(w http.ResponseWriter, r *http.Request) {
	// Parse multipart form (max 50MB to handle high-resolution phone photos)
	maxFormSize := int64(50 << 20) // 50MB
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		setCORSHeaders(w)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errorMsg})
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		setCORSHeaders(w)
		errorMsg := "No file provided"
		if err.Error() == "http: no such file" {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errorMsg})
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		setCORSHeaders(w)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "File is too large. Maximum size is 50MB. Please compress or resize your image.",
		})
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		setCORSHeaders(w)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Error reading file. Please try again.",
		})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		switch ext {
		case ".jpg", ".jpeg":
			contentType = "image/jpeg"
		case ".png":
			contentType = "image/png"
		case ".pdf":
			contentType = "application/pdf"
		case ".heic":
			contentType = "image/heic"
		case ".heif":
			contentType = "image/heif"
		default:
			contentType = "application/octet-stream"
		}
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	batchID, items, err := s.service.ProcessImage(r.Context(), data, contentType)
	if err != nil {
		slog.Error("Error processing image", "filename", header.Filename, "error", err)
		setCORSHeaders(w)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, batchResponse{BatchID: batchID, Items: items})
}

// handleGetPendingBatch returns the current items of a pending batch
func (s *Server) handleGetPendingBatch(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("batchID")
	items, err := s.service.PendingItems(batchID)
	if err != nil {
		corsError(w, "Batch not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, batchResponse{BatchID: batchID, Items: items})
}

// handleUpdatePendingItem replaces one item in a pending batch
func (s *Server) handleUpdatePendingItem(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("batchID")
	itemID := r.PathValue("itemID")

	var edited Item
	if err := json.NewDecoder(r.Body).Decode(&edited); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	edited.ID = itemID

	updated, err := s.service.UpdatePending(batchID, edited)
	if err != nil {
		corsError(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// handleCommitBatch persists a pending batch
func (s *Server) handleCommitBatch(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("batchID")

	items, err := s.service.Commit(r.Context(), batchID)
	if err != nil {
		slog.Error("Error committing batch", "batch_id", batchID, "error", err)
		if strings.Contains(err.Error(), "batch not found") {
			corsError(w, "Batch not found", http.StatusNotFound)
			return
		}
		// The batch is kept for retry on storage errors
		corsError(w, "Error saving batch", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, items)
}

// handleBackendStatus reports the circuit breaker state
func (s *Server) handleBackendStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"configured": s.health != nil}
	if s.health != nil {
		resp["available"] = s.health.Available()
		if disabledAt, ok := s.health.DisabledAt(); ok {
			resp["disabled_at"] = disabledAt
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleBackendReset re-enables the intelligent backend after a quota trip
func (s *Server) handleBackendReset(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		corsError(w, "No intelligent backend configured", http.StatusConflict)
		return
	}
	s.health.Reset()
	slog.Info("Backend circuit breaker reset")
	writeJSON(w, http.StatusOK, map[string]any{"available": true})
}

// handleListItems returns all items, optionally filtered by category
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	var items []*Item
	var err error

	if category := r.URL.Query().Get("category"); category != "" {
		cat := pipeline.FoodCategory(category)
		if !cat.Valid() {
			corsError(w, "Unknown category", http.StatusBadRequest)
			return
		}
		items, err = s.service.ListByCategory(cat)
	} else {
		items, err = s.service.ListItems()
	}
	if err != nil {
		slog.Error("Error listing items", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// handleListExpiring returns items expiring within ?days=N (default 7)
func (s *Server) handleListExpiring(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			corsError(w, "Invalid days parameter", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	items, err := s.service.ListExpiringSoon(days)
	if err != nil {
		slog.Error("Error listing expiring items", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// handleCreateItem saves a manually entered item
func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var item Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if item.Name == "" {
		corsError(w, "Item name required", http.StatusBadRequest)
		return
	}

	if err := s.service.CreateItem(&item); err != nil {
		slog.Error("Error creating item", "error", err)
		corsError(w, "Error saving item", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// handleGetItem returns a single item
func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	item, err := s.service.GetItem(id)
	if err != nil {
		corsError(w, "Item not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// handleUpdateItem replaces a persisted item
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var item Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	item.ID = id

	if err := s.service.UpdateItem(&item); err != nil {
		if strings.Contains(err.Error(), "not found") {
			corsError(w, "Item not found", http.StatusNotFound)
			return
		}
		slog.Error("Error updating item", "id", id, "error", err)
		corsError(w, "Error saving item", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// handleDeleteItem deletes an item
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.service.DeleteItem(id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			corsError(w, "Item not found", http.StatusNotFound)
			return
		}
		corsError(w, "Error deleting item", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListReceipts returns all receipts
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, receipts)
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	receipt, err := s.service.GetReceipt(id)
	if err != nil {
		corsError(w, "Receipt not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}
