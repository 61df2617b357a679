package refuel

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// historyResponse wraps the derived history with its stats; stats is null
// when fewer than two records exist
type historyResponse struct {
	History []*HistoryEntry `json:"history"`
	Stats   *Stats          `json:"stats"`
}

// handleHistory returns the derived history and stats for all records
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, stats, err := s.service.History()
	if err != nil {
		slog.Error("Error deriving history", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(historyResponse{History: history, Stats: stats}); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// addRecordRequest is the JSON body for creating a record
type addRecordRequest struct {
	Date       time.Time `json:"date"`
	Odometer   float64   `json:"odometer"`
	FuelAmount float64   `json:"fuel_amount"`
	Price      float64   `json:"price"`
	Station    string    `json:"station"`
}

// handleAddRecord creates a new refueling record
func (s *Server) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	var req addRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	record, err := s.service.AddRecord(req.Date, req.Odometer, req.FuelAmount, req.Price, req.Station)
	if err != nil {
		slog.Error("Error adding record", "error", err)
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(record); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetRecord returns a single raw record
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Record ID required", http.StatusBadRequest)
		return
	}
	record, err := s.service.GetRecord(id)
	if err != nil {
		corsError(w, "Record not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(record); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleDeleteRecord deletes a record
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Record ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteRecord(id); err != nil {
		corsError(w, "Record not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleUploadScan handles meter/receipt photo upload
func (s *Server) handleUploadScan(w http.ResponseWriter, r *http.Request) {
	// Parse multipart form (max 50MB to handle high-resolution phone photos)
	maxFormSize := int64(50 << 20) // 50MB
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		json.NewEncoder(w).Encode(map[string]string{
			"error": errorMsg,
		})
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		errorMsg := "No file provided"
		if err.Error() == "http: no such file" {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		json.NewEncoder(w).Encode(map[string]string{
			"error": errorMsg,
		})
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "File is too large. Maximum size is 50MB. Please compress or resize your image.",
		})
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Error reading file. Please try again.",
		})
		return
	}

	// Determine content type
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

	// Preserve HEIC/HEIF MIME types so conversion logic can detect them
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	scan, err := s.service.ProcessScan(header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing scan", "filename", header.Filename, "error", err)
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(scan); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleListScans returns a list of all archived scans
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	scans, err := s.service.ListScans()
	if err != nil {
		slog.Error("Error listing scans", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if scans == nil {
		scans = []*Scan{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(scans); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetScan returns a single scan
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Scan ID required", http.StatusBadRequest)
		return
	}
	scan, err := s.service.GetScan(id)
	if err != nil {
		corsError(w, "Scan not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(scan); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetScanImage returns the archived image for a scan
func (s *Server) handleGetScanImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Scan ID required", http.StatusBadRequest)
		return
	}
	data, contentType, err := s.service.GetScanImage(id)
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteScan deletes a scan and its archived image
func (s *Server) handleDeleteScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Scan ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteScan(id); err != nil {
		corsError(w, "Error deleting scan", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
