package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/franckalain/halalscan/internal/annotate"
	"github.com/franckalain/halalscan/internal/database"
	"github.com/franckalain/halalscan/internal/models"
	"github.com/franckalain/halalscan/internal/scan"
	"github.com/gorilla/mux"
)

// userHeader carries the id of the signed-in user. Authentication happens in
// front of this service.
const userHeader = "X-User-ID"

type analysis struct {
	Result models.ScanResult `json:"result"`
	Report scan.Report       `json:"report"`
}

func (s *Server) analyze(result models.ScanResult) analysis {
	return analysis{Result: result, Report: scan.NewReport(result, s.table)}
}

// predict sends an image to the model and normalizes its response
func (s *Server) predict(ctx context.Context, imageData []byte) (analysis, error) {
	if len(imageData) == 0 {
		return analysis{}, fmt.Errorf("empty image")
	}
	ctx, cancel := context.WithTimeout(ctx, predictTimeout)
	defer cancel()

	raw, err := s.model.ProcessImage(ctx, imageData)
	if err != nil {
		return analysis{}, err
	}
	result := scan.Aggregate(raw)
	log.Printf("Processed image: status=%s product=%q ingredients=%d e-codes=%d confidence=%.2f",
		result.HalalStatus, result.ProductName, len(result.Ingredients), len(result.ECodes), result.Confidence)
	return s.analyze(result), nil
}

func (s *Server) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text  string   `json:"text"`
		Codes []string `json:"codes"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"segments": annotate.Annotate(req.Text, req.Codes, s.table),
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	result, err := scan.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.analyze(result))
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing image")
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image")
		return
	}

	out, err := s.predict(r.Context(), imageData)
	if err != nil {
		log.Printf("Error processing image: %v", err)
		writeError(w, http.StatusBadGateway, "failed to process image")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	limit := database.MaxHistory
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	scans, err := s.db.ListScans(r.Context(), userID, limit)
	if err != nil {
		log.Printf("Error retrieving history: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to retrieve history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": scans})
}

func (s *Server) handleSaveScan(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	result, err := scan.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.db.SaveScan(r.Context(), r.Header.Get(userHeader), r.URL.Query().Get("imageUri"), result)
	if errors.Is(err, database.ErrNoUser) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		log.Printf("Error saving scan: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save scan")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"scan": rec})
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	rec, err := s.db.GetScan(r.Context(), r.Header.Get(userHeader), mux.Vars(r)["id"])
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "scan not found")
		return
	}
	if err != nil {
		log.Printf("Error retrieving scan: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to retrieve scan")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scan": rec, "report": scan.NewReport(rec.ScanResult, s.table)})
}

func (s *Server) handleDeleteScan(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := s.db.DeleteScan(r.Context(), r.Header.Get(userHeader), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "scan not found")
		return
	}
	if err != nil {
		log.Printf("Error deleting scan: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete scan")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
