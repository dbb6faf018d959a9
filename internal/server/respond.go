package server

import (
	"encoding/json"
	"net/http"

	"github.com/medienwerk/metadata-api/internal/models"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, detail, code string) {
	respondJSON(w, status, models.ErrorInfo{Detail: detail, ErrorCode: code})
}
