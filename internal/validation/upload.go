// Package validation holds request prevalidation helpers shared by the
// middleware and the upload handlers.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxUploadBytes caps uploaded file size (32 MB, the multipart memory limit
// the handlers use).
const MaxUploadBytes = 32 << 20

var allowedExtensions = map[string]bool{
	".csv":  true,
	".xls":  true,
	".xlsx": true,
	".pdf":  true,
}

// ValidateUploadFile checks extension and size before any parsing happens.
func ValidateUploadFile(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("extension no permitida: %s (se aceptan .csv, .xls, .xlsx, .pdf)", ext)
	}
	if size <= 0 {
		return fmt.Errorf("archivo vacio: %s", filename)
	}
	if size > MaxUploadBytes {
		return fmt.Errorf("archivo demasiado grande: %d bytes (maximo %d)", size, MaxUploadBytes)
	}
	return nil
}

// ExtractUserID pulls user_id from a JSON body, a form field or a query
// parameter, restoring the body for downstream handlers.
func ExtractUserID(r *http.Request) (string, error) {
	if v := r.URL.Query().Get("user_id"); v != "" {
		return v, nil
	}
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return "", err
		}
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewBuffer(body))
		var payload struct {
			UserID string `json:"user_id"`
		}
		if err := json.Unmarshal(body, &payload); err == nil && payload.UserID != "" {
			return payload.UserID, nil
		}
		return "", fmt.Errorf("user_id requerido en el cuerpo")
	}
	if v := r.FormValue("user_id"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("user_id requerido")
}
