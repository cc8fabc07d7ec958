package validation

import (
	"bytes"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUploadFile(t *testing.T) {
	assert.NoError(t, ValidateUploadFile("carga.csv", 100))
	assert.NoError(t, ValidateUploadFile("CARGA.XLSX", 100))
	assert.NoError(t, ValidateUploadFile("carga.xls", 100))
	assert.NoError(t, ValidateUploadFile("carga.pdf", MaxUploadBytes))

	assert.Error(t, ValidateUploadFile("carga.txt", 100))
	assert.Error(t, ValidateUploadFile("carga", 100))
	assert.Error(t, ValidateUploadFile("carga.csv", 0))
	assert.Error(t, ValidateUploadFile("carga.csv", MaxUploadBytes+1))
}

func TestExtractUserIDDesdeQuery(t *testing.T) {
	r := httptest.NewRequest("POST", "/x?user_id=42", nil)
	id, err := ExtractUserID(r)
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestExtractUserIDDesdeJSONRestauraElCuerpo(t *testing.T) {
	body := `{"user_id":"42","otro":"campo"}`
	r := httptest.NewRequest("POST", "/x", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")

	id, err := ExtractUserID(r)
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	// El cuerpo debe seguir disponible para el handler siguiente.
	restante, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(restante))
}

func TestExtractUserIDFaltante(t *testing.T) {
	r := httptest.NewRequest("POST", "/x", bytes.NewReader([]byte(`{}`)))
	r.Header.Set("Content-Type", "application/json")
	_, err := ExtractUserID(r)
	assert.Error(t, err)
}
