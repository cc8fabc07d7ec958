package carga

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"NuamTributario/api"
	"NuamTributario/api/constants"
	"NuamTributario/internal/ingest"
	"NuamTributario/internal/validation"

	"github.com/xuri/excelize/v2"
)

const defaultPreviewRows = 20

// PreviewArchivo parses an uploaded file without persisting anything and
// returns the normalized headers plus the first rows, so operators can check
// the mapping before committing a carga.
func PreviewArchivo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, _, err := extractFromRequest(r)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		limit := defaultPreviewRows
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, convErr := strconv.Atoi(v); convErr == nil && n > 0 {
				limit = n
			}
		}
		total := len(rows)
		if len(rows) > limit {
			rows = rows[:limit]
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":     true,
			"columnas":    columnOrder(rows),
			"total_filas": total,
			"rows":        rows,
		})
	}
}

// ConvertirArchivo converts any supported format (CSV, XLS, PDF) into a
// normalized XLSX workbook and streams it back as an attachment.
func ConvertirArchivo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, filename, err := extractFromRequest(r)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(rows) == 0 {
			api.RespondWithError(w, http.StatusBadRequest, ingest.ErrNoUsableRows.Error())
			return
		}

		cols := columnOrder(rows)
		f := excelize.NewFile()
		sheet := f.GetSheetName(0)

		header := make([]interface{}, len(cols))
		for i, c := range cols {
			header[i] = c
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for i, row := range rows {
			values := make([]interface{}, len(cols))
			for j, c := range cols {
				values[j] = row.Get(c)
			}
			cell := fmt.Sprintf("A%d", i+2)
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}

		base := strings.TrimSuffix(filename, filepathExt(filename))
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+".xlsx"))
		if _, err := f.WriteTo(w); err != nil {
			api.LogError("fallo al escribir el XLSX convertido: %v", err)
		}
	}
}

// extractFromRequest runs the shared multipart-to-rows path of preview and
// convert.
func extractFromRequest(r *http.Request) ([]ingest.Row, string, error) {
	if r.Method != http.MethodPost {
		return nil, "", errors.New(constants.ErrMethodNotAllowed)
	}
	if err := r.ParseMultipartForm(validation.MaxUploadBytes); err != nil {
		return nil, "", fmt.Errorf("formulario multipart invalido: %w", err)
	}
	file, header, err := r.FormFile("archivo")
	if err != nil {
		return nil, "", errors.New(constants.ErrArchivoRequerido)
	}
	defer file.Close()

	if err := validation.ValidateUploadFile(header.Filename, header.Size); err != nil {
		return nil, "", err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}

	delimitador := r.FormValue("delimitador")
	if delimitador == "" {
		delimitador = ","
	}
	rows, err := ingest.NewExtractor().Extract(data, header.Filename, delimitador)
	if err != nil {
		return nil, "", err
	}
	return rows, header.Filename, nil
}

// columnOrder returns a stable column ordering: known fields first, then the
// factor columns in numeric order, then anything else alphabetically.
func columnOrder(rows []ingest.Row) []string {
	seen := map[string]bool{}
	for _, row := range rows {
		for k := range row {
			seen[k] = true
		}
	}

	known := []string{
		ingest.FieldIdentificadorCliente, ingest.FieldInstrumento, ingest.FieldMoneda,
		ingest.FieldMercado, ingest.FieldEjercicioFiscal, ingest.FieldPais,
		ingest.FieldSecuenciaEvento, ingest.FieldObservaciones,
	}
	cols := make([]string, 0, len(seen))
	for _, k := range known {
		if seen[k] {
			cols = append(cols, k)
			delete(seen, k)
		}
	}
	for n := ingest.FirstFactor; n <= ingest.LastFactor; n++ {
		k := ingest.FactorField(n)
		if seen[k] {
			cols = append(cols, k)
			delete(seen, k)
		}
	}
	rest := make([]string, 0, len(seen))
	for k := range seen {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

func filepathExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}
