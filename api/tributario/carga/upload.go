// Package carga expone la recepcion y el ciclo de vida de los archivos de
// carga masiva de calificaciones.
package carga

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"NuamTributario/api"
	"NuamTributario/api/constants"
	"NuamTributario/internal/checksum"
	"NuamTributario/internal/filestore"
	"NuamTributario/internal/ingest"
	"NuamTributario/internal/logger"
	"NuamTributario/internal/validation"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Deps groups the collaborators the carga handlers share.
type Deps struct {
	Pool        *pgxpool.Pool
	Orquestador *ingest.Orchestrator
	Files       filestore.Store
}

// UploadArchivo receives a multipart upload, persists the original file and
// runs the ingestion pipeline synchronously. The response carries the final
// job state and summary.
func UploadArchivo(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if r.Method != http.MethodPost {
			api.RespondWithError(w, http.StatusMethodNotAllowed, constants.ErrMethodNotAllowed)
			return
		}
		corredorID := api.GetCorredorIDFromContext(ctx)
		if corredorID == 0 {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrCorredorRequerido)
			return
		}

		if err := r.ParseMultipartForm(validation.MaxUploadBytes); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "formulario multipart invalido: "+err.Error())
			return
		}
		file, header, err := r.FormFile("archivo")
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrArchivoRequerido)
			return
		}
		defer file.Close()

		if err := validation.ValidateUploadFile(header.Filename, header.Size); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		data, err := io.ReadAll(file)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "no se pudo leer el archivo: "+err.Error())
			return
		}

		modo := strings.ToUpper(strings.TrimSpace(r.FormValue("modo_carga")))
		if modo == "" {
			modo = ingest.ModoFactor
		}
		if modo != ingest.ModoFactor && modo != ingest.ModoMonto {
			api.RespondWithError(w, http.StatusBadRequest, "modo_carga invalido: debe ser FACTOR o MONTO")
			return
		}
		delimitador := r.FormValue("delimitador")
		if delimitador == "" {
			delimitador = ","
		}

		sum := checksum.Sum(data)
		var duplicadoDe *int64
		var prevID int64
		err = deps.Pool.QueryRow(ctx, `
			SELECT id FROM archivos_carga
			WHERE corredor_id = $1 AND checksum_sha256 = $2
			ORDER BY id DESC LIMIT 1`, corredorID, sum).Scan(&prevID)
		if err == nil {
			duplicadoDe = &prevID
		}

		key := fmt.Sprintf("cargas/%d/%s%s", corredorID, uuid.NewString(), filepath.Ext(header.Filename))
		ruta, err := deps.Files.Save(ctx, key, data)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		var submittedBy interface{}
		var submittedByID *int64
		if uid, convErr := strconv.ParseInt(api.GetUserIDFromContext(ctx), 10, 64); convErr == nil {
			submittedBy = uid
			submittedByID = &uid
		}

		var archivoID int64
		err = deps.Pool.QueryRow(ctx, `
			INSERT INTO archivos_carga
				(corredor_id, submitted_by, nombre_original, ruta_almacenamiento,
				 tipo_mime, tamano_bytes, checksum_sha256, modo_carga,
				 periodo_hint, mercado_hint, delimitador)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11)
			RETURNING id`,
			corredorID, submittedBy, header.Filename, ruta,
			header.Header.Get("Content-Type"), header.Size, sum, modo,
			strings.TrimSpace(r.FormValue("periodo")), strings.TrimSpace(r.FormValue("mercado")),
			delimitador).Scan(&archivoID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		archivo := &ingest.ArchivoCarga{
			ID:             archivoID,
			CorredorID:     corredorID,
			SubmittedBy:    submittedByID,
			NombreOriginal: header.Filename,
			ChecksumSHA256: sum,
			ModoCarga:      modo,
			PeriodoHint:    strings.TrimSpace(r.FormValue("periodo")),
			MercadoHint:    strings.TrimSpace(r.FormValue("mercado")),
			Delimitador:    delimitador,
		}
		logger.Audit("carga %d recibida: %s (%d bytes) corredor=%d", archivoID, header.Filename, header.Size, corredorID)

		if err := deps.Orquestador.Procesar(ctx, archivo, data); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "fallo de almacenamiento durante el proceso: "+err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":          true,
			"archivo_id":       archivoID,
			"estado":           archivo.EstadoProceso,
			"detalle":          archivo.DetalleProceso,
			"resumen":          archivo.Resumen,
			"errores_por_fila": archivo.ErroresPorFila,
			"duplicado_de":     duplicadoDe,
			"tiempo_seg":       archivo.TiempoProcesamientoSeg,
		})
	}
}
