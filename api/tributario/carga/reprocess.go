package carga

import (
	"encoding/json"
	"net/http"

	"NuamTributario/api"
	"NuamTributario/api/constants"
	"NuamTributario/internal/checksum"
	"NuamTributario/internal/ingest"
	"NuamTributario/internal/logger"

	"github.com/jackc/pgx/v5"
)

// ReprocesarArchivo reloads the stored original file of a finished job and
// runs the pipeline again over it. Re-ingestion is idempotent at the ledger
// level: rows that already exist turn into updates.
func ReprocesarArchivo(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if r.Method != http.MethodPost {
			api.RespondWithError(w, http.StatusMethodNotAllowed, constants.ErrMethodNotAllowed)
			return
		}
		id, err := archivoIDFromRequest(r)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		query := `
			SELECT a.id, a.corredor_id, a.submitted_by, a.nombre_original,
			       a.ruta_almacenamiento, COALESCE(a.checksum_sha256, ''),
			       a.modo_carga, COALESCE(a.periodo_hint, ''), COALESCE(a.mercado_hint, ''),
			       a.delimitador, a.estado_proceso
			FROM archivos_carga a
			WHERE a.id = $1`
		args := []interface{}{id}
		if corredorID := api.GetCorredorIDFromContext(ctx); corredorID != 0 {
			query += " AND a.corredor_id = $2"
			args = append(args, corredorID)
		}

		archivo := &ingest.ArchivoCarga{}
		var sum string
		err = deps.Pool.QueryRow(ctx, query, args...).Scan(
			&archivo.ID, &archivo.CorredorID, &archivo.SubmittedBy, &archivo.NombreOriginal,
			&archivo.RutaAlmacenamiento, &sum, &archivo.ModoCarga,
			&archivo.PeriodoHint, &archivo.MercadoHint, &archivo.Delimitador,
			&archivo.EstadoProceso)
		if err != nil {
			if err == pgx.ErrNoRows {
				api.RespondWithError(w, http.StatusNotFound, constants.ErrNoEncontrado)
				return
			}
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if archivo.EstadoProceso == ingest.EstadoProcesando {
			api.RespondWithError(w, http.StatusConflict, "el archivo ya se esta procesando")
			return
		}

		data, err := deps.Files.Load(ctx, archivo.RutaAlmacenamiento)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if sum != "" && !checksum.Matches(sum, data) {
			api.RespondWithError(w, http.StatusConflict,
				"el archivo almacenado no coincide con el checksum registrado")
			return
		}
		archivo.ChecksumSHA256 = sum

		logger.Audit("carga %d reprocesada por usuario %s", archivo.ID, api.GetUserIDFromContext(ctx))
		if err := deps.Orquestador.Procesar(ctx, archivo, data); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "fallo de almacenamiento durante el proceso: "+err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":          true,
			"archivo_id":       archivo.ID,
			"estado":           archivo.EstadoProceso,
			"detalle":          archivo.DetalleProceso,
			"resumen":          archivo.Resumen,
			"errores_por_fila": archivo.ErroresPorFila,
			"tiempo_seg":       archivo.TiempoProcesamientoSeg,
		})
	}
}
