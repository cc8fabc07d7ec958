package notification

import (
	"strings"
	"testing"

	"NuamTributario/internal/ingest"

	"github.com/stretchr/testify/assert"
)

func TestBuildBody(t *testing.T) {
	archivo := &ingest.ArchivoCarga{
		ID:             12,
		NombreOriginal: "calificaciones.csv",
		EstadoProceso:  ingest.EstadoError,
		DetalleProceso: "",
	}
	resumen := ingest.ResumenProceso{TotalRegistros: 5, Nuevos: 2, Actualizados: 1, Rechazados: 2}
	errores := []ingest.ErrorFila{
		{Fila: 3, Error: "campo obligatorio faltante: instrumento"},
		{Fila: 5, Error: "valor decimal invalido"},
	}

	body := buildBody(archivo, resumen, errores)

	assert.Contains(t, body, "calificaciones.csv")
	assert.Contains(t, body, "Total de registros: 5")
	assert.Contains(t, body, "Rechazados: 2")
	assert.Contains(t, body, "fila 3: campo obligatorio faltante")
	assert.Contains(t, body, "fila 5:")
}

func TestBuildBodyTruncaErrores(t *testing.T) {
	errores := make([]ingest.ErrorFila, 25)
	for i := range errores {
		errores[i] = ingest.ErrorFila{Fila: i + 2, Error: "rechazada"}
	}
	body := buildBody(&ingest.ArchivoCarga{NombreOriginal: "x.csv"},
		ingest.ResumenProceso{TotalRegistros: 25, Rechazados: 25}, errores)

	assert.Contains(t, body, "y 15 errores mas")
	// Solo las primeras filas aparecen listadas.
	assert.Equal(t, maxErroresEnCorreo, strings.Count(body, "fila "))
}
