package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is the in-memory Store used by the pipeline tests.
type fakeStore struct {
	mu         sync.Mutex
	paises     map[string]*Pais
	nextPaisID int64
	seq        int64
	registros  map[string]*Calificacion

	procesando   bool
	finalEstado  string
	finalDetalle string
	finalResumen ResumenProceso
	finalErrores []ErrorFila
	historial    []*HistorialEntry

	failUpsert error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		paises:    make(map[string]*Pais),
		registros: make(map[string]*Calificacion),
		seq:       9999,
	}
}

func (f *fakeStore) GetOrCreatePais(ctx context.Context, codigoISO3 string) (*Pais, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	code := strings.ToUpper(codigoISO3)
	if p, ok := f.paises[code]; ok {
		return p, nil
	}
	f.nextPaisID++
	p := &Pais{ID: f.nextPaisID, Nombre: code, CodigoISO3: code}
	f.paises[code] = p
	return p, nil
}

func (f *fakeStore) MarcarProcesando(ctx context.Context, archivoID int64, startedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procesando = true
	return nil
}

func (f *fakeStore) FinalizarArchivo(ctx context.Context, archivoID int64, estado, detalle string,
	resumen ResumenProceso, errores []ErrorFila, startedAt, finishedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalEstado = estado
	f.finalDetalle = detalle
	f.finalResumen = resumen
	f.finalErrores = errores
	return nil
}

func upsertKey(c *Calificacion) string {
	ejercicio := 0
	if c.EjercicioFiscal != nil {
		ejercicio = *c.EjercicioFiscal
	}
	return fmt.Sprintf("%d|%s|%s|%d|%s",
		c.CorredorID, c.IdentificadorCliente, c.Instrumento, ejercicio, c.Mercado)
}

func (f *fakeStore) UpsertCalificacion(ctx context.Context, calif *Calificacion) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsert != nil {
		return false, f.failUpsert
	}
	if err := calif.Validate(); err != nil {
		return false, err
	}
	key := upsertKey(calif)
	if prev, ok := f.registros[key]; ok {
		calif.ID = prev.ID
		calif.SecuenciaEvento = prev.SecuenciaEvento
		copia := *calif
		f.registros[key] = &copia
		return false, nil
	}
	if calif.SecuenciaEvento == nil {
		f.seq++
		seq := f.seq
		calif.SecuenciaEvento = &seq
	}
	calif.ID = int64(len(f.registros) + 1)
	copia := *calif
	f.registros[key] = &copia
	return true, nil
}

func (f *fakeStore) AppendHistorial(ctx context.Context, entry *HistorialEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historial = append(f.historial, entry)
	return nil
}

func (f *fakeStore) registro(ident, instrumento string) *Calificacion {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.registros {
		if c.IdentificadorCliente == ident && c.Instrumento == instrumento {
			return c
		}
	}
	return nil
}

type fakeNotifier struct {
	ch chan ResumenProceso
}

func (n *fakeNotifier) NotificarResumen(archivo *ArchivoCarga, resumen ResumenProceso, errores []ErrorFila) {
	n.ch <- resumen
}

func nuevaCarga() *ArchivoCarga {
	return &ArchivoCarga{
		ID:             1,
		CorredorID:     7,
		NombreOriginal: "calificaciones.csv",
		ModoCarga:      ModoFactor,
		Delimitador:    ",",
	}
}

func orquestadorDePrueba(store *fakeStore, notifier Notifier) *Orchestrator {
	resolver := NewCountryResolver(store, DefaultCountryPatterns())
	return NewOrchestrator(store, NewExtractor(), resolver, notifier)
}

const csvBase = "RUT,Instrumento,Mercado,Factor 8,Factor 9,Pais\n" +
	"12.345.678-9,FONDO A,BCS,0.2,0.3,CHL\n" +
	"98.765.432-1,FONDO B,BCS,0.1,0.4,CHL\n"

func TestProcesarCSVCompleto(t *testing.T) {
	store := newFakeStore()
	orch := orquestadorDePrueba(store, nil)
	archivo := nuevaCarga()

	err := orch.Procesar(context.Background(), archivo, []byte(csvBase))
	require.NoError(t, err)

	assert.Equal(t, EstadoOK, archivo.EstadoProceso)
	assert.Equal(t, ResumenProceso{TotalRegistros: 2, Nuevos: 2}, *archivo.Resumen)
	assert.Empty(t, archivo.ErroresPorFila)

	c := store.registro("12.345.678-9", "FONDO A")
	require.NotNil(t, c)
	// Modo factor: los valores pasan sin reescalar y el factor de
	// actualizacion conserva la suma.
	assert.Equal(t, "0.2", c.Factor(8).String())
	assert.Equal(t, "0.3", c.Factor(9).String())
	assert.Equal(t, "0.5", c.FactorActualizacion.String())
	assert.Equal(t, "CLP", c.Moneda)
	require.NotNil(t, c.PaisID)
}

func TestProcesarAsignaSecuenciaDesdeElContador(t *testing.T) {
	store := newFakeStore()
	orch := orquestadorDePrueba(store, nil)

	err := orch.Procesar(context.Background(), nuevaCarga(), []byte(csvBase))
	require.NoError(t, err)

	primero := store.registro("12.345.678-9", "FONDO A")
	segundo := store.registro("98.765.432-1", "FONDO B")
	require.NotNil(t, primero.SecuenciaEvento)
	require.NotNil(t, segundo.SecuenciaEvento)
	secuencias := map[int64]bool{
		*primero.SecuenciaEvento: true,
		*segundo.SecuenciaEvento: true,
	}
	assert.True(t, secuencias[10000])
	assert.True(t, secuencias[10001])
}

func TestProcesarReingestaIdempotente(t *testing.T) {
	store := newFakeStore()
	orch := orquestadorDePrueba(store, nil)

	archivo := nuevaCarga()
	require.NoError(t, orch.Procesar(context.Background(), archivo, []byte(csvBase)))
	require.Equal(t, ResumenProceso{TotalRegistros: 2, Nuevos: 2}, *archivo.Resumen)

	seqAntes := *store.registro("12.345.678-9", "FONDO A").SecuenciaEvento

	// Segunda pasada: todo son actualizaciones, nada nuevo.
	reproceso := nuevaCarga()
	require.NoError(t, orch.Procesar(context.Background(), reproceso, []byte(csvBase)))
	assert.Equal(t, ResumenProceso{TotalRegistros: 2, Actualizados: 2}, *reproceso.Resumen)
	assert.Equal(t, EstadoOK, reproceso.EstadoProceso)

	// La secuencia asignada en la primera carga se conserva.
	assert.Equal(t, seqAntes, *store.registro("12.345.678-9", "FONDO A").SecuenciaEvento)
}

func TestProcesarModoMontoReescala(t *testing.T) {
	csv := "RUT,Instrumento,Factor 8,Factor 9\n" +
		"12.345.678-9,FONDO A,100,300\n"
	store := newFakeStore()
	orch := orquestadorDePrueba(store, nil)

	require.NoError(t, orch.Procesar(context.Background(), nuevaCarga(), []byte(csv)))

	c := store.registro("12.345.678-9", "FONDO A")
	require.NotNil(t, c)
	assert.Equal(t, "0.25", c.Factor(8).String())
	assert.Equal(t, "0.75", c.Factor(9).String())
	assert.Equal(t, "1", c.FactorActualizacion.String())

	suma := c.SumaFactores()
	assert.True(t, suma.Sub(decimal.NewFromInt(1)).Abs().
		LessThanOrEqual(decimal.RequireFromString("0.0001")),
		"la suma debe quedar en 1 con tolerancia 0.0001, fue %s", suma)
}

func TestProcesarRechazaFilaSinInstrumento(t *testing.T) {
	csv := "RUT,Instrumento,Factor 8\n" +
		"12.345.678-9,,0.5\n" +
		"98.765.432-1,FONDO B,0.5\n"
	store := newFakeStore()
	orch := orquestadorDePrueba(store, nil)
	archivo := nuevaCarga()

	require.NoError(t, orch.Procesar(context.Background(), archivo, []byte(csv)))

	assert.Equal(t, EstadoError, archivo.EstadoProceso)
	assert.Equal(t, ResumenProceso{TotalRegistros: 2, Nuevos: 1, Rechazados: 1}, *archivo.Resumen)

	require.Len(t, archivo.ErroresPorFila, 1)
	errFila := archivo.ErroresPorFila[0]
	// La numeracion de filas parte en 2: la fila 1 es el encabezado.
	assert.Equal(t, 2, errFila.Fila)
	assert.Contains(t, errFila.Error, FieldInstrumento)
	// Los datos crudos de la fila rechazada se conservan para revision.
	assert.Equal(t, "12.345.678-9", errFila.Data[FieldIdentificadorCliente])
	assert.Equal(t, "0.5", errFila.Data["factor_8"])
}

func TestProcesarRechazaSumaMayorAUnoDentroDeTolerancia(t *testing.T) {
	// Suma 1.0001: dentro de la banda de tolerancia (no se reescala) pero
	// viola el invariante suma <= 1 al persistir.
	csv := "RUT,Instrumento,Factor 8,Factor 9\n" +
		"12.345.678-9,FONDO A,0.5,0.5001\n"
	store := newFakeStore()
	orch := orquestadorDePrueba(store, nil)
	archivo := nuevaCarga()

	require.NoError(t, orch.Procesar(context.Background(), archivo, []byte(csv)))
	assert.Equal(t, EstadoError, archivo.EstadoProceso)
	assert.Equal(t, 1, archivo.Resumen.Rechazados)
}

func TestProcesarArchivoVacio(t *testing.T) {
	store := newFakeStore()
	orch := orquestadorDePrueba(store, nil)
	archivo := nuevaCarga()

	require.NoError(t, orch.Procesar(context.Background(), archivo, []byte("RUT,Instrumento,Factor 8\n")))

	assert.Equal(t, EstadoError, archivo.EstadoProceso)
	assert.Equal(t, ErrNoUsableRows.Error(), archivo.DetalleProceso)
	assert.Equal(t, ResumenProceso{}, *archivo.Resumen)
}

func TestProcesarFalloEstructuralPDF(t *testing.T) {
	store := newFakeStore()
	resolver := NewCountryResolver(store, DefaultCountryPatterns())
	extractor := NewExtractorWithPDF(&MockPDFExtractor{Err: errors.New("pdf corrupto")})
	orch := NewOrchestrator(store, extractor, resolver, nil)

	archivo := nuevaCarga()
	archivo.NombreOriginal = "calificaciones.pdf"

	require.NoError(t, orch.Procesar(context.Background(), archivo, []byte("%PDF-basura")))

	assert.Equal(t, EstadoError, archivo.EstadoProceso)
	assert.Contains(t, archivo.DetalleProceso, "pdf corrupto")
	// Fallo estructural: ninguna fila llego a intentarse.
	assert.Equal(t, ResumenProceso{}, *archivo.Resumen)
	assert.Empty(t, archivo.ErroresPorFila)
}

func TestProcesarFalloDeAlmacenamientoPropaga(t *testing.T) {
	store := newFakeStore()
	store.failUpsert = errors.New("conexion perdida")
	orch := orquestadorDePrueba(store, nil)
	archivo := nuevaCarga()

	// Los fallos de upsert son errores por fila, no de pipeline; el archivo
	// finaliza en error con todas las filas rechazadas.
	require.NoError(t, orch.Procesar(context.Background(), archivo, []byte(csvBase)))
	assert.Equal(t, EstadoError, archivo.EstadoProceso)
	assert.Equal(t, 2, archivo.Resumen.Rechazados)
}

func TestProcesarNotificaResumen(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{ch: make(chan ResumenProceso, 1)}
	orch := orquestadorDePrueba(store, notifier)

	require.NoError(t, orch.Procesar(context.Background(), nuevaCarga(), []byte(csvBase)))

	select {
	case resumen := <-notifier.ch:
		assert.Equal(t, 2, resumen.TotalRegistros)
	case <-time.After(2 * time.Second):
		t.Fatal("la notificacion del resumen nunca llego")
	}
}
