package tributario

import (
	"log"
	"net/http"

	"NuamTributario/api"
	"NuamTributario/api/notification"
	"NuamTributario/api/tributario/calificaciones"
	"NuamTributario/api/tributario/carga"
	"NuamTributario/internal/filestore"
	"NuamTributario/internal/ingest"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StartTributarioService wires the ingestion pipeline and exposes the
// calificaciones and cargas endpoints.
func StartTributarioService(pool *pgxpool.Pool) {
	store := ingest.NewPgStore(pool)
	resolver := ingest.NewCountryResolver(store, ingest.DefaultCountryPatterns())
	extractor := ingest.NewExtractor()
	mailer := notification.NewMailerFromEnv(pool)
	orquestador := ingest.NewOrchestrator(store, extractor, resolver, mailer)

	deps := &carga.Deps{
		Pool:        pool,
		Orquestador: orquestador,
		Files:       filestore.New(),
	}

	router := mux.NewRouter()

	router.Handle("/tributario/calificaciones/all", api.SessionMiddleware(calificaciones.GetCalificaciones(pool)))
	router.Handle("/tributario/calificaciones/get", api.SessionMiddleware(calificaciones.GetCalificacion(pool)))
	router.Handle("/tributario/calificaciones/update", api.SessionMiddleware(calificaciones.UpdateCalificacion(pool))).Methods(http.MethodPost)
	router.Handle("/tributario/calificaciones/normalizar", api.SessionMiddleware(calificaciones.NormalizarCalificacion(pool))).Methods(http.MethodPost)
	router.Handle("/tributario/calificaciones/historial", api.SessionMiddleware(calificaciones.GetHistorial(pool)))

	router.Handle("/tributario/cargas/upload", api.SessionMiddleware(carga.UploadArchivo(deps))).Methods(http.MethodPost)
	router.Handle("/tributario/cargas/all", api.SessionMiddleware(carga.GetArchivos(pool)))
	router.Handle("/tributario/cargas/get", api.SessionMiddleware(carga.GetArchivo(pool)))
	router.Handle("/tributario/cargas/reprocesar", api.SessionMiddleware(carga.ReprocesarArchivo(deps))).Methods(http.MethodPost)
	router.Handle("/tributario/cargas/preview", api.SessionMiddleware(carga.PreviewArchivo())).Methods(http.MethodPost)
	router.Handle("/tributario/cargas/convertir", api.SessionMiddleware(carga.ConvertirArchivo())).Methods(http.MethodPost)

	log.Println("Tributario Service escuchando en :6143")
	if err := http.ListenAndServe(":6143", router); err != nil {
		log.Fatalf("fallo el Tributario Service: %v", err)
	}
}
