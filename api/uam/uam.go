package uam

import (
	"log"
	"net/http"

	"NuamTributario/api"

	"github.com/jackc/pgx/v5/pgxpool"
)

func StartUAMService(pool *pgxpool.Pool) {
	mux := http.NewServeMux()

	mux.Handle("/uam/usuarios/all", api.SessionMiddleware(GetUsuarios(pool)))
	mux.Handle("/uam/usuarios/create", api.SessionMiddleware(api.RequireAdmin(CreateUsuario(pool))))
	mux.Handle("/uam/usuarios/update", api.SessionMiddleware(api.RequireAdmin(UpdateUsuario(pool))))
	mux.Handle("/uam/usuarios/delete", api.SessionMiddleware(api.RequireAdmin(DeleteUsuario(pool))))

	log.Println("UAM Service escuchando en :5243")
	if err := http.ListenAndServe(":5243", mux); err != nil {
		log.Fatalf("fallo el UAM Service: %v", err)
	}
}
