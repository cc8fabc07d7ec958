package master

import (
	"log"
	"net/http"

	"NuamTributario/api"
	allMaster "NuamTributario/api/master/allMasters"

	"github.com/jackc/pgx/v5/pgxpool"
)

func StartMasterService(pool *pgxpool.Pool) {
	mux := http.NewServeMux()

	mux.Handle("/master/paises/all", api.SessionMiddleware(allMaster.GetPaises(pool)))
	mux.Handle("/master/paises/create", api.SessionMiddleware(api.RequireAdmin(allMaster.CreatePais(pool))))
	mux.Handle("/master/paises/update", api.SessionMiddleware(api.RequireAdmin(allMaster.UpdatePais(pool))))
	mux.Handle("/master/paises/delete", api.SessionMiddleware(api.RequireAdmin(allMaster.DeletePais(pool))))

	mux.Handle("/master/corredores/all", api.SessionMiddleware(allMaster.GetCorredores(pool)))
	mux.Handle("/master/corredores/create", api.SessionMiddleware(api.RequireAdmin(allMaster.CreateCorredor(pool))))
	mux.Handle("/master/corredores/update", api.SessionMiddleware(api.RequireAdmin(allMaster.UpdateCorredor(pool))))
	mux.Handle("/master/corredores/delete", api.SessionMiddleware(api.RequireAdmin(allMaster.DeleteCorredor(pool))))

	log.Println("Master Service escuchando en :5143")
	if err := http.ListenAndServe(":5143", mux); err != nil {
		log.Fatalf("fallo el Master Service: %v", err)
	}
}
