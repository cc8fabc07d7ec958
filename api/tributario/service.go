package tributario

import (
	"NuamTributario/internal/serviceiface"

	"github.com/jackc/pgx/v5/pgxpool"
)

type TributarioService struct {
	config map[string]interface{}
	pool   *pgxpool.Pool
}

func NewTributarioService(cfg map[string]interface{}, pool *pgxpool.Pool) serviceiface.Service {
	return &TributarioService{config: cfg, pool: pool}
}

func (s *TributarioService) Name() string {
	return "tributario"
}

func (s *TributarioService) Start() error {
	go StartTributarioService(s.pool)
	return nil
}

func (s *TributarioService) Stop() error {
	return nil
}
