package uam

import (
	"NuamTributario/internal/serviceiface"

	"github.com/jackc/pgx/v5/pgxpool"
)

type UAMService struct {
	config map[string]interface{}
	pool   *pgxpool.Pool
}

func NewUAMService(cfg map[string]interface{}, pool *pgxpool.Pool) serviceiface.Service {
	return &UAMService{config: cfg, pool: pool}
}

func (s *UAMService) Name() string {
	return "uam"
}

func (s *UAMService) Start() error {
	go StartUAMService(s.pool)
	return nil
}

func (s *UAMService) Stop() error {
	return nil
}
