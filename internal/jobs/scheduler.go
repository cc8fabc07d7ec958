// Package jobs ejecuta tareas programadas de mantenimiento sobre las cargas.
package jobs

import (
	"context"
	"time"

	"NuamTributario/internal/logger"
	"NuamTributario/internal/serviceiface"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
)

// stuckThreshold marks cargas left in "procesando" as stuck. They are only
// reported, never reset: a stuck job needs operator review before a
// reprocess.
const stuckThreshold = time.Hour

// CronService runs the daily digest of failed and stuck cargas.
type CronService struct {
	config   map[string]interface{}
	pool     *pgxpool.Pool
	cron     *cron.Cron
	schedule string
}

func NewCronService(cfg map[string]interface{}, pool *pgxpool.Pool) serviceiface.Service {
	schedule, _ := cfg["schedule"].(string)
	if schedule == "" {
		schedule = "0 7 * * *"
	}
	return &CronService{config: cfg, pool: pool, schedule: schedule}
}

var _ serviceiface.Service = (*CronService)(nil)

func (s *CronService) Name() string { return "cron" }

func (s *CronService) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, s.digestCargas); err != nil {
		return err
	}
	s.cron.Start()
	logger.Audit("cron iniciado con horario %q", s.schedule)
	return nil
}

func (s *CronService) Stop() error {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	return nil
}

// digestCargas reports cargas that failed in the last day and cargas stuck
// in "procesando".
func (s *CronService) digestCargas() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var fallidas int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM archivos_carga
		WHERE estado_proceso = 'error' AND actualizado_en > now() - INTERVAL '1 day'`).Scan(&fallidas)
	if err != nil {
		logger.Audit("digesto de cargas: fallo la consulta de errores: %v", err)
		return
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, corredor_id, nombre_original, started_at
		FROM archivos_carga
		WHERE estado_proceso = 'procesando' AND started_at < now() - make_interval(secs => $1)
		ORDER BY started_at`, stuckThreshold.Seconds())
	if err != nil {
		logger.Audit("digesto de cargas: fallo la consulta de atascadas: %v", err)
		return
	}
	defer rows.Close()

	atascadas := 0
	for rows.Next() {
		var (
			id, corredorID int64
			nombre         string
			startedAt      *time.Time
		)
		if err := rows.Scan(&id, &corredorID, &nombre, &startedAt); err != nil {
			continue
		}
		atascadas++
		logger.Audit("carga atascada: id=%d corredor=%d archivo=%s desde=%v", id, corredorID, nombre, startedAt)
	}

	logger.Audit("digesto diario de cargas: %d fallidas en 24h, %d atascadas", fallidas, atascadas)
}
