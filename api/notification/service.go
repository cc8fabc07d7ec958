package notification

import (
	"NuamTributario/internal/serviceiface"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NotificationService registers the mail transport in the service sequence.
// It has no HTTP surface; the tributario service invokes the Mailer directly.
type NotificationService struct {
	config map[string]interface{}
	pool   *pgxpool.Pool
}

func NewNotificationService(cfg map[string]interface{}, pool *pgxpool.Pool) serviceiface.Service {
	return &NotificationService{config: cfg, pool: pool}
}

func (s *NotificationService) Name() string {
	return "notification"
}

func (s *NotificationService) Start() error {
	// The transport is stateless; construction happens where it is used.
	return nil
}

func (s *NotificationService) Stop() error {
	return nil
}
