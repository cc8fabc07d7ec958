// Package notification envia los resumenes de carga por correo al contacto
// del corredor. Sin credenciales de Mailgun opera en modo simulado y solo
// registra el envio.
package notification

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"NuamTributario/internal/ingest"
	"NuamTributario/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mailgun/mailgun-go/v4"
)

const maxErroresEnCorreo = 10

// Sender is the minimal mail transport the Mailer needs.
type Sender interface {
	Send(ctx context.Context, from, subject, body, to string) error
}

// Mailer implements the ingestion Notifier over a mail transport.
type Mailer struct {
	pool   *pgxpool.Pool
	sender Sender
	from   string
}

var _ ingest.Notifier = (*Mailer)(nil)

// NewMailerFromEnv builds a Mailer with a Mailgun transport when the
// credentials are present, falling back to the mock transport otherwise.
func NewMailerFromEnv(pool *pgxpool.Pool) *Mailer {
	domain := strings.TrimSpace(os.Getenv("MAILGUN_DOMAIN"))
	apiKey := strings.TrimSpace(os.Getenv("MAILGUN_API_KEY"))
	from := strings.TrimSpace(os.Getenv("MAIL_FROM"))
	if from == "" {
		from = "cargas@nuam-tributario.local"
	}

	var sender Sender
	if domain != "" && apiKey != "" {
		sender = &mailgunSender{mg: mailgun.NewMailgun(domain, apiKey)}
	} else {
		logger.Audit("notificaciones en modo simulado: faltan credenciales de Mailgun")
		sender = &mockSender{}
	}
	return &Mailer{pool: pool, sender: sender, from: from}
}

// NewMailer builds a Mailer over an explicit transport.
func NewMailer(pool *pgxpool.Pool, sender Sender, from string) *Mailer {
	return &Mailer{pool: pool, sender: sender, from: from}
}

// NotificarResumen sends the finalize summary to the corredor's contact
// address. Corredores without one are silently skipped; delivery failures
// are logged but never affect the job.
func (m *Mailer) NotificarResumen(archivo *ingest.ArchivoCarga, resumen ingest.ResumenProceso, errores []ingest.ErrorFila) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var email string
	err := m.pool.QueryRow(ctx,
		`SELECT COALESCE(email_contacto, '') FROM corredores WHERE id = $1`,
		archivo.CorredorID).Scan(&email)
	if err != nil {
		logger.Audit("notificacion de carga %d omitida: %v", archivo.ID, err)
		return
	}
	if email == "" {
		return
	}

	subject := fmt.Sprintf("Carga %d (%s): %s", archivo.ID, archivo.NombreOriginal, archivo.EstadoProceso)
	if err := m.sender.Send(ctx, m.from, subject, buildBody(archivo, resumen, errores), email); err != nil {
		logger.Audit("fallo el envio del resumen de carga %d a %s: %v", archivo.ID, email, err)
		return
	}
	logger.Audit("resumen de carga %d enviado a %s", archivo.ID, email)
}

func buildBody(archivo *ingest.ArchivoCarga, resumen ingest.ResumenProceso, errores []ingest.ErrorFila) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Archivo: %s\n", archivo.NombreOriginal)
	fmt.Fprintf(&b, "Estado: %s\n", archivo.EstadoProceso)
	if archivo.DetalleProceso != "" {
		fmt.Fprintf(&b, "Detalle: %s\n", archivo.DetalleProceso)
	}
	fmt.Fprintf(&b, "\nTotal de registros: %d\n", resumen.TotalRegistros)
	fmt.Fprintf(&b, "Nuevos: %d\n", resumen.Nuevos)
	fmt.Fprintf(&b, "Actualizados: %d\n", resumen.Actualizados)
	fmt.Fprintf(&b, "Rechazados: %d\n", resumen.Rechazados)

	if len(errores) > 0 {
		fmt.Fprintf(&b, "\nPrimeros errores por fila:\n")
		for i, e := range errores {
			if i >= maxErroresEnCorreo {
				fmt.Fprintf(&b, "... y %d errores mas\n", len(errores)-maxErroresEnCorreo)
				break
			}
			fmt.Fprintf(&b, "  fila %d: %s\n", e.Fila, e.Error)
		}
	}
	return b.String()
}

type mailgunSender struct {
	mg mailgun.Mailgun
}

func (s *mailgunSender) Send(ctx context.Context, from, subject, body, to string) error {
	msg := s.mg.NewMessage(from, subject, body, to)
	_, _, err := s.mg.Send(ctx, msg)
	return err
}

// mockSender logs instead of delivering; used in development and tests.
type mockSender struct{}

func (s *mockSender) Send(ctx context.Context, from, subject, body, to string) error {
	logger.Audit("correo simulado para %s: %s", to, subject)
	return nil
}
