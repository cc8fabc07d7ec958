// Package serviceiface defines the lifecycle contract every registered
// service (logger, auth, master, tributario, notification, cron, gateway)
// implements so the app manager can sequence them.
package serviceiface

type Service interface {
	Name() string
	Start() error
	Stop() error
}
