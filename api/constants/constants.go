// Package constants centraliza mensajes de error y claves de respuesta
// compartidos por los servicios HTTP.
package constants

const (
	ContentTypeText = "Content-Type"
	ContentTypeJSON = "application/json"
	ValueSuccess    = "success"
)

const (
	ErrUserIDRequired    = "user_id requerido"
	ErrInvalidSession    = "sesion invalida o expirada"
	ErrInvalidJSON       = "JSON invalido"
	ErrMethodNotAllowed  = "metodo no permitido"
	ErrDBUnavailable     = "base de datos no disponible"
	ErrCorredorRequerido = "corredor_id requerido"
	ErrSinAcceso         = "el usuario no tiene acceso a este corredor"
	ErrNoEncontrado      = "registro no encontrado"
	ErrArchivoRequerido  = "archivo requerido en el campo 'archivo'"
)
