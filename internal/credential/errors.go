package credential

import "errors"

// Extraction failure classes. The pipeline maps each onto user feedback, so
// callers match with errors.Is rather than string inspection.
var (
	// ErrInvalidCredential means the payload carries no usable identifier.
	ErrInvalidCredential = errors.New("credencial no válida")
	// ErrUntrustedSource means the payload URL points outside the
	// institutional allow-list.
	ErrUntrustedSource = errors.New("origen no confiable")
	// ErrNetworkUnavailable means no network path exists for the fetch.
	ErrNetworkUnavailable = errors.New("sin conexión de red")
	// ErrFetchFailed means the credential endpoint answered with a non-2xx
	// status or a blocked/empty body.
	ErrFetchFailed = errors.New("no se pudo consultar la credencial")
	// ErrUnparsable means the fetched markup is missing required fields.
	ErrUnparsable = errors.New("credencial ilegible")
)
