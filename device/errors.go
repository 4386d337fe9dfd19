package device

import "errors"

// Errors returned by the device manager and the Base helpers. Usage errors
// are sentinels so drivers can match them with errors.Is; hardware failures
// reported by the port wrap ErrPortRejected.
var (
	ErrNotInitialized  = errors.New("device not initialized")
	ErrNotOpen         = errors.New("interface not open")
	ErrInvalidEndpoint = errors.New("endpoint not registered to interface")
	ErrTransferPending = errors.New("transfer already pending on endpoint")
	ErrPortRejected    = errors.New("port rejected transfer")
	ErrProtocol        = errors.New("control request protocol violation")
)
