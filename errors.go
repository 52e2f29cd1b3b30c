package electrum

import "errors"

// Construction and configuration errors.
var (
	ErrInvalidVersion    = errors.New("electrum: malformed protocol version")
	ErrInvalidConfidence = errors.New("electrum: confidence exceeds distribution")
)

// Connection/Client lifecycle errors.
var (
	ErrNotConnected        = errors.New("electrum: not connected")
	ErrTransportClosed     = errors.New("electrum: transport closed")
	ErrIncompatibleVersion = errors.New("electrum: server negotiated an incompatible protocol version")
	ErrManualDisconnection = errors.New("electrum: manual disconnection")
)

// Deprecated-method and unavailable-method errors, carried over from the
// lineage this client descends from.
var (
	ErrDeprecatedMethod  = errors.New("electrum: deprecated method")
	ErrUnavailableMethod = errors.New("electrum: method unavailable at the negotiated protocol version")
	ErrRejectedTx        = errors.New("electrum: transaction rejected by peer")
)

// Cluster errors.
var (
	ErrClusterNotReady       = errors.New("electrum: cluster is not ready")
	ErrInsufficientIntegrity = errors.New("electrum: too few peers agreed on a result")
)

// ServerError wraps an {"error": ...} object returned by a peer. It is
// delivered as the value of a successful request, not as a Go error
// returned alongside a nil result — applications inspect Result.IsError to
// distinguish a server-side refusal from a transport failure.
type ServerError struct {
	Code    int64
	Message string
	Data    map[string]any
}

func (e *ServerError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}
