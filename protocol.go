package electrum

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// StatementDelimiter terminates every wire frame, inbound and outbound.
//
// http://docs.electrum.org/en/latest/protocol.html#format
const StatementDelimiter = "\n"

// keepAliveID is the sentinel request id carried by automatic keep-alive
// pings. The Client recognizes it and drops the matching response instead of
// resolving an application request or raising an internal-consistency fault.
const keepAliveID = "keepAlive"

// versionNegotiationID tags the handshake's server.version request.
const versionNegotiationID = "versionNegotiation"

// versionPattern is the accepted shape for a negotiated protocol version.
var versionPattern = regexp.MustCompile(`^\d+(\.\d+)+$`)

// ValidProtocolVersion reports whether v has the dotted-integer shape
// Electrum protocol versions use (e.g. "1.4", "1.4.2").
func ValidProtocolVersion(v string) bool {
	return versionPattern.MatchString(v)
}

// BuildRequest encodes a single JSON-RPC-shaped request frame. It
// deliberately omits a "jsonrpc" field: some Electrum hosts disconnect
// clients that advertise "jsonrpc":"2.0" incorrectly, so omission is the
// safe, portable choice. The returned string does not carry the trailing
// delimiter; callers append it at send time.
func BuildRequest(method string, params []any, id any) (string, error) {
	if params == nil {
		params = []any{}
	}
	frame := struct {
		Method string `json:"method"`
		Params []any  `json:"params"`
		ID     any    `json:"id"`
	}{Method: method, Params: params, ID: id}

	b, err := json.Marshal(frame)
	if err != nil {
		return "", fmt.Errorf("electrum: encode %q request: %w", method, err)
	}
	return string(b), nil
}

// SplitStatements implements the framing algorithm: append chunk to buffer,
// then while the buffer contains a delimiter, split by delimiter, deliver
// every part except the last in arrival order, and retain the last
// (possibly empty) part as the new buffer.
//
// This guarantees statements are delivered exactly once and in arrival
// order, partial trailing statements survive arbitrary chunk boundaries, and
// a chunk ending exactly on a delimiter correctly empties the buffer.
func SplitStatements(buffer string, chunk []byte) (statements []string, remainder string) {
	combined := buffer
	if len(chunk) > 0 {
		combined += string(chunk)
	}
	if !strings.Contains(combined, StatementDelimiter) {
		return nil, combined
	}
	parts := strings.Split(combined, StatementDelimiter)
	return parts[:len(parts)-1], parts[len(parts)-1]
}
