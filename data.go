package electrum

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// statement is the decoded shape of one inbound wire frame. It may carry an
// id (a response to a request) or a method (a notification), never both
// meaningfully at once.
//
// http://docs.electrum.org/en/latest/protocol.html#response
type statement struct {
	ID     any             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// RPC error
type rpcError struct {
	Code    int64          `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

// parseStatement decodes a single object-shaped statement. Numeric ids are
// decoded via json.Number so large/precise ids survive round-tripping; the
// caller is responsible for recognizing array-shaped (batch) input before
// calling this.
func parseStatement(raw []byte) (*statement, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var st statement
	if err := dec.Decode(&st); err != nil {
		return nil, fmt.Errorf("electrum: decode statement: %w", err)
	}
	return &st, nil
}

// idKey renders a response id (string, json.Number, or nil) to the string
// key the pending-request table is indexed by.
func idKey(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// canonicalJSON re-serializes raw with stable key ordering so that two
// structurally identical payloads produce byte-identical strings regardless
// of the order their source emitted keys in. encoding/json already sorts
// map[string]any keys on Marshal; decoding into `any` first makes that
// recursive, covering nested objects too.
func canonicalJSON(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("electrum: canonicalize: %w", err)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("electrum: canonicalize: %w", err)
	}
	return string(b), nil
}

// Result is the outcome of a request: either a peer-returned value or a
// peer-returned {"error": ...} object. Applications distinguish the two with
// IsError rather than relying on a returned Go error, since a server error is
// data, not a transport failure (spec §7, §9 Open Question 5).
type Result struct {
	raw       json.RawMessage
	serverErr *ServerError
}

// IsError reports whether the peer answered with an {"error": ...} object.
func (r Result) IsError() bool { return r.serverErr != nil }

// Error returns the peer's reported error, or nil if the request succeeded.
func (r Result) Error() *ServerError { return r.serverErr }

// Raw returns the undecoded result payload (empty if IsError is true).
func (r Result) Raw() json.RawMessage { return r.raw }

// Decode unmarshals the result payload into v. It returns the ServerError
// as a Go error if the peer reported one, so callers that don't need to
// distinguish cases can treat Decode like a normal decode-or-fail call.
func (r Result) Decode(v any) error {
	if r.serverErr != nil {
		return r.serverErr
	}
	if len(r.raw) == 0 {
		return nil
	}
	return json.Unmarshal(r.raw, v)
}

func resultFromStatement(st *statement) Result {
	if st.Error != nil {
		return Result{serverErr: &ServerError{Code: st.Error.Code, Message: st.Error.Message, Data: st.Error.Data}}
	}
	return Result{raw: st.Result}
}

// VersionInfo contains the version information returned by the server.
type VersionInfo struct {
	Software string `json:"software"`
	Protocol string `json:"protocol"`
}

// Host provides available endpoints for a given server.
type Host struct {
	SSLPort uint `json:"ssl_port"`
	TCPPort uint `json:"tcp_port"`
}

// ServerInfo provides general information about the state and capabilities
// of the server.
type ServerInfo struct {
	Hosts         map[string]*Host `json:"hosts"`
	GenesisHash   string           `json:"genesis_hash"`
	HashFunction  string           `json:"hash_function"`
	ServerVersion string           `json:"server_version"`
	ProtocolMax   string           `json:"protocol_max"`
	ProtocolMin   string           `json:"protocol_min"`
}

// Peer provides details of a known server node.
type Peer struct {
	Address  string   `json:"address"`
	Name     string   `json:"name"`
	Features []string `json:"features"`
}

// Tx represents a transaction entry on the blockchain.
type Tx struct {
	Hash   string `json:"tx_hash"`
	Pos    uint64 `json:"tx_pos"`
	Height uint64 `json:"height"`
	Value  uint64 `json:"value"`
}

// TxMerkle provides the merkle branch of a given transaction.
type TxMerkle struct {
	BlockHeight uint64   `json:"block_height"`
	Pos         uint64   `json:"pos"`
	Merkle      []string `json:"merkle"`
}

// Balance shows the funds available to an address or scripthash, both
// confirmed and unconfirmed.
type Balance struct {
	Confirmed   int64 `json:"confirmed"`
	Unconfirmed int64 `json:"unconfirmed"`
}

// BlockHeader displays summarized details about an existing block in the
// chain.
type BlockHeader struct {
	BlockHeight   uint64 `json:"block_height"`
	PrevBlockHash string `json:"prev_block_hash"`
	Timestamp     uint64 `json:"timestamp"`
	Nonce         uint64 `json:"nonce"`
	MerkleRoot    string `json:"merkle_root"`
	UtxoRoot      string `json:"utxo_root"`
	Version       int    `json:"version"`
	Bits          uint64 `json:"bits"`
}
