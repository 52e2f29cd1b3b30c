package electrum

import (
	"context"
	"strconv"
)

// Protocol tags for the handshake's requested version, matching the
// versions documented by ElectrumX.
const (
	Protocol10   = "1.0"
	Protocol11   = "1.1"
	Protocol12   = "1.2"
	Protocol14   = "1.4"
	Protocol14_2 = "1.4.2"
)

// ServerPing sends a ping message to the server to ensure it is
// responding, and to keep the session alive. The server may disconnect
// clients that have sent no requests for roughly 10 minutes. Only
// available from protocol 1.2 onward.
//
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#server-ping
func (c *Client) ServerPing(ctx context.Context) error {
	if c.Version == Protocol10 || c.Version == Protocol11 {
		return ErrUnavailableMethod
	}
	res, err := c.Request(ctx, "server.ping")
	if err != nil {
		return err
	}
	if res.IsError() {
		return res.Error()
	}
	return nil
}

// ServerVersion runs a 'server.version' operation against the already
// connected peer, re-confirming the negotiated identity.
//
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#server-version
func (c *Client) ServerVersion(ctx context.Context) (*VersionInfo, error) {
	res, err := c.Request(ctx, "server.version", c.Application, c.Version)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, res.Error()
	}

	if c.Version == Protocol10 {
		var software string
		if err := res.Decode(&software); err != nil {
			return nil, err
		}
		return &VersionInfo{Software: software}, nil
	}

	var pair []string
	if err := res.Decode(&pair); err != nil || len(pair) < 2 {
		return nil, err
	}
	return &VersionInfo{Software: pair[0], Protocol: pair[1]}, nil
}

// ServerBanner runs a 'server.banner' operation.
//
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#server-banner
func (c *Client) ServerBanner(ctx context.Context) (string, error) {
	res, err := c.Request(ctx, "server.banner")
	if err != nil {
		return "", err
	}
	if res.IsError() {
		return "", res.Error()
	}
	var banner string
	err = res.Decode(&banner)
	return banner, err
}

// ServerDonationAddress runs a 'server.donation_address' operation.
//
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#server-donation-address
func (c *Client) ServerDonationAddress(ctx context.Context) (string, error) {
	res, err := c.Request(ctx, "server.donation_address")
	if err != nil {
		return "", err
	}
	if res.IsError() {
		return "", res.Error()
	}
	var addr string
	err = res.Decode(&addr)
	return addr, err
}

// ServerFeatures returns a list of features and services supported by the
// server. Unavailable at protocol 1.0.
//
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#server-features
func (c *Client) ServerFeatures(ctx context.Context) (*ServerInfo, error) {
	if c.Version == Protocol10 {
		return nil, ErrUnavailableMethod
	}
	res, err := c.Request(ctx, "server.features")
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, res.Error()
	}
	info := new(ServerInfo)
	err = res.Decode(info)
	return info, err
}

// ServerPeers returns a list of peer servers.
//
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#server-peers-subscribe
func (c *Client) ServerPeers(ctx context.Context) ([]*Peer, error) {
	res, err := c.Request(ctx, "server.peers.subscribe")
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, res.Error()
	}

	var raw [][]any
	if err := res.Decode(&raw); err != nil {
		return nil, err
	}
	peers := make([]*Peer, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 3 {
			continue
		}
		p := &Peer{}
		p.Address, _ = entry[0].(string)
		p.Name, _ = entry[1].(string)
		if features, ok := entry[2].([]any); ok {
			for _, f := range features {
				if s, ok := f.(string); ok {
					p.Features = append(p.Features, s)
				}
			}
		}
		peers = append(peers, p)
	}
	return peers, nil
}

// AddressBalance runs a 'blockchain.address.get_balance' operation.
//
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#blockchain-address-get-balance
func (c *Client) AddressBalance(ctx context.Context, address string) (*Balance, error) {
	res, err := c.Request(ctx, "blockchain.address.get_balance", address)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, res.Error()
	}
	bal := new(Balance)
	err = res.Decode(bal)
	return bal, err
}

// ScriptHashBalance runs a 'blockchain.scripthash.get_balance' operation,
// the address-agnostic successor used from protocol 1.2 onward.
//
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#blockchain-scripthash-get-balance
func (c *Client) ScriptHashBalance(ctx context.Context, scriptHash string) (*Balance, error) {
	res, err := c.Request(ctx, "blockchain.scripthash.get_balance", scriptHash)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, res.Error()
	}
	bal := new(Balance)
	err = res.Decode(bal)
	return bal, err
}

// AddressHistory runs a 'blockchain.address.get_history' operation.
//
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#blockchain-address-get-history
func (c *Client) AddressHistory(ctx context.Context, address string) ([]Tx, error) {
	res, err := c.Request(ctx, "blockchain.address.get_history", address)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, res.Error()
	}
	var list []Tx
	err = res.Decode(&list)
	return list, err
}

// ScriptHashHistory runs a 'blockchain.scripthash.get_history' operation.
//
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#blockchain-scripthash-get-history
func (c *Client) ScriptHashHistory(ctx context.Context, scriptHash string) ([]Tx, error) {
	res, err := c.Request(ctx, "blockchain.scripthash.get_history", scriptHash)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, res.Error()
	}
	var list []Tx
	err = res.Decode(&list)
	return list, err
}

// AddressListUnspent runs a 'blockchain.address.listunspent' operation.
//
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#blockchain-address-listunspent
func (c *Client) AddressListUnspent(ctx context.Context, address string) ([]Tx, error) {
	res, err := c.Request(ctx, "blockchain.address.listunspent", address)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, res.Error()
	}
	var list []Tx
	err = res.Decode(&list)
	return list, err
}

// BlockHeader runs a 'blockchain.block.header' operation.
//
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#blockchain-block-header
func (c *Client) BlockHeader(ctx context.Context, height uint64) (*BlockHeader, error) {
	res, err := c.Request(ctx, "blockchain.block.header", height)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, res.Error()
	}
	header := new(BlockHeader)
	err = res.Decode(header)
	return header, err
}

// BroadcastTransaction runs a 'blockchain.transaction.broadcast' operation,
// returning the broadcast transaction's hash.
//
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#blockchain-transaction-broadcast
func (c *Client) BroadcastTransaction(ctx context.Context, hex string) (string, error) {
	res, err := c.Request(ctx, "blockchain.transaction.broadcast", hex)
	if err != nil {
		return "", err
	}
	if res.IsError() {
		return "", ErrRejectedTx
	}
	var hash string
	if err := res.Decode(&hash); err != nil {
		return "", err
	}
	return hash, nil
}

// GetTransaction runs a 'blockchain.transaction.get' operation.
//
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#blockchain-transaction-get
func (c *Client) GetTransaction(ctx context.Context, hash string) (string, error) {
	res, err := c.Request(ctx, "blockchain.transaction.get", hash)
	if err != nil {
		return "", err
	}
	if res.IsError() {
		return "", res.Error()
	}
	var raw string
	err = res.Decode(&raw)
	return raw, err
}

// EstimateFee runs a 'blockchain.estimatefee' operation.
//
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#blockchain-estimatefee
func (c *Client) EstimateFee(ctx context.Context, blocks int) (float64, error) {
	res, err := c.Request(ctx, "blockchain.estimatefee", blocks)
	if err != nil {
		return 0, err
	}
	if res.IsError() {
		return 0, res.Error()
	}
	var fee float64
	err = res.Decode(&fee)
	return fee, err
}

// TransactionMerkle runs a 'blockchain.transaction.get_merkle' operation.
//
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#blockchain-transaction-get-merkle
func (c *Client) TransactionMerkle(ctx context.Context, tx string, height int) (*TxMerkle, error) {
	res, err := c.Request(ctx, "blockchain.transaction.get_merkle", tx, strconv.Itoa(height))
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, res.Error()
	}
	tm := new(TxMerkle)
	err = res.Decode(tm)
	return tm, err
}
