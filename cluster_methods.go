package electrum

import (
	"context"
	"encoding/json"
)

// ServerVersion runs 'server.version' across the cluster, applying quorum.
func (cl *Cluster) ServerVersion(ctx context.Context) (*VersionInfo, error) {
	res, err := cl.Request(ctx, "server.version", cl.application, cl.version)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, res.Error()
	}
	var pair []string
	if err := res.Decode(&pair); err != nil || len(pair) < 2 {
		return nil, err
	}
	return &VersionInfo{Software: pair[0], Protocol: pair[1]}, nil
}

// AddressBalance runs 'blockchain.address.get_balance' across the
// cluster, applying quorum.
func (cl *Cluster) AddressBalance(ctx context.Context, address string) (*Balance, error) {
	res, err := cl.Request(ctx, "blockchain.address.get_balance", address)
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

// ScriptHashBalance runs 'blockchain.scripthash.get_balance' across the
// cluster, applying quorum.
func (cl *Cluster) ScriptHashBalance(ctx context.Context, scriptHash string) (*Balance, error) {
	res, err := cl.Request(ctx, "blockchain.scripthash.get_balance", scriptHash)
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

// BlockHeader runs 'blockchain.block.header' across the cluster, applying
// quorum.
func (cl *Cluster) BlockHeader(ctx context.Context, height uint64) (*BlockHeader, error) {
	res, err := cl.Request(ctx, "blockchain.block.header", height)
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

// BroadcastTransaction runs 'blockchain.transaction.broadcast' across the
// cluster, applying quorum to the returned transaction hash.
func (cl *Cluster) BroadcastTransaction(ctx context.Context, hex string) (string, error) {
	res, err := cl.Request(ctx, "blockchain.transaction.broadcast", hex)
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

// NotifyBlockHeaders subscribes to 'blockchain.headers.subscribe' across
// the cluster. callback fires only once Confidence peers agree on a
// canonical header payload.
func (cl *Cluster) NotifyBlockHeaders(ctx context.Context, callback func(*BlockHeader)) error {
	return cl.Subscribe(ctx, "blockchain.headers.subscribe", func(raw json.RawMessage) {
		var batch []*BlockHeader
		if err := json.Unmarshal(raw, &batch); err == nil {
			for _, h := range batch {
				callback(h)
			}
			return
		}
		h := new(BlockHeader)
		if err := json.Unmarshal(raw, h); err == nil {
			callback(h)
		}
	})
}
