package electrum

import (
	"context"
	"encoding/json"
)

// NotifyBlockHeaders subscribes to 'blockchain.headers.subscribe'. The
// returned channel receives the current tip immediately, then one update
// per new block. It is closed only once ctx is done; neither Disconnect
// nor the underlying connection dying closes it, so callers should rely
// on ctx instead.
//
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#blockchain-headers-subscribe
func (c *Client) NotifyBlockHeaders(ctx context.Context) (<-chan *BlockHeader, error) {
	// One slot of buffer holds the initial header while Subscribe runs;
	// notifications wait on initialSent so they always follow it.
	headers := make(chan *BlockHeader, 1)
	initialSent := make(chan struct{})

	deliver := func(raw json.RawMessage) {
		// A notification carries an array of one header; the initial
		// response carries the header object directly.
		var batch []*BlockHeader
		if err := json.Unmarshal(raw, &batch); err == nil {
			if len(batch) == 0 {
				return
			}
			select {
			case <-initialSent:
			case <-ctx.Done():
				return
			}
			for _, h := range batch {
				select {
				case headers <- h:
				case <-ctx.Done():
				}
			}
			return
		}
		h := new(BlockHeader)
		if err := json.Unmarshal(raw, h); err != nil {
			c.hooks.Errors("client: malformed block header notification: %v", err)
			return
		}
		select {
		case headers <- h:
		case <-ctx.Done():
		}
	}

	ok, err := c.Subscribe(ctx, "blockchain.headers.subscribe", deliver)
	if err != nil || !ok {
		close(headers)
		return nil, err
	}
	close(initialSent)
	go func() {
		<-ctx.Done()
		close(headers)
	}()
	return headers, nil
}

// NotifyAddressTransactions subscribes to 'blockchain.address.subscribe'
// for address. The returned channel receives the current status hash
// immediately, then one update per mempool/confirmation change.
//
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#blockchain-address-subscribe
func (c *Client) NotifyAddressTransactions(ctx context.Context, address string) (<-chan string, error) {
	return c.notifyStatusHash(ctx, "blockchain.address.subscribe", address)
}

// NotifyScriptHashTransactions subscribes to
// 'blockchain.scripthash.subscribe' for scriptHash, the address-agnostic
// successor to NotifyAddressTransactions used from protocol 1.2 onward.
//
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#blockchain-scripthash-subscribe
func (c *Client) NotifyScriptHashTransactions(ctx context.Context, scriptHash string) (<-chan string, error) {
	return c.notifyStatusHash(ctx, "blockchain.scripthash.subscribe", scriptHash)
}

func (c *Client) notifyStatusHash(ctx context.Context, method, key string) (<-chan string, error) {
	// One slot of buffer holds the initial status while Subscribe runs;
	// notifications wait on initialSent so they always follow it.
	statuses := make(chan string, 1)
	initialSent := make(chan struct{})

	deliver := func(raw json.RawMessage) {
		// A notification carries [key, status]; the initial response
		// carries the status alone.
		var pair []*string
		if err := json.Unmarshal(raw, &pair); err == nil {
			if len(pair) != 2 || pair[1] == nil {
				return
			}
			select {
			case <-initialSent:
			case <-ctx.Done():
				return
			}
			select {
			case statuses <- *pair[1]:
			case <-ctx.Done():
			}
			return
		}
		var status string
		if err := json.Unmarshal(raw, &status); err != nil {
			c.hooks.Errors("client: malformed subscription status for %s: %v", method, err)
			return
		}
		select {
		case statuses <- status:
		case <-ctx.Done():
		}
	}

	ok, err := c.Subscribe(ctx, method, deliver, key)
	if err != nil || !ok {
		close(statuses)
		return nil, err
	}
	close(initialSent)
	go func() {
		<-ctx.Done()
		close(statuses)
	}()
	return statuses, nil
}
