package electrum

import "context"

// UTXOAddress would have run a 'blockchain.utxo.get_address' operation.
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#blockchain.utxo.get_address
//
// Deprecated: Since protocol 1.0
// https://electrumx.readthedocs.io/en/latest/protocol-changes.html#deprecated-methods
func (c *Client) UTXOAddress(utxo string) (string, error) {
	return "", ErrDeprecatedMethod
}

// BlockChunk would have run a 'blockchain.block.get_chunk' operation.
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#blockchain.block.get_chunk
//
// Deprecated: Since protocol 1.2
// https://electrumx.readthedocs.io/en/latest/protocol-changes.html#version-1-2
func (c *Client) BlockChunk(index int) (any, error) {
	return nil, ErrDeprecatedMethod
}

// NotifyBlockNums would have set up a subscription for the method
// 'blockchain.numblocks.subscribe'.
// https://electrumx.readthedocs.io/en/latest/protocol-methods.html#blockchain.numblocks.subscribe
//
// Deprecated: Since protocol 1.0
// https://electrumx.readthedocs.io/en/latest/protocol-changes.html#deprecated-methods
func (c *Client) NotifyBlockNums(ctx context.Context) (<-chan int, error) {
	return nil, ErrDeprecatedMethod
}
