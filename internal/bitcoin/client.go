// Package bitcoin is the optional live-chain-tip confirmation path for the
// event source adapter (C8): an indexer can run purely off an
// eventsource.Source JSON-lines stream, but when BITCOIN_RPC_HOST is set it
// additionally cross-checks the decoded block identity against a live
// Bitcoin Core node before accepting it, to catch an upstream decoder bug
// or a stale replay feed. Trimmed from the teacher's full wallet/mempool/fee-
// estimation RPC wrapper (internal/bitcoin/client.go) down to the read-only
// subset this confirmation path needs.
package bitcoin

import (
	"fmt"
	"log"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
)

// Config holds the RPC credentials for a Bitcoin Core node.
type Config struct {
	Host string
	User string
	Pass string
}

// Client wraps a read-only rpcclient.Client connection.
type Client struct {
	RPC    *rpcclient.Client
	Config Config
}

// NewClient connects to a Bitcoin Core node and verifies it is reachable.
func NewClient(cfg Config) (*Client, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}

	log.Printf("bitcoin: connecting to RPC at %s", cfg.Host)
	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("connect bitcoin rpc: %w", err)
	}

	blockCount, err := client.GetBlockCount()
	if err != nil {
		client.Shutdown()
		return nil, fmt.Errorf("verify bitcoin rpc: %w", err)
	}
	log.Printf("bitcoin: connected, node tip height %d", blockCount)

	return &Client{RPC: client, Config: cfg}, nil
}

// Shutdown closes the RPC connection.
func (c *Client) Shutdown() {
	c.RPC.Shutdown()
}

// GetBlockChainInfo returns the node's chain state, used to sanity-check the
// event source isn't running far ahead of or behind the live chain.
func (c *Client) GetBlockChainInfo() (*btcjson.GetBlockChainInfoResult, error) {
	return c.RPC.GetBlockChainInfo()
}

// GetBlockHash resolves a height to the node's canonical block hash at that
// height, for confirming a decoded BlockEvent against the live chain.
func (c *Client) GetBlockHash(blockHeight int64) (*chainhash.Hash, error) {
	return c.RPC.GetBlockHash(blockHeight)
}

// GetBlockVerbose returns full block metadata for a hash.
func (c *Client) GetBlockVerbose(blockHash *chainhash.Hash) (*btcjson.GetBlockVerboseResult, error) {
	return c.RPC.GetBlockVerbose(blockHash)
}

// ConfirmTip checks that the live node agrees the given height/hash pair is
// on its best chain, returning an error if the node has a different block at
// that height (a reorg the event source hasn't caught up to, or a decoder
// bug upstream).
func (c *Client) ConfirmTip(height int64, hash string) error {
	nodeHash, err := c.GetBlockHash(height)
	if err != nil {
		return fmt.Errorf("confirm tip %d: %w", height, err)
	}
	if nodeHash.String() != hash {
		return fmt.Errorf("confirm tip %d: event source hash %s does not match node hash %s", height, hash, nodeHash.String())
	}
	return nil
}
