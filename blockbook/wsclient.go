// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockbook

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkt-cash/pktd/btcutil/er"
)

// WSClient is a persistent WebSocket JSON-RPC connection to a Blockbook-style
// indexer, grounded on pktwallet/chain.RPCClient's connect/reconnect/
// Start/Stop/WaitForShutdown lifecycle but speaking Blockbook's socket
// protocol instead of a bitcoind RPC dialect.
type WSClient struct {
	url string

	connMu sync.Mutex
	conn   *websocket.Conn

	nextID    uint64
	pending   map[string]chan rpcResponse
	pendingMu sync.Mutex

	subMu sync.Mutex
	subs  map[string]WatchCallback // address -> callback

	quit    chan struct{}
	wg      sync.WaitGroup
	started int32
}

var _ Indexer = (*WSClient)(nil)

type rpcRequest struct {
	ID     string      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

type pushNotification struct {
	ID   string `json:"id"` // empty for unsolicited pushes
	Data struct {
		Address string `json:"address"`
	} `json:"data"`
}

// NewWSClient creates a client bound to a Blockbook WebSocket endpoint. The
// connection is not established until Start is called (same split as
// pktwallet/chain.NewRPCClient).
func NewWSClient(url string) *WSClient {
	return &WSClient{
		url:     url,
		pending: make(map[string]chan rpcResponse),
		subs:    make(map[string]WatchCallback),
		quit:    make(chan struct{}),
	}
}

// Start dials the indexer and begins the read pump.
func (c *WSClient) Start() er.R {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return ErrTransientNetwork.New(c.url, er.E(err))
	}
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	atomic.StoreInt32(&c.started, 1)

	c.wg.Add(1)
	go c.readPump()
	return nil
}

// Stop closes the connection, which ends the read pump. It does not wait
// for the pump to exit; WaitForShutdown does that, the same split as
// pktwallet/chain.RPCClient.Stop/WaitForShutdown.
func (c *WSClient) Stop() {
	select {
	case <-c.quit:
		return
	default:
		close(c.quit)
	}
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.connMu.Unlock()
}

// WaitForShutdown blocks until the read pump goroutine has exited.
func (c *WSClient) WaitForShutdown() {
	c.wg.Wait()
}

func (c *WSClient) readPump() {
	defer c.wg.Done()
	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			return
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.quit:
			default:
				log.Warnf("blockbook: read error: %v", err)
			}
			return
		}
		c.dispatch(raw)
	}
}

func (c *WSClient) dispatch(raw []byte) {
	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err == nil && resp.ID != "" {
		c.pendingMu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.pendingMu.Unlock()
		if ok {
			ch <- resp
			return
		}
	}

	var push pushNotification
	if err := json.Unmarshal(raw, &push); err == nil && push.Data.Address != "" {
		c.subMu.Lock()
		cb := c.subs[push.Data.Address]
		c.subMu.Unlock()
		if cb != nil {
			cb(push.Data.Address)
		}
	}
}

func (c *WSClient) call(method string, params interface{}, out interface{}) er.R {
	id := fmt.Sprintf("%d", atomic.AddUint64(&c.nextID, 1))
	ch := make(chan rpcResponse, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	req := rpcRequest{ID: id, Method: method, Params: params}
	payload, jerr := json.Marshal(req)
	if jerr != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return ErrMalformedResponse.New("encode request", er.E(jerr))
	}

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return ErrTransientNetwork.New("not connected", nil)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return ErrTransientNetwork.New("write", er.E(err))
	}

	select {
	case resp := <-ch:
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return ErrMalformedResponse.New(method, er.E(err))
		}
		return nil
	case <-time.After(30 * time.Second):
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return ErrTransientNetwork.New(method+": timed out", nil)
	case <-c.quit:
		return ErrTransientNetwork.New(method+": client stopped", nil)
	}
}

func (c *WSClient) FetchAddress(address string, opts FetchAddressOptions) (*AddressDetails, er.R) {
	params := map[string]interface{}{
		"address": address,
		"details": "txs",
		"from":    opts.From,
		"perPage": opts.PerPage,
		"page":    opts.Page,
	}
	var out AddressDetails
	if err := c.call("getAccountInfo", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *WSClient) FetchAddressUtxos(address string) ([]Utxo, er.R) {
	var out []Utxo
	if err := c.call("getAccountUtxo", map[string]string{"address": address}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *WSClient) FetchTransaction(txid string) (*RawTx, er.R) {
	var out RawTx
	if err := c.call("getTransaction", map[string]string{"txid": txid}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WatchAddresses (re)issues a subscription covering the full watch-set
// snapshot passed in: every first visit to a new address re-subscribes
// with the whole set so far.
func (c *WSClient) WatchAddresses(addresses []string, cb WatchCallback) er.R {
	c.subMu.Lock()
	for _, a := range addresses {
		c.subs[a] = cb
	}
	c.subMu.Unlock()

	if err := c.call("subscribeAddresses", map[string][]string{"addresses": addresses}, nil); err != nil {
		return err
	}
	return nil
}
