package com

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"

	"github.com/giongto35/proctor/pkg/api"
	"github.com/giongto35/proctor/pkg/logger"
	"github.com/giongto35/proctor/pkg/network/websocket"
)

type (
	Connector struct {
		wu *websocket.Upgrader
	}
	// Client is a packet-oriented websocket connection.
	// All sends are fire-and-forget.
	Client struct {
		id       Uid
		conn     *websocket.WS
		onPacket func(packet api.In)
		log      *logger.Logger
		mu       sync.Mutex
	}
	Option = func(c *Connector)
)

var errNoHandler = errors.New("no packet handler")

func WithOrigin(url string) Option { return func(c *Connector) { c.wu = websocket.NewUpgrader(url) } }

func NewConnector(opts ...Option) *Connector {
	c := &Connector{}
	for _, opt := range opts {
		opt(c)
	}
	if c.wu == nil {
		c.wu = &websocket.DefaultUpgrader
	}
	return c
}

func (co *Connector) NewServer(w http.ResponseWriter, r *http.Request, log *logger.Logger) (*Client, error) {
	ws, err := co.wu.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	id := NewUid()
	log = log.Extend(log.With().Str("cid", id.Short()))
	conn, err := websocket.NewServerWithConn(ws, log)
	if err != nil {
		return nil, err
	}
	return newClient(id, conn, log), nil
}

func (co *Connector) NewClient(ctx context.Context, address url.URL, log *logger.Logger) (*Client, error) {
	conn, err := websocket.NewClient(ctx, address, log)
	if err != nil {
		return nil, err
	}
	return newClient(NilUid, conn, log), nil
}

func newClient(id Uid, conn *websocket.WS, log *logger.Logger) *Client {
	c := &Client{id: id, conn: conn, log: log}
	conn.OnMessage = c.handleMessage
	return c
}

func (c *Client) Id() Uid { return c.id }

func (c *Client) OnPacket(fn func(packet api.In)) { c.mu.Lock(); c.onPacket = fn; c.mu.Unlock() }

// Listen starts the connection pumps, returns a channel closed on disconnect.
func (c *Client) Listen() chan struct{} { return c.conn.Listen() }

func (c *Client) Close() { c.conn.Close() }

// Notify just sends a message and goes further.
func (c *Client) Notify(t api.PT, payload any) error {
	c.log.Debug().Str("d", "→").Msgf("%v", t)
	data, err := api.Encode(api.Out{T: t, Payload: payload})
	if err != nil {
		return err
	}
	return c.conn.Write(data)
}

func (c *Client) handleMessage(message []byte, err error) {
	if err != nil {
		c.log.Error().Err(err).Send()
		return
	}
	packet, err := api.Decode(message)
	if err != nil {
		c.log.Warn().Err(err).Msg("malformed packet")
		return
	}
	c.log.Debug().Str("d", "←").Msgf("%v", packet.T)

	c.mu.Lock()
	fn := c.onPacket
	c.mu.Unlock()
	if fn == nil {
		c.log.Warn().Err(errNoHandler).Msgf("dropped %v", packet.T)
		return
	}
	fn(packet)
}
