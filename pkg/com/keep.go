package com

import (
	"context"
	"errors"

	"github.com/giongto35/proctor/pkg/logger"
	"github.com/giongto35/proctor/pkg/network"
)

var ErrGaveUp = errors.New("no reconnect attempts left")

type Conn interface {
	Listen() chan struct{}
	Close()
}

// Keep holds a connection open, dialing it again after each disconnect.
// The serve func is called with every new connection before it starts listening.
// It returns nil when the context is done.
func Keep[T Conn](ctx context.Context, retry network.Retry, dial func(context.Context) (T, error), serve func(T), log *logger.Logger) error {
	for {
		conn, err := dial(ctx)
		if err == nil {
			retry.Success()
			serve(conn)
			done := conn.Listen()
			select {
			case <-done:
				log.Warn().Msg("connection lost")
			case <-ctx.Done():
				conn.Close()
				<-done
				return nil
			}
		} else {
			log.Warn().Err(err).Msgf("couldn't connect, next try in %v", retry.Time())
		}
		if ctx.Err() != nil {
			return nil
		}
		if !retry.Fail(ctx) {
			if ctx.Err() != nil {
				return nil
			}
			return ErrGaveUp
		}
	}
}
