// Package nats provides a NATS JetStream backed EventStorage and
// Snapshotter.
package nats

import (
	"os"

	natsgo "github.com/nats-io/nats.go"
)

type closeFunc = func()

// Connector creates the underlying NATS connection. Separating
// connecting from configuration lets tests inject containers and
// production share URLs.
type Connector func() (nc *natsgo.Conn, close closeFunc, err error)

func ConnectURL(natsURL string) Connector {
	return func() (*natsgo.Conn, closeFunc, error) {
		nc, err := natsgo.Connect(
			natsURL,
			natsgo.MaxReconnects(3),
		)
		if err != nil {
			return nil, nil, err
		}
		return nc, func() { nc.Close() }, nil
	}
}

// ReuseConnection wraps an existing connection. The caller stays
// responsible for closing it.
func ReuseConnection(nc *natsgo.Conn) Connector {
	return func() (*natsgo.Conn, closeFunc, error) {
		return nc, func() {}, nil
	}
}

// ConnectDefault connects to $NATS_URL, falling back to the default
// local URL.
func ConnectDefault() Connector {
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		return ConnectURL(natsURL)
	}
	return ConnectURL(natsgo.DefaultURL)
}
