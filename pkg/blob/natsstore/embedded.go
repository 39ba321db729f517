package natsstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// Embedded is an in-process JetStream server for single-node deployments
// and local development.
type Embedded struct {
	srv *server.Server
	nc  *nats.Conn
}

// RunEmbedded starts a JetStream server on a loopback port that persists
// objects under storeDir, and connects to it.
func RunEmbedded(storeDir string) (*Embedded, error) {
	if storeDir == "" {
		return nil, errors.New("natsstore: embedded store_dir is required")
	}
	srv, err := server.NewServer(&server.Options{
		ServerName: "voxpreview-embedded",
		Host:       "127.0.0.1",
		Port:       server.RANDOM_PORT,
		JetStream:  true,
		StoreDir:   storeDir,
		NoSigs:     true,
		NoLog:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("natsstore: embedded server: %w", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		return nil, errors.New("natsstore: embedded server not ready")
	}

	nc, err := Connect(srv.ClientURL())
	if err != nil {
		srv.Shutdown()
		return nil, err
	}
	return &Embedded{srv: srv, nc: nc}, nil
}

// Conn returns the client connection to the embedded server.
func (e *Embedded) Conn() *nats.Conn { return e.nc }

// Close drains the connection and stops the server.
func (e *Embedded) Close() error {
	err := e.nc.Drain()
	e.srv.Shutdown()
	e.srv.WaitForShutdown()
	return err
}
