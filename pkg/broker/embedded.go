// Package broker runs an in-process MQTT broker for local setups without
// an external one.
package broker

import (
	"fmt"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"go.uber.org/zap"
)

type Embedded struct {
	server  *mochi.Server
	address string
	logger  *zap.Logger
}

// Start listens on address (host:port) and accepts every client.
func Start(address string, logger *zap.Logger) (*Embedded, error) {
	server := mochi.New(nil)
	if err := server.AddHook(&auth.AllowHook{}, nil); err != nil {
		return nil, fmt.Errorf("add auth hook: %w", err)
	}

	tcp := listeners.NewTCP(listeners.Config{
		ID:      "geo-embedded",
		Type:    "tcp",
		Address: address,
	})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}
	if err := server.Serve(); err != nil {
		return nil, fmt.Errorf("serve mqtt: %w", err)
	}

	logger.Info("embedded mqtt broker started", zap.String("address", address))
	return &Embedded{server: server, address: address, logger: logger}, nil
}

// URL is the broker URL clients should connect to.
func (e *Embedded) URL() string {
	return "tcp://" + e.address
}

func (e *Embedded) Close() error {
	e.logger.Info("stopping embedded mqtt broker")
	return e.server.Close()
}
