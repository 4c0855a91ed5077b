package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"
)

const serviceType = "_http._tcp"

// Advertise registers the control server as an mDNS service on the LAN and
// blocks until ctx is cancelled.
func Advertise(ctx context.Context, name, addr string) error {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid server address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid server port %q: %w", portStr, err)
	}

	txt := []string{"path=/", "id=" + uuid.NewString()}
	server, err := zeroconf.Register(name, serviceType, "local.", port, txt, nil)
	if err != nil {
		return fmt.Errorf("zeroconf register: %w", err)
	}
	slog.Info("registered mDNS service", "name", name, "port", port, "txt", txt)

	<-ctx.Done()

	server.Shutdown()
	slog.Info("mDNS service unregistered", "name", name)
	return nil
}
