package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"regdns/internal/parser"
)

const defaultExchangeTimeout = 2 * time.Second

// Exchange sends one datagram to addr and waits for a single reply. The
// deadline comes from ctx, or defaults to two seconds.
func Exchange(ctx context.Context, data []byte, addr string) ([]byte, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultExchangeTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("write to %s: %w", addr, err)
	}

	resp := make([]byte, parser.MaxPacketSize)
	n, err := conn.Read(resp)
	if err != nil {
		return nil, fmt.Errorf("read from %s: %w", addr, err)
	}
	return resp[:n], nil
}
