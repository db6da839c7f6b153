package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"regdns/internal/parser"
	"regdns/internal/resolver"
)

var ErrListenerStopped = errors.New("listener stopped")

const (
	minReadBackoff = 5 * time.Millisecond
	maxReadBackoff = time.Second
)

// nextBackoff doubles the delay after a failed read, starting at
// minReadBackoff and capped at maxReadBackoff.
func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minReadBackoff
	}
	d *= 2
	if d > maxReadBackoff {
		d = maxReadBackoff
	}
	return d
}

// Listener answers DNS queries received on a packet connection. Each
// datagram is handled in its own goroutine so a slow reply never holds up
// the next read.
type Listener struct {
	resolver *resolver.Resolver
	table    resolver.NameTable
	logger   *zap.Logger

	mu       sync.Mutex
	conn     net.PacketConn
	done     chan struct{}
	stopped  bool
	inFlight sync.WaitGroup
	served   atomic.Uint64
}

func NewListener(r *resolver.Resolver, table resolver.NameTable, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{
		resolver: r,
		table:    table,
		logger:   logger,
	}
}

func (l *Listener) ListenAndServe(addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return l.Serve(conn)
}

// Serve reads datagrams from conn until Stop is called. It takes ownership of
// conn and returns nil once stopped.
func (l *Listener) Serve(conn net.PacketConn) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		conn.Close()
		return ErrListenerStopped
	}
	l.conn = conn
	l.done = make(chan struct{})
	done := l.done
	l.mu.Unlock()
	defer close(done)

	l.logger.Info("Listening", zap.Stringer("Addr", conn.LocalAddr()))
	// Queries are capped at 512 bytes; anything longer is cut short by the
	// read and then parsed from the prefix.
	buf := make([]byte, parser.MaxPacketSize)
	var backoff time.Duration
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if l.isStopped() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			backoff = nextBackoff(backoff)
			l.logger.Warn("Receive failed", zap.Error(err), zap.Duration("Retry", backoff))
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		pkt := make([]byte, n)
		copy(pkt, buf[:n])

		l.inFlight.Add(1)
		go l.handle(conn, addr, pkt)
	}
}

func (l *Listener) handle(conn net.PacketConn, addr net.Addr, pkt []byte) {
	defer l.inFlight.Done()
	defer func() {
		if p := recover(); p != nil {
			l.logger.Error("Query handler panicked", zap.Stringer("From", addr), zap.Any("Panic", p))
		}
	}()

	resp, err := l.respond(pkt)
	if err != nil {
		l.logger.Debug("Dropping query", zap.Stringer("From", addr), zap.Error(err))
		return
	}
	if _, err := conn.WriteTo(resp, addr); err != nil {
		l.logger.Warn("Send failed", zap.Stringer("To", addr), zap.Error(err))
		return
	}
	l.served.Add(1)
}

func (l *Listener) respond(pkt []byte) ([]byte, error) {
	q, err := parser.ParseQuery(pkt)
	if err != nil {
		return nil, err
	}
	kind, addr := l.resolver.Resolve(q, l.table)
	l.logger.Debug("Query",
		zap.Uint16("ID", q.ID),
		zap.String("Name", q.Name()),
		zap.String("Base", q.BaseName),
		zap.Stringer("Result", kind))
	return parser.SerializeResponse(kind, q, addr)
}

func (l *Listener) isStopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

// Addr returns the bound address, or nil before Serve.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Served reports how many replies have been sent.
func (l *Listener) Served() uint64 {
	return l.served.Load()
}

// Stop halts further reads, closes the socket and waits for queries already
// being processed.
func (l *Listener) Stop() error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	conn, done := l.conn, l.done
	l.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
		<-done
	}
	l.inFlight.Wait()
	return err
}
