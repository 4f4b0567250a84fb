package sink

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/lumenforge/tagpipe/format"
)

// maxDatagramBytes caps a single UDP payload; a longer formatted line
// is truncated to this many bytes before it is sent.
const maxDatagramBytes = 65535

// UDPSink fires formatted records at a UDP endpoint without waiting
// for acknowledgment, matching the teacher pack's original intent for
// SocketLogs ("forward data over ... UDP... trivial overhead").
// Unlike the file sink it is not lock-protected against concurrent
// Accept calls beyond what net.Conn.Write already guarantees, since a
// connected UDP socket's Write is safe for concurrent use.
type UDPSink struct {
	base

	network string // "udp4" or "udp6"
	addr    string

	mu   sync.Mutex
	conn net.Conn
}

// NewUDPSink dials addr (host:port) over UDP. v6 selects "udp6";
// otherwise "udp4" is used. The connection is lazily re-established on
// the next Accept if it drops.
func NewUDPSink(engine *format.Engine, addr string, v6 bool, filters ...Filter) (*UDPSink, error) {
	network := "udp4"
	if v6 {
		network = "udp6"
	}

	s := &UDPSink{
		base:    newBase(engine, filters...),
		network: network,
		addr:    addr,
	}

	if err := s.dial(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *UDPSink) dial() error {
	conn, err := net.DialTimeout(s.network, s.addr, 2*time.Second)
	if err != nil {
		return fmt.Errorf("sink: dial udp %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	return nil
}

// Accept formats r and fires it as a single datagram, truncating to
// maxDatagramBytes. Send errors trigger a lazy reconnect on the next call.
func (s *UDPSink) Accept(r Record) error {
	if !s.base.Loggable(r) {
		return nil
	}

	line := s.base.formatEngine().Format(nil, format.Fields{
		Timestamp: time.Unix(0, r.Timestamp),
		Source:    r.Source,
		Tags:      r.Tags,
		Payload:   s.base.sanitize(r.Payload),
	})
	if len(line) > maxDatagramBytes {
		line = line[:maxDatagramBytes]
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		if err := s.dial(); err != nil {
			return err
		}
		s.mu.Lock()
		conn = s.conn
		s.mu.Unlock()
	}

	if _, err := conn.Write(line); err != nil {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		return fmt.Errorf("sink: udp write to %s: %w", s.addr, err)
	}
	return nil
}

// Close releases the underlying UDP socket.
func (s *UDPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
