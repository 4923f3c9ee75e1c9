package ingest

import (
	"fmt"
	"net"
)

// maxDatagram is the largest UDP payload.
const maxDatagram = 65535

// datagramReader turns NMEA broadcast datagrams into a byte stream. Each
// datagram holds whole sentences, so a missing final newline is added.
type datagramReader struct {
	conn    net.PacketConn
	buf     []byte
	pending []byte
}

func listenUDP(addr string) (*datagramReader, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}
	return &datagramReader{conn: conn, buf: make([]byte, maxDatagram+1)}, nil
}

func (r *datagramReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		n, _, err := r.conn.ReadFrom(r.buf[:maxDatagram])
		if err != nil {
			return 0, err
		}
		if n == 0 {
			continue
		}
		if r.buf[n-1] != '\n' {
			r.buf[n] = '\n'
			n++
		}
		r.pending = r.buf[:n]
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *datagramReader) Close() error { return r.conn.Close() }

func (r *datagramReader) LocalAddr() net.Addr { return r.conn.LocalAddr() }
