// Package transport provides the byte streams dpsctl talks over: a serial
// port, or UDP when the device has a wifi bridge. Both satisfy
// io.ReadWriteCloser; the protocol layers above are transport-agnostic.
package transport

import (
	"fmt"
	"io"
	"net"
	"time"

	"go.bug.st/serial"
)

// Port is the UDP port an OpenDPS wifi bridge listens on.
const Port = 5005

// BaudRate is the fixed serial link rate.
const BaudRate = 115200

// ReadTimeout bounds a single read on either transport. The protocol layer
// treats a timeout as "no response".
const ReadTimeout = time.Second

// Dial opens a connection to name: UDP when name parses as an IP address,
// a serial port otherwise.
func Dial(name string) (io.ReadWriteCloser, error) {
	if net.ParseIP(name) != nil {
		return UDP(name)
	}
	return Serial(name)
}

// Serial opens a serial port at 115200 8N1 with a bounded read timeout.
func Serial(device string) (io.ReadWriteCloser, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: BaudRate})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	if err := port.SetReadTimeout(ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return port, nil
}

// UDP opens a datagram transport to host. Each write is one datagram; each
// read returns one datagram, which carries exactly one frame.
func UDP(host string) (io.ReadWriteCloser, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, Port))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &udpConn{conn: conn}, nil
}

type udpConn struct {
	conn *net.UDPConn
}

func (u *udpConn) Read(p []byte) (int, error) {
	if err := u.conn.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
		return 0, err
	}
	return u.conn.Read(p)
}

func (u *udpConn) Write(p []byte) (int, error) {
	return u.conn.Write(p)
}

func (u *udpConn) Close() error {
	return u.conn.Close()
}
