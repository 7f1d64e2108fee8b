package feed

import (
	"fmt"
	"net"
)

// UDPPort adapts a UDP listener into a Porter. Phone GPS forwarder apps send
// NMEA sentences as newline-terminated datagrams, which a line scanner reads
// the same way it reads a serial stream.
type UDPPort struct {
	conn *net.UDPConn
}

// ListenUDP opens a LineMux backed by a UDP listener on the given address,
// for example ":10110".
func ListenUDP(addr string) (*LineMux[*UDPPort], error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve udp address %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %q: %w", addr, err)
	}
	return NewLineMux(&UDPPort{conn: conn}), nil
}

func (u *UDPPort) Read(p []byte) (int, error) {
	return u.conn.Read(p)
}

// Write always fails: the UDP feed has no return path to the sender.
func (u *UDPPort) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("udp feed is read-only")
}

func (u *UDPPort) Close() error {
	return u.conn.Close()
}
