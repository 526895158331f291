package client

import (
	"errors"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/vulcan-rs/vulcan/pkg/dhcp"
)

// ServerPort and ClientPort are the well-known DHCP UDP ports (§6).
const (
	ServerPort = 67
	ClientPort = 68
)

// ErrReadTimeout is the distinct "no datagram before deadline" signal
// spec.md §7 calls out separately from I/O errors, so a handler can tell
// a retransmit-worthy timeout apart from a fatal socket failure.
var ErrReadTimeout = errors.New("dhcp: read timeout")

// Socket is what ClientEngine needs from a UDP transport. A real
// implementation binds port 68 with SO_BROADCAST; tests substitute an
// in-memory fake.
type Socket interface {
	Send(m *dhcp.Message, dest net.IP, port int) error
	Receive(timeout time.Duration) (*dhcp.Message, net.IP, error)
	Close() error
}

// udpSocket is the production Socket, grounded on the raw-socket dance in
// the corpus's DHCP client (SO_BINDTODEVICE + SO_BROADCAST + SO_REUSEADDR,
// then handed to net.FilePacketConn so ordinary ReadFrom/WriteTo and
// deadlines work).
type udpSocket struct {
	conn   net.PacketConn
	ifName string
}

// NewUDPSocket binds a UDP endpoint on ClientPort on ifName, with
// broadcast enabled, per §4.3 step 1.
func NewUDPSocket(ifName string) (Socket, error) {
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_DGRAM, 0)
	if err != nil {
		return nil, err
	}
	closeOnErr := true
	defer func() {
		if closeOnErr {
			syscall.Close(fd)
		}
	}()

	if err := syscall.SetNonblock(fd, true); err != nil {
		return nil, err
	}
	if ifName != "" {
		if err := syscall.SetsockoptString(fd, syscall.SOL_SOCKET, syscall.SO_BINDTODEVICE, ifName); err != nil {
			return nil, err
		}
	}
	if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		return nil, err
	}
	if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1); err != nil {
		return nil, err
	}

	var sa syscall.SockaddrInet4
	sa.Port = ClientPort
	copy(sa.Addr[:], net.IPv4zero.To4())
	if err := syscall.Bind(fd, &sa); err != nil {
		return nil, err
	}

	file := os.NewFile(uintptr(fd), "dhcp-client-socket")
	conn, err := net.FilePacketConn(file)
	file.Close()
	if err != nil {
		return nil, err
	}
	closeOnErr = false

	return &udpSocket{conn: conn, ifName: ifName}, nil
}

func (s *udpSocket) Send(m *dhcp.Message, dest net.IP, port int) error {
	wire, err := dhcp.Encode(m)
	if err != nil {
		return err
	}
	_, err = s.conn.WriteTo(wire, &net.UDPAddr{IP: dest, Port: port})
	return err
}

func (s *udpSocket) Receive(timeout time.Duration) (*dhcp.Message, net.IP, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, nil, err
	}
	buf := make([]byte, 1500)
	n, addr, err := s.conn.ReadFrom(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, nil, ErrReadTimeout
		}
		return nil, nil, err
	}
	m, err := dhcp.Decode(buf[:n])
	if err != nil {
		return nil, nil, err
	}
	var fromIP net.IP
	if udpAddr, ok := addr.(*net.UDPAddr); ok {
		fromIP = udpAddr.IP
	}
	return m, fromIP, nil
}

func (s *udpSocket) Close() error { return s.conn.Close() }
