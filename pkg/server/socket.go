package server

import (
	"net"
	"os"
	"syscall"

	"github.com/vulcan-rs/vulcan/pkg/dhcp"
)

// ServerPort and ClientPort are the well-known DHCP UDP ports (§6).
const (
	ServerPort = 67
	ClientPort = 68
)

// Socket is what ServerDispatcher needs from a UDP transport.
type Socket interface {
	Send(m *dhcp.Message, dest net.IP, port int) error
	Receive() (*dhcp.Message, net.IP, error)
	Close() error
}

type udpSocket struct {
	conn net.PacketConn
}

// NewUDPSocket binds UDP ServerPort on ifName with broadcast enabled
// (§4.4 step: "Binds UDP on port 67").
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
	sa.Port = ServerPort
	copy(sa.Addr[:], net.IPv4zero.To4())
	if err := syscall.Bind(fd, &sa); err != nil {
		return nil, err
	}

	file := os.NewFile(uintptr(fd), "dhcp-server-socket")
	conn, err := net.FilePacketConn(file)
	file.Close()
	if err != nil {
		return nil, err
	}
	closeOnErr = false

	return &udpSocket{conn: conn}, nil
}

func (s *udpSocket) Send(m *dhcp.Message, dest net.IP, port int) error {
	wire, err := dhcp.Encode(m)
	if err != nil {
		return err
	}
	_, err = s.conn.WriteTo(wire, &net.UDPAddr{IP: dest, Port: port})
	return err
}

func (s *udpSocket) Receive() (*dhcp.Message, net.IP, error) {
	buf := make([]byte, 1500)
	n, addr, err := s.conn.ReadFrom(buf)
	if err != nil {
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
