package dhcp

import (
	"fmt"
	"strconv"
	"strings"
)

// chaddrLen is the fixed width of the chaddr field (§3).
const chaddrLen = 16

// HardwareAddr is a link-layer address padded to the 16-octet chaddr
// field width. addr holds the real bytes (1..16 of them); padding holds
// the remaining zero bytes such that len(addr)+len(padding) == 16.
type HardwareAddr struct {
	addr    []byte
	padding []byte
}

// ParseHardwareAddr parses a colon-separated hex string such as
// "DE:AD:BE:EF:12:34" into a HardwareAddr. A bare two-character string
// (a single byte, hlen 1) needs no separator; anything longer without a
// ':' is InvalidSeparator (original_source's addr.rs TryFrom<String>).
func ParseHardwareAddr(s string) (HardwareAddr, error) {
	if len(s) > 2 && !strings.Contains(s, ":") {
		return HardwareAddr{}, newErr(InvalidSeparator, "hardware address %q: expected ':'-separated bytes", s)
	}
	parts := strings.Split(s, ":")
	if len(parts) > chaddrLen {
		return HardwareAddr{}, newErr(InvalidLength, "hardware address %q: %d bytes exceeds max %d", s, len(parts), chaddrLen)
	}
	addr := make([]byte, len(parts))
	for i, p := range parts {
		if len(p) != 2 {
			return HardwareAddr{}, newErr(InvalidByte, "hardware address %q: invalid byte %q", s, p)
		}
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return HardwareAddr{}, newErr(InvalidByte, "hardware address %q: invalid byte %q", s, p)
		}
		addr[i] = byte(v)
	}
	return NewHardwareAddr(addr)
}

// NewHardwareAddr builds a HardwareAddr from raw bytes, padding to 16
// octets. Fails if addr is longer than 16 bytes.
func NewHardwareAddr(addr []byte) (HardwareAddr, error) {
	if len(addr) == 0 || len(addr) > chaddrLen {
		return HardwareAddr{}, newErr(InvalidData, "hardware address: invalid length %d", len(addr))
	}
	h := HardwareAddr{
		addr:    append([]byte(nil), addr...),
		padding: make([]byte, chaddrLen-len(addr)),
	}
	return h, nil
}

// hardwareAddrFromChaddr splits a 16-byte chaddr field using hlen as the
// boundary between real address bytes and zero padding.
func hardwareAddrFromChaddr(chaddr [chaddrLen]byte, hlen uint8) (HardwareAddr, error) {
	if hlen > chaddrLen {
		return HardwareAddr{}, newErr(InvalidData, "hlen %d exceeds chaddr width %d", hlen, chaddrLen)
	}
	return HardwareAddr{
		addr:    append([]byte(nil), chaddr[:hlen]...),
		padding: append([]byte(nil), chaddr[hlen:]...),
	}, nil
}

// Bytes returns the real address bytes (without padding).
func (h HardwareAddr) Bytes() []byte { return append([]byte(nil), h.addr...) }

// Len returns hlen: the number of real address bytes.
func (h HardwareAddr) Len() int { return len(h.addr) }

// chaddr renders the full 16-octet chaddr field.
func (h HardwareAddr) chaddr() [chaddrLen]byte {
	var out [chaddrLen]byte
	copy(out[:], h.addr)
	copy(out[len(h.addr):], h.padding)
	return out
}

// String renders the address as colon-separated hex, e.g. "de:ad:be:ef:12:34".
func (h HardwareAddr) String() string {
	parts := make([]string, len(h.addr))
	for i, b := range h.addr {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, ":")
}

// Equal reports whether two hardware addresses carry the same real bytes.
func (h HardwareAddr) Equal(o HardwareAddr) bool {
	if len(h.addr) != len(o.addr) {
		return false
	}
	for i := range h.addr {
		if h.addr[i] != o.addr[i] {
			return false
		}
	}
	return true
}
