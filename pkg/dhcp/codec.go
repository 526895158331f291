package dhcp

import (
	"bytes"
	"encoding/binary"
	"net"
)

// reader is a cursor over a decode buffer. It never panics: every read
// that would run past the end of buf returns BufTooShort.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) byte() (byte, error) {
	if r.remaining() < 1 {
		return 0, newErr(BufTooShort, "expected 1 byte at offset %d", r.pos)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, newErr(BufTooShort, "expected %d bytes at offset %d, have %d", n, r.pos, r.remaining())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) ipv4() (net.IP, error) {
	b, err := r.bytes(4)
	if err != nil {
		return nil, err
	}
	return net.IP(append([]byte(nil), b...)), nil
}

// Decode parses a wire-format DHCP message (§4.1). It does not require
// the input to already be padded to MinWireLength.
func Decode(buf []byte) (*Message, error) {
	r := &reader{buf: buf}
	m := &Message{}

	var err error
	if m.Opcode, err = r.byte(); err != nil {
		return nil, err
	}
	if m.Htype, err = r.byte(); err != nil {
		return nil, err
	}
	hlen, err := r.byte()
	if err != nil {
		return nil, err
	}
	if m.Hops, err = r.byte(); err != nil {
		return nil, err
	}
	if m.Xid, err = r.uint32(); err != nil {
		return nil, err
	}
	if m.Secs, err = r.uint16(); err != nil {
		return nil, err
	}
	if m.Flags, err = r.uint16(); err != nil {
		return nil, err
	}

	if m.CIAddr, err = r.ipv4(); err != nil {
		return nil, err
	}
	if m.YIAddr, err = r.ipv4(); err != nil {
		return nil, err
	}
	if m.SIAddr, err = r.ipv4(); err != nil {
		return nil, err
	}
	if m.GIAddr, err = r.ipv4(); err != nil {
		return nil, err
	}

	if hlen > chaddrLen {
		return nil, newErr(InvalidData, "hlen %d exceeds %d", hlen, chaddrLen)
	}
	chaddrBytes, err := r.bytes(chaddrLen)
	if err != nil {
		return nil, err
	}
	var chaddrArr [chaddrLen]byte
	copy(chaddrArr[:], chaddrBytes)
	if m.CHAddr, err = hardwareAddrFromChaddr(chaddrArr, hlen); err != nil {
		return nil, err
	}

	snameBytes, err := r.bytes(len(m.SName))
	if err != nil {
		return nil, err
	}
	copy(m.SName[:], snameBytes)

	fileBytes, err := r.bytes(len(m.File))
	if err != nil {
		return nil, err
	}
	copy(m.File[:], fileBytes)

	cookie, err := r.bytes(4)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(cookie, MagicCookie[:]) {
		return nil, newErr(InvalidData, "bad magic cookie % x", cookie)
	}

	if err := m.decodeOptions(r); err != nil {
		return nil, err
	}
	return m, nil
}

// decodeOptions reads the TLV option stream until End (255) or the
// buffer is exhausted (§4.1 step 6). Duplicate tags are accepted
// defensively on decode; GetOption resolves them first-wins (§9).
func (m *Message) decodeOptions(r *reader) error {
	for r.remaining() > 0 {
		tagByte, err := r.byte()
		if err != nil {
			return err
		}
		tag := OptionTag(tagByte)
		if tag == OptPad {
			continue
		}
		if tag == OptEnd {
			return nil
		}

		length, err := r.byte()
		if err != nil {
			return err
		}
		data, err := r.bytes(int(length))
		if err != nil {
			return err
		}
		if err := validateOptionData(tag, data); err != nil {
			return err
		}
		m.Options = append(m.Options, Option{Tag: tag, Data: append([]byte(nil), data...)})
	}
	return nil
}

// Encode renders m to wire format (§4.1). The result is zero-padded to
// MinWireLength if shorter, and order of Options is preserved exactly.
func Encode(m *Message) ([]byte, error) {
	buf := new(bytes.Buffer)

	buf.WriteByte(m.Opcode)
	buf.WriteByte(m.Htype)
	buf.WriteByte(byte(m.CHAddr.Len()))
	buf.WriteByte(m.Hops)
	writeUint32(buf, m.Xid)
	writeUint16(buf, m.Secs)
	writeUint16(buf, m.Flags)
	writeIPv4(buf, m.CIAddr)
	writeIPv4(buf, m.YIAddr)
	writeIPv4(buf, m.SIAddr)
	writeIPv4(buf, m.GIAddr)

	chaddr := m.CHAddr.chaddr()
	buf.Write(chaddr[:])
	buf.Write(m.SName[:])
	buf.Write(m.File[:])
	buf.Write(MagicCookie[:])

	seen := make(map[OptionTag]bool, len(m.Options))
	for _, opt := range m.Options {
		if seen[opt.Tag] {
			return nil, &Error{Kind: DuplicateOption, Tag: opt.Tag}
		}
		seen[opt.Tag] = true

		if err := validateOptionData(opt.Tag, opt.Data); err != nil {
			return nil, err
		}
		if len(opt.Data) > 255 {
			return nil, newErr(InvalidData, "option %d: payload length %d exceeds 255", opt.Tag, len(opt.Data))
		}
		buf.WriteByte(byte(opt.Tag))
		buf.WriteByte(byte(len(opt.Data)))
		buf.Write(opt.Data)
	}
	buf.WriteByte(byte(OptEnd))

	out := buf.Bytes()
	if len(out) < MinWireLength {
		out = append(out, make([]byte, MinWireLength-len(out))...)
	}

	if maxSize, ok := m.GetOption(OptMaxDhcpMessageSize); ok {
		if limit := int(maxSize.Uint16()); limit > 0 && len(out) > limit {
			return nil, newErr(InvalidData, "encoded length %d exceeds negotiated max %d", len(out), limit)
		}
	}

	return out, nil
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeIPv4(buf *bytes.Buffer, ip net.IP) {
	var b [4]byte
	if v4 := ip.To4(); v4 != nil {
		copy(b[:], v4)
	}
	buf.Write(b[:])
}
