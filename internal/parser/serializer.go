package parser

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

func (w *dnsWriter) grow(n int) (int, error) {
	if w.pos+n > len(w.data) {
		return 0, fmt.Errorf("%w: writing %d bytes at %d", ErrPacketTooLarge, n, w.pos)
	}
	at := w.pos
	w.pos += n
	return at, nil
}

func (w *dnsWriter) writeUint16(v uint16) error {
	at, err := w.grow(2)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(w.data[at:], v)
	return nil
}

func (w *dnsWriter) writeUint32(v uint32) error {
	at, err := w.grow(4)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(w.data[at:], v)
	return nil
}

func (w *dnsWriter) writeBytes(v []byte) error {
	at, err := w.grow(len(v))
	if err != nil {
		return err
	}
	copy(w.data[at:], v)
	return nil
}

// putUint16 overwrites two bytes that were already written.
func (w *dnsWriter) putUint16(offset int, v uint16) {
	binary.BigEndian.PutUint16(w.data[offset:], v)
}

func (w *dnsWriter) uint16At(offset int) uint16 {
	return binary.BigEndian.Uint16(w.data[offset:])
}

func (w *dnsWriter) bytes() []byte {
	out := make([]byte, w.pos)
	copy(out, w.data[:w.pos])
	return out
}

func (w *dnsWriter) setFlags(rcode RCode) {
	flags := w.uint16At(flagsOffset)
	flags |= QRMask | AAMask
	flags &^= RCodeMask
	flags |= uint16(rcode) & RCodeMask
	w.putUint16(flagsOffset, flags)
}

// setCounts matches the header counts to what was written: the one echoed
// question and an optional answer.
func (w *dnsWriter) setCounts(an uint16) {
	w.putUint16(qdCountOffset, 1)
	w.putUint16(anCountOffset, an)
	w.putUint16(nsCountOffset, 0)
	w.putUint16(arCountOffset, 0)
}

func (w *dnsWriter) writeHeader(q Query) error {
	return w.writeBytes(q.Header[:])
}

func (w *dnsWriter) writeQuestion(q Query) error {
	if err := w.writeBytes(q.QName); err != nil {
		return err
	}
	return w.writeBytes(q.Tail[:])
}

func (w *dnsWriter) writeAnswer(ip [4]byte) error {
	if err := w.writeUint16(questionPointer); err != nil {
		return err
	}
	if err := w.writeUint16(uint16(RTA)); err != nil {
		return err
	}
	if err := w.writeUint16(uint16(RCIN)); err != nil {
		return err
	}
	if err := w.writeUint32(AnswerTTL); err != nil {
		return err
	}
	if err := w.writeUint16(uint16(len(ip))); err != nil {
		return err
	}
	return w.writeBytes(ip[:])
}

func rcodeFor(kind ResponseKind) (RCode, error) {
	switch kind {
	case Answer:
		return NoError, nil
	case NameError:
		return NXDomain, nil
	case NotImplemented:
		return NotImp, nil
	default:
		return 0, fmt.Errorf("unknown response kind %d", kind)
	}
}

// SerializeResponse builds the reply to q. The header and question are echoed
// from the query; on Answer a single A record pointing back at the question
// name is appended. addr is ignored for other kinds.
func SerializeResponse(kind ResponseKind, q Query, addr netip.Addr) ([]byte, error) {
	rcode, err := rcodeFor(kind)
	if err != nil {
		return nil, err
	}
	var ip [4]byte
	if kind == Answer {
		addr = addr.Unmap()
		if !addr.Is4() {
			return nil, fmt.Errorf("%w: %v", ErrNotIPv4, addr)
		}
		ip = addr.As4()
	}

	w := dnsWriter{}
	if err := w.writeHeader(q); err != nil {
		return nil, err
	}
	w.setFlags(rcode)
	if err := w.writeQuestion(q); err != nil {
		return nil, err
	}
	if kind != Answer {
		w.setCounts(0)
		return w.bytes(), nil
	}
	if err := w.writeAnswer(ip); err != nil {
		return nil, err
	}
	w.setCounts(1)
	return w.bytes(), nil
}
