package parser

import (
	"encoding/binary"
	"fmt"
	"strings"
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedPacket, fmt.Sprintf(format, args...))
}

func (r *dnsReader) readUint16() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, malformed("out of bounds while reading uint16 at %d", r.pos)
	}
	val := binary.BigEndian.Uint16(r.data[r.pos : r.pos+2])
	r.pos += 2
	return val, nil
}

func (r *dnsReader) readBytes(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, malformed("out of bounds while reading %d bytes at %d", n, r.pos)
	}
	val := r.data[r.pos : r.pos+n]
	r.pos += n
	return val, nil
}

func (r *dnsReader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, malformed("name not terminated")
	}
	val := r.data[r.pos]
	r.pos++
	return val, nil
}

// readName reads uncompressed labels up to the zero terminator. Queries only
// carry one question at a fixed offset so pointers are never followed.
func (r *dnsReader) readName() ([]string, []byte, error) {
	start := r.pos
	labels := make([]string, 0, 4)
	for {
		lead, err := r.readByte()
		if err != nil {
			return nil, nil, err
		}
		if lead == 0 {
			break
		}
		if lead > MaxLabelSize {
			return nil, nil, malformed("label length %d at %d", lead, r.pos-1)
		}
		label, err := r.readBytes(int(lead))
		if err != nil {
			return nil, nil, malformed("label overruns packet at %d", r.pos-1)
		}
		labels = append(labels, string(label))
	}
	return labels, r.data[start:r.pos], nil
}

func (r *dnsReader) parseHeader(q *Query) error {
	if len(r.data) < HeaderSize {
		return malformed("header is %d bytes", len(r.data))
	}
	copy(q.Header[:], r.data[:HeaderSize])
	var err error
	if q.ID, err = r.readUint16(); err != nil {
		return err
	}
	if q.Flags, err = r.readUint16(); err != nil {
		return err
	}
	r.pos = HeaderSize
	return nil
}

func (r *dnsReader) parseQuestion(q *Query) error {
	var err error
	if q.Labels, q.QName, err = r.readName(); err != nil {
		return err
	}
	tail, err := r.readBytes(len(q.Tail))
	if err != nil {
		return malformed("question type and class missing")
	}
	copy(q.Tail[:], tail)
	q.QType = RecordType(binary.BigEndian.Uint16(tail[0:2]))
	q.QClass = RecordClass(binary.BigEndian.Uint16(tail[2:4]))
	if len(q.Labels) > 0 {
		q.BaseName = strings.ToLower(q.Labels[0])
	}
	return nil
}

// ParseQuery parses the header and first question of a query. Any failure
// wraps ErrMalformedPacket.
func ParseQuery(data []byte) (Query, error) {
	q := Query{}
	r := dnsReader{data: data}
	if err := r.parseHeader(&q); err != nil {
		return Query{}, err
	}
	if err := r.parseQuestion(&q); err != nil {
		return Query{}, err
	}
	return q, nil
}

// Name returns the question name in presentation form.
func (q *Query) Name() string {
	if len(q.Labels) == 0 {
		return "."
	}
	return strings.Join(q.Labels, ".") + "."
}

func (q *Query) GetQR() bool {
	return q.Flags&QRMask != 0
}

func (q *Query) GetRD() bool {
	return q.Flags&RDMask != 0
}
