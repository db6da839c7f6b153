package parser

import "errors"

type RecordType uint16

const (
	RTA    RecordType = 1
	RTAAAA RecordType = 28
)

type RecordClass uint16

const (
	RCIN RecordClass = 1
)

type RCode uint8

const (
	NoError RCode = iota
	FormErr
	ServFail
	NXDomain
	NotImp
	Refused
)

type Opcode uint8

const (
	OpQuery Opcode = iota
	OpIQuery
	OpStatus
)

const (
	QRMask     = 0x8000
	OpcodeMask = 0x7800
	AAMask     = 0x0400
	TCMask     = 0x0200
	RDMask     = 0x0100
	RAMask     = 0x0080
	ZMask      = 0x0070
	RCodeMask  = 0x000F
)

const PointerMask = 0xC0

const (
	HeaderSize    = 12
	MaxPacketSize = 512
	MaxLabelSize  = 63

	// Offsets into the header.
	flagsOffset   = 2
	qdCountOffset = 4
	anCountOffset = 6
	nsCountOffset = 8
	arCountOffset = 10
)

// AnswerTTL is the TTL, in seconds, of every answer record.
const AnswerTTL uint32 = 30

// questionPointer refers back to the question name, which always starts
// right after the header.
const questionPointer = uint16(PointerMask)<<8 | HeaderSize

var (
	ErrMalformedPacket = errors.New("malformed packet")
	ErrPacketTooLarge  = errors.New("packet exceeds 512 bytes")
	ErrNotIPv4         = errors.New("answer address is not IPv4")
)

// ResponseKind selects the shape of a reply.
type ResponseKind int

const (
	Answer ResponseKind = iota
	NameError
	NotImplemented
)

func (k ResponseKind) String() string {
	switch k {
	case Answer:
		return "answer"
	case NameError:
		return "nxdomain"
	case NotImplemented:
		return "notimp"
	default:
		return "unknown"
	}
}

// Query is a parsed single-question DNS query. The raw byte fields are kept
// so that a reply can echo them without re-encoding.
type Query struct {
	ID     uint16
	Flags  uint16
	Header [HeaderSize]byte

	Labels []string
	// QName holds the encoded question name, terminator included.
	QName []byte
	// Tail holds the raw QTYPE and QCLASS bytes.
	Tail   [4]byte
	QType  RecordType
	QClass RecordClass

	BaseName string
}

func (q *Query) Opcode() Opcode {
	return Opcode((q.Flags & OpcodeMask) >> 11)
}

type dnsReader struct {
	data []byte
	pos  int
}

// dnsWriter writes into a fixed 512 byte buffer; every write fails once it
// would run past the end.
type dnsWriter struct {
	data [MaxPacketSize]byte
	pos  int
}
