package resolver

import (
	"net/netip"

	"go.uber.org/zap"

	"regdns/internal/parser"
)

// NameTable is the read side of the registry.
type NameTable interface {
	Lookup(name string) (netip.Addr, bool)
}

type Resolver struct {
	logger *zap.Logger
}

// Resolve decides how to answer q. Only the base name (first label) is
// matched, so "mysite.example.com" resolves to the registration for "mysite".
func (r *Resolver) Resolve(q parser.Query, table NameTable) (parser.ResponseKind, netip.Addr) {
	if op := q.Opcode(); op != parser.OpQuery {
		r.logger.Debug("Unsupported opcode", zap.Uint8("Opcode", uint8(op)))
		return parser.NotImplemented, netip.Addr{}
	}
	if q.BaseName == "" {
		return parser.NameError, netip.Addr{}
	}
	addr, found := table.Lookup(q.BaseName)
	if !found {
		r.logger.Debug("No registration", zap.String("Name", q.Name()), zap.String("Base", q.BaseName))
		return parser.NameError, netip.Addr{}
	}
	r.logger.Debug("Registration hit",
		zap.String("Name", q.Name()),
		zap.String("Base", q.BaseName),
		zap.Stringer("Address", addr))
	return parser.Answer, addr
}

func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		logger: logger,
	}
}
