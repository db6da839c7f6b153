// Package register is the HTTP side of the responder: clients register a
// name for their own address and list what is registered.
package register

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"regdns/internal/registry"
)

var ErrInvalidLabel = errors.New("name must be a single DNS label")

// Store is the write side of the name table.
type Store interface {
	Upsert(name string, addr netip.Addr) error
	Enumerate() []registry.Record
}

// AddressSource maps the address a request came from to the address that
// should be registered.
type AddressSource interface {
	Effective(remote netip.Addr) (netip.Addr, error)
}

type Handler struct {
	store  Store
	addrs  AddressSource
	logger *zap.Logger
	router *mux.Router
	root   http.Handler
}

func NewHandler(store Store, addrs AddressSource, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		store:  store,
		addrs:  addrs,
		logger: logger,
		router: mux.NewRouter(),
	}
	h.router.HandleFunc("/register", h.usage).Methods(http.MethodGet)
	h.router.HandleFunc("/register", h.register).Methods(http.MethodPost)
	h.router.HandleFunc("/getip", h.getIP).Methods(http.MethodGet)
	h.router.HandleFunc("/list", h.list).Methods(http.MethodGet)
	h.router.HandleFunc("/api/records", h.records).Methods(http.MethodGet)
	h.root = h.cors(h.router)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

// cors wraps the whole router so 404 and 405 replies carry the headers too.
// Preflight requests are answered here for any path.
func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ValidateLabel lower-cases name and checks it is one DNS label: 1 to 63
// letters, digits or hyphens, not starting or ending with a hyphen.
func ValidateLabel(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) == 0 || len(name) > 63 {
		return "", fmt.Errorf("%w: length %d", ErrInvalidLabel, len(name))
	}
	if name[0] == '-' || name[len(name)-1] == '-' {
		return "", fmt.Errorf("%w: %q", ErrInvalidLabel, name)
	}
	for _, c := range name {
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-') {
			return "", fmt.Errorf("%w: %q", ErrInvalidLabel, name)
		}
	}
	return name, nil
}

func (h *Handler) clientAddress(r *http.Request) (netip.Addr, error) {
	ap, err := netip.ParseAddrPort(r.RemoteAddr)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("remote address %q: %w", r.RemoteAddr, err)
	}
	return h.addrs.Effective(ap.Addr())
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (h *Handler) usage(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "POST /register with form field domain=<name> to map <name> to your address.\n")
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid form")
		return
	}
	name, err := ValidateLabel(r.PostForm.Get("domain"))
	if err != nil {
		h.logger.Debug("Rejected registration", zap.Error(err))
		writeText(w, http.StatusBadRequest, "Invalid domain or couldn't detect IP")
		return
	}
	addr, err := h.clientAddress(r)
	if err != nil {
		h.logger.Warn("Address detection failed", zap.String("Remote", r.RemoteAddr), zap.Error(err))
		writeText(w, http.StatusBadRequest, "Invalid domain or couldn't detect IP")
		return
	}
	if err := h.store.Upsert(name, addr); err != nil {
		h.logger.Debug("Rejected registration", zap.String("Name", name), zap.Error(err))
		writeText(w, http.StatusBadRequest, "Invalid domain or couldn't detect IP")
		return
	}
	h.logger.Info("Registered", zap.String("Name", name), zap.Stringer("Address", addr))
	writeText(w, http.StatusOK, fmt.Sprintf("Registered: %s -> %s\nOthers can now access your site using just '%s'", name, addr, name))
}

func (h *Handler) getIP(w http.ResponseWriter, r *http.Request) {
	addr, err := h.clientAddress(r)
	if err != nil {
		h.logger.Warn("Address detection failed", zap.String("Remote", r.RemoteAddr), zap.Error(err))
		writeText(w, http.StatusInternalServerError, "couldn't detect IP")
		return
	}
	writeText(w, http.StatusOK, addr.String())
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var sb strings.Builder
	sb.WriteString("Registered Domains:\n")
	for _, rec := range h.store.Enumerate() {
		fmt.Fprintf(&sb, "%s -> %s\n", rec.Name, rec.Address)
	}
	writeText(w, http.StatusOK, sb.String())
}

func (h *Handler) records(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.store.Enumerate()); err != nil {
		h.logger.Warn("Encoding records failed", zap.Error(err))
	}
}
