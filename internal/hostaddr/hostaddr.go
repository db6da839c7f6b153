// Package hostaddr works out the address other hosts should use to reach a
// registrant that connected over loopback.
package hostaddr

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
)

const DefaultRouteAddr = "8.8.8.8:65530"

var ErrNoAddress = errors.New("no usable local address")

type Detector struct {
	// RouteAddr is dialed over UDP to pick the outbound interface. Nothing
	// is sent to it.
	RouteAddr string
}

func NewDetector(routeAddr string) *Detector {
	if routeAddr == "" {
		routeAddr = DefaultRouteAddr
	}
	return &Detector{RouteAddr: routeAddr}
}

// LocalAddress returns the local IPv4 address of the route towards RouteAddr.
func (d *Detector) LocalAddress() (netip.Addr, error) {
	conn, err := net.Dial("udp4", d.RouteAddr)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("route to %s: %w", d.RouteAddr, err)
	}
	defer conn.Close()

	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.Addr{}, ErrNoAddress
	}
	addr, ok := netip.AddrFromSlice(local.IP)
	if !ok {
		return netip.Addr{}, ErrNoAddress
	}
	addr = addr.Unmap()
	if !addr.Is4() || addr.IsUnspecified() {
		return netip.Addr{}, ErrNoAddress
	}
	return addr, nil
}

// Effective returns remote unless it is a loopback address, in which case the
// detected local address is used instead.
func (d *Detector) Effective(remote netip.Addr) (netip.Addr, error) {
	remote = remote.Unmap()
	if !remote.IsLoopback() {
		return remote, nil
	}
	return d.LocalAddress()
}
