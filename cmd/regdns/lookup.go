package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/netip"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/dns/dnsmessage"

	"regdns/internal/server"
)

func newLookupCommand() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "lookup NAME",
		Short: "send an A query for NAME and print the answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return lookup(ctx, cmd.OutOrStdout(), addr, args[0])
		},
	}
	cmd.Flags().StringVar(&addr, "server", "127.0.0.1:53", "DNS server to query")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "time to wait for the reply")
	return cmd
}

func generateID() uint16 {
	return uint16(rand.Intn(1 << 16))
}

func createQuery(name string) ([]byte, uint16, error) {
	if name == "" || name[len(name)-1] != '.' {
		name += "."
	}
	qname, err := dnsmessage.NewName(name)
	if err != nil {
		return nil, 0, err
	}
	id := generateID()
	m := dnsmessage.Message{
		Header: dnsmessage.Header{ID: id},
		Questions: []dnsmessage.Question{{
			Name:  qname,
			Type:  dnsmessage.TypeA,
			Class: dnsmessage.ClassINET,
		}},
	}
	b, err := m.Pack()
	return b, id, err
}

func lookup(ctx context.Context, out io.Writer, addr, name string) error {
	q, id, err := createQuery(name)
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}
	resp, err := server.Exchange(ctx, q, addr)
	if err != nil {
		return err
	}

	var m dnsmessage.Message
	if err := m.Unpack(resp); err != nil {
		return fmt.Errorf("parsing reply: %w", err)
	}
	if m.Header.ID != id {
		return fmt.Errorf("reply id %d does not match query id %d", m.Header.ID, id)
	}
	if m.Header.RCode != dnsmessage.RCodeSuccess {
		fmt.Fprintf(out, "%s: %s\n", name, m.Header.RCode)
		return nil
	}
	for _, a := range m.Answers {
		if r, ok := a.Body.(*dnsmessage.AResource); ok {
			fmt.Fprintf(out, "%s\t%d\tIN\tA\t%s\n", a.Header.Name, a.Header.TTL, netip.AddrFrom4(r.A))
		}
	}
	return nil
}
