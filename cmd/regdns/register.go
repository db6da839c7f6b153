package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

func newRegisterCommand() *cobra.Command {
	var api string
	cmd := &cobra.Command{
		Use:   "register NAME",
		Short: "register NAME for this host's address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return registerName(cmd.Context(), http.DefaultClient, cmd.OutOrStdout(), api, args[0])
		},
	}
	cmd.Flags().StringVar(&api, "api", "http://127.0.0.1:8080", "base URL of the registration API")
	return cmd
}

func registerName(ctx context.Context, client *http.Client, out io.Writer, api, name string) error {
	form := url.Values{"domain": {name}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(api, "/")+"/register", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registration rejected (%s): %s", resp.Status, strings.TrimSpace(string(body)))
	}
	fmt.Fprintln(out, strings.TrimSpace(string(body)))
	return nil
}
