package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
)

const envPrefix = "regdns"

// Config holds server configuration. Every field can be set from the
// environment (REGDNS_DNS_ADDR, ...) and overridden by a command line flag.
type Config struct {
	DNSAddr   string `envconfig:"DNS_ADDR" default:":53"`
	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`
	RouteAddr string `envconfig:"ROUTE_ADDR" default:"8.8.8.8:65530"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process(envPrefix, &c); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}
	return c, nil
}

// FlagSet returns flags that write into c. Defaults are the current values
// of c, so call it after Load.
func (c *Config) FlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.StringVar(&c.DNSAddr, "dns-addr", c.DNSAddr, "UDP address to answer DNS queries on")
	flags.StringVar(&c.HTTPAddr, "http-addr", c.HTTPAddr, "address of the registration API")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	flags.StringVar(&c.LogFormat, "log-format", c.LogFormat, "console or json")
	flags.StringVar(&c.RouteAddr, "route-addr", c.RouteAddr, "UDP address dialed to find the local address of loopback registrants")
	return flags
}

func (c Config) Validate() error {
	if c.DNSAddr == "" {
		return fmt.Errorf("dns address must not be empty")
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("http address must not be empty")
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}
