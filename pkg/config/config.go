package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/juju/errors"

	"github.com/sqlship/sqlship/pkg/logutil"
)

const (
	// DefaultSyslogPort is the standard syslog port.
	DefaultSyslogPort = 514

	defaultProbeTimeout  = "5s"
	defaultProbeAttempts = 3
	defaultQueryTimeout  = "30s"
	defaultDialTimeout   = "10s"
)

// SinkConfig describes the syslog collector endpoint.
type SinkConfig struct {
	Host     string `toml:"host" json:"host"`
	Port     int    `toml:"port" json:"port"`
	Protocol string `toml:"protocol" json:"protocol"`

	// ProbeTimeout bounds the TCP reachability check done before any job runs.
	// The value must be a decimal number with a unit suffix ("ms", "s", "m", "h"), such as "30s", "0.5m" or "1m30s".
	ProbeTimeout  string `toml:"probe-timeout" json:"probe-timeout"`
	ProbeAttempts int    `toml:"probe-attempts" json:"probe-attempts"`

	ProbeTimeoutDuration time.Duration `toml:"-" json:"-"`
}

func (sc *SinkConfig) ValidateAndSetDefault() error {
	if sc.Host == "" {
		return errors.New("sink host must not be empty")
	}
	if sc.Port == 0 {
		sc.Port = DefaultSyslogPort
	}
	switch sc.Protocol {
	case "":
		sc.Protocol = "udp"
	case "udp", "tcp":
	default:
		return errors.Errorf("unsupported sink protocol %s", sc.Protocol)
	}
	if sc.ProbeTimeout == "" {
		sc.ProbeTimeout = defaultProbeTimeout
	}
	d, err := time.ParseDuration(sc.ProbeTimeout)
	if err != nil {
		return errors.Annotatef(err, "invalid probe-timeout %s", sc.ProbeTimeout)
	}
	sc.ProbeTimeoutDuration = d
	if sc.ProbeAttempts <= 0 {
		sc.ProbeAttempts = defaultProbeAttempts
	}
	return nil
}

// Addr returns the host:port string of the sink.
func (sc *SinkConfig) Addr() string {
	return fmt.Sprintf("%s:%d", sc.Host, sc.Port)
}

// FetchConfig holds per-operation DB timeouts.
type FetchConfig struct {
	// QueryTimeout bounds one full table scan.
	// The value must be a decimal number with a unit suffix ("ms", "s", "m", "h"), such as "30s", "0.5m" or "1m30s".
	QueryTimeout string `toml:"query-timeout" json:"query-timeout"`
	// DialTimeout bounds connection establishment.
	DialTimeout string `toml:"dial-timeout" json:"dial-timeout"`

	QueryTimeoutDuration time.Duration `toml:"-" json:"-"`
	DialTimeoutDuration  time.Duration `toml:"-" json:"-"`
}

func (fc *FetchConfig) ValidateAndSetDefault() error {
	if fc.QueryTimeout == "" {
		fc.QueryTimeout = defaultQueryTimeout
	}
	if fc.DialTimeout == "" {
		fc.DialTimeout = defaultDialTimeout
	}
	var err error
	if fc.QueryTimeoutDuration, err = time.ParseDuration(fc.QueryTimeout); err != nil {
		return errors.Annotatef(err, "invalid query-timeout %s", fc.QueryTimeout)
	}
	if fc.DialTimeoutDuration, err = time.ParseDuration(fc.DialTimeout); err != nil {
		return errors.Annotatef(err, "invalid dial-timeout %s", fc.DialTimeout)
	}
	return nil
}

// Config is the configuration.
type Config struct {
	*flag.FlagSet `json:"-" toml:"-"`

	// ServersFile is the JSON list of database servers and users.
	ServersFile string `toml:"servers-file" json:"servers-file"`
	// TablesFile is the line-oriented server:database:table binding file.
	TablesFile string `toml:"tables-file" json:"tables-file"`
	// StateFile persists the per-table shipped-row offsets.
	StateFile string `toml:"state-file" json:"state-file"`

	// Interval re-runs the whole pass on a fixed period; empty or "0s" means one shot.
	Interval         string        `toml:"interval" json:"interval"`
	IntervalDuration time.Duration `toml:"-" json:"-"`

	HTTPAddr string `toml:"http-addr" json:"http-addr"`

	Sink  SinkConfig  `toml:"sink" json:"sink"`
	Fetch FetchConfig `toml:"fetch" json:"fetch"`

	// Log related configuration.
	Log logutil.LogConfig `toml:"log" json:"log"`

	ConfigFile string `toml:"-" json:"-"`
	ClearState bool   `toml:"-" json:"-"`
	Version    bool   `toml:"-" json:"-"`
}

// NewConfig creates a new config.
func NewConfig() *Config {
	cfg := &Config{}
	cfg.FlagSet = flag.NewFlagSet("sqlship", flag.ContinueOnError)
	fs := cfg.FlagSet

	fs.BoolVar(&cfg.Version, "V", false, "print version and exit")
	fs.StringVar(&cfg.ConfigFile, "config", "", "path to config file")
	fs.StringVar(&cfg.Log.Level, "L", "info", "log level: debug, info, warn, error, fatal (default 'info')")
	fs.StringVar(&cfg.Log.File.Filename, "log-file", "", "log file path")
	fs.StringVar(&cfg.Log.Format, "log-format", "console", "log format")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", "", "address of the metrics endpoint, disabled when empty")
	fs.StringVar(&cfg.Interval, "interval", "", "run the shipping pass on this period, one shot when empty")
	fs.BoolVar(&cfg.ClearState, "clear-state", false, "delete the state file and exit")
	return cfg
}

// ParseCmd parses flag definitions from argument list
func (c *Config) ParseCmd(arguments []string) error {
	err := c.FlagSet.Parse(arguments)
	if err != nil {
		return errors.Trace(err)
	}

	if len(c.FlagSet.Args()) != 0 {
		return errors.Errorf("'%s' is an invalid flag", c.FlagSet.Arg(0))
	}

	return nil
}

// ConfigFromFile loads config from file.
func (c *Config) ConfigFromFile(path string) error {
	if !strings.HasSuffix(path, ".toml") {
		return errors.Errorf("unrecognized path %s", path)
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(c.ValidateAndSetDefault())
}

// NewConfigFromString decodes a TOML document into c. Used by tests.
func NewConfigFromString(configString string, c interface{}) error {
	_, err := toml.Decode(configString, c)
	return err
}

func (c *Config) ValidateAndSetDefault() error {
	if c.ServersFile == "" {
		return errors.New("servers-file must not be empty")
	}
	if c.TablesFile == "" {
		return errors.New("tables-file must not be empty")
	}
	if c.StateFile == "" {
		return errors.New("state-file must not be empty")
	}
	if c.Interval != "" {
		d, err := time.ParseDuration(c.Interval)
		if err != nil {
			return errors.Annotatef(err, "invalid interval %s", c.Interval)
		}
		c.IntervalDuration = d
	}
	if err := c.Sink.ValidateAndSetDefault(); err != nil {
		return errors.Trace(err)
	}
	if err := c.Fetch.ValidateAndSetDefault(); err != nil {
		return errors.Trace(err)
	}
	return nil
}
