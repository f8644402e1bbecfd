package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	r := require.New(t)

	cfg := &Config{}
	err := NewConfigFromString(`
servers-file = "Login.json"
tables-file = "Tables.txt"
state-file = "SQL.state"

[sink]
host = "10.0.0.9"
`, cfg)
	r.NoError(err)
	r.NoError(cfg.ValidateAndSetDefault())

	r.Equal(DefaultSyslogPort, cfg.Sink.Port)
	r.Equal("udp", cfg.Sink.Protocol)
	r.Equal("10.0.0.9:514", cfg.Sink.Addr())
	r.Equal(3, cfg.Sink.ProbeAttempts)
	r.Equal(5*time.Second, cfg.Sink.ProbeTimeoutDuration)
	r.Equal(30*time.Second, cfg.Fetch.QueryTimeoutDuration)
	r.Equal(10*time.Second, cfg.Fetch.DialTimeoutDuration)
	r.Equal(time.Duration(0), cfg.IntervalDuration)
}

func TestConfigValidate(t *testing.T) {
	r := require.New(t)

	t.Run("missing servers file", func(tt *testing.T) {
		cfg := &Config{}
		err := NewConfigFromString(`
tables-file = "Tables.txt"
state-file = "SQL.state"

[sink]
host = "10.0.0.9"
`, cfg)
		r.NoError(err)
		r.Error(cfg.ValidateAndSetDefault())
	})

	t.Run("missing sink host", func(tt *testing.T) {
		cfg := &Config{}
		err := NewConfigFromString(`
servers-file = "Login.json"
tables-file = "Tables.txt"
state-file = "SQL.state"
`, cfg)
		r.NoError(err)
		r.Error(cfg.ValidateAndSetDefault())
	})

	t.Run("bad protocol", func(tt *testing.T) {
		cfg := &Config{}
		err := NewConfigFromString(`
servers-file = "Login.json"
tables-file = "Tables.txt"
state-file = "SQL.state"

[sink]
host = "10.0.0.9"
protocol = "sctp"
`, cfg)
		r.NoError(err)
		r.Error(cfg.ValidateAndSetDefault())
	})

	t.Run("interval", func(tt *testing.T) {
		cfg := &Config{}
		err := NewConfigFromString(`
servers-file = "Login.json"
tables-file = "Tables.txt"
state-file = "SQL.state"
interval = "5m"

[sink]
host = "10.0.0.9"
`, cfg)
		r.NoError(err)
		r.NoError(cfg.ValidateAndSetDefault())
		r.Equal(5*time.Minute, cfg.IntervalDuration)
	})
}

func TestParseCmd(t *testing.T) {
	r := require.New(t)

	cfg := NewConfig()
	err := cfg.ParseCmd([]string{"-config", "sqlship.toml", "-interval", "1m", "-clear-state"})
	r.NoError(err)
	r.Equal("sqlship.toml", cfg.ConfigFile)
	r.Equal("1m", cfg.Interval)
	r.True(cfg.ClearState)

	cfg = NewConfig()
	err = cfg.ParseCmd([]string{"positional"})
	r.Error(err)
}
