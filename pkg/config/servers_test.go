package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeServersFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Login.json")
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadServerConfigs(t *testing.T) {
	r := require.New(t)

	path := writeServersFile(t, `[
		{"server_ip": "10.0.0.1", "user": "svc"},
		{"server_ip": "10.0.0.2", "user": "report", "driver": "mysql", "password-env": "SQLSHIP_PW_2"}
	]`)

	servers, err := LoadServerConfigs(path)
	r.NoError(err)
	r.Len(servers, 2)

	r.Equal("sqlserver", servers[0].Driver)
	r.Equal(1433, servers[0].Port)
	r.Equal("mysql", servers[1].Driver)
	r.Equal(3306, servers[1].Port)
	r.Equal("SQLSHIP_PW_2", servers[1].PasswordEnv)

	idx := ServerIndex(servers)
	r.Equal("svc", idx["10.0.0.1"].User)
}

func TestLoadServerConfigsErrors(t *testing.T) {
	r := require.New(t)

	t.Run("missing file", func(tt *testing.T) {
		_, err := LoadServerConfigs(filepath.Join(tt.TempDir(), "nope.json"))
		r.Error(err)
	})

	t.Run("malformed json", func(tt *testing.T) {
		path := writeServersFile(t, `{"server_ip": "10.0.0.1"`)
		_, err := LoadServerConfigs(path)
		r.Error(err)
	})

	t.Run("duplicate server_ip", func(tt *testing.T) {
		path := writeServersFile(t, `[
			{"server_ip": "10.0.0.1", "user": "a"},
			{"server_ip": "10.0.0.1", "user": "b"}
		]`)
		_, err := LoadServerConfigs(path)
		r.Error(err)
	})

	t.Run("missing user", func(tt *testing.T) {
		path := writeServersFile(t, `[{"server_ip": "10.0.0.1"}]`)
		_, err := LoadServerConfigs(path)
		r.Error(err)
	})

	t.Run("unknown driver", func(tt *testing.T) {
		path := writeServersFile(t, `[{"server_ip": "10.0.0.1", "user": "svc", "driver": "oracle"}]`)
		_, err := LoadServerConfigs(path)
		r.Error(err)
	})
}
