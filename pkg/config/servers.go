/*
 *
 * // Copyright 2019 , Beijing Mobike Technology Co., Ltd.
 * //
 * // Licensed under the Apache License, Version 2.0 (the "License");
 * // you may not use this file except in compliance with the License.
 * // You may obtain a copy of the License at
 * //
 * //     http://www.apache.org/licenses/LICENSE-2.0
 * //
 * // Unless required by applicable law or agreed to in writing, software
 * // distributed under the License is distributed on an "AS IS" BASIS,
 * // See the License for the specific language governing permissions and
 * // limitations under the License.
 */

package config

import (
	"io/ioutil"

	jsoniter "github.com/json-iterator/go"
	"github.com/juju/errors"
)

var myJson = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// ServerConfig is one database server entry of the servers file.
// Passwords are never stored here; the credential provider supplies them at run time.
type ServerConfig struct {
	ServerIP string `json:"server_ip" toml:"server-ip"`
	User     string `json:"user" toml:"user"`
	Driver   string `json:"driver" toml:"driver"`
	Port     int    `json:"port" toml:"port"`
	// PasswordEnv names an environment variable holding the password,
	// for unattended runs. Empty means prompt.
	PasswordEnv string `json:"password-env" toml:"password-env"`
}

func (sc *ServerConfig) ValidateAndSetDefault() error {
	if sc.ServerIP == "" {
		return errors.New("server_ip must not be empty")
	}
	if sc.User == "" {
		return errors.Errorf("user must not be empty for server %s", sc.ServerIP)
	}
	switch sc.Driver {
	case "":
		sc.Driver = "sqlserver"
	case "sqlserver", "mysql":
	default:
		return errors.Errorf("unsupported driver %s for server %s", sc.Driver, sc.ServerIP)
	}
	if sc.Port == 0 {
		if sc.Driver == "mysql" {
			sc.Port = 3306
		} else {
			sc.Port = 1433
		}
	}
	return nil
}

// LoadServerConfigs parses the JSON server list. Duplicate server_ip entries
// are rejected since server_ip is the join key for table bindings.
func LoadServerConfigs(path string) ([]ServerConfig, error) {
	content, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "fail to read servers file %s", path)
	}

	var servers []ServerConfig
	if err := myJson.Unmarshal(content, &servers); err != nil {
		return nil, errors.Annotatef(err, "malformed servers file %s", path)
	}

	seen := make(map[string]struct{}, len(servers))
	for i := range servers {
		if err := servers[i].ValidateAndSetDefault(); err != nil {
			return nil, errors.Trace(err)
		}
		if _, ok := seen[servers[i].ServerIP]; ok {
			return nil, errors.Errorf("duplicate server_ip %s in %s", servers[i].ServerIP, path)
		}
		seen[servers[i].ServerIP] = struct{}{}
	}
	return servers, nil
}

// ServerIndex keys the server list by server_ip.
func ServerIndex(servers []ServerConfig) map[string]ServerConfig {
	idx := make(map[string]ServerConfig, len(servers))
	for _, s := range servers {
		idx[s.ServerIP] = s
	}
	return idx
}
