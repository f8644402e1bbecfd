package creds

import (
	"fmt"
	"os"

	"github.com/juju/errors"
	"golang.org/x/term"

	"github.com/sqlship/sqlship/pkg/config"
)

// Provider supplies the password for a server at run time.
// Passwords never touch the config or state files.
type Provider interface {
	Password(server config.ServerConfig) (string, error)
}

// NewDefault resolves from the environment when the server entry names a
// password-env variable and falls back to an interactive prompt otherwise.
func NewDefault() Provider {
	return &chain{
		env:    &envProvider{},
		prompt: NewTerminalPrompter(),
	}
}

type chain struct {
	env    Provider
	prompt Provider
}

func (c *chain) Password(server config.ServerConfig) (string, error) {
	if server.PasswordEnv != "" {
		return c.env.Password(server)
	}
	return c.prompt.Password(server)
}

type envProvider struct{}

func (p *envProvider) Password(server config.ServerConfig) (string, error) {
	v, ok := os.LookupEnv(server.PasswordEnv)
	if !ok {
		return "", errors.Errorf("environment variable %s for server %s is not set", server.PasswordEnv, server.ServerIP)
	}
	return v, nil
}

// TerminalPrompter asks on the controlling terminal, once per server per run.
type TerminalPrompter struct {
	cache map[string]string
}

func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{cache: make(map[string]string)}
}

func (p *TerminalPrompter) Password(server config.ServerConfig) (string, error) {
	if pw, ok := p.cache[server.ServerIP]; ok {
		return pw, nil
	}

	fmt.Printf("Enter password for %s@%s: ", server.User, server.ServerIP)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", errors.Annotatef(err, "fail to read password for %s@%s", server.User, server.ServerIP)
	}

	p.cache[server.ServerIP] = string(raw)
	return string(raw), nil
}

// Static returns fixed passwords keyed by server_ip. Used by tests.
type Static map[string]string

func (s Static) Password(server config.ServerConfig) (string, error) {
	pw, ok := s[server.ServerIP]
	if !ok {
		return "", errors.Errorf("no password for server %s", server.ServerIP)
	}
	return pw, nil
}
