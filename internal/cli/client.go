// Package cli holds what the storyctl command groups share: the server client
// built from the saved configuration and the session file location.
package cli

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"storyhub/internal/gateway"
)

// DefaultServerURL is used until `storyctl config set server.url` changes it
const DefaultServerURL = "http://localhost:8080"

// ErrNotLoggedIn is returned by commands that write to the server without a saved token
var ErrNotLoggedIn = errors.New("not logged in. Please run: storyctl auth login")

// ConfigDir is ~/.storyhub
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".storyhub"
	}
	return filepath.Join(home, ".storyhub")
}

// ConfigFile is the session file written by auth login
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// SaveConfig persists the current viper settings to ConfigFile
func SaveConfig() error {
	if err := os.MkdirAll(ConfigDir(), 0o700); err != nil {
		return err
	}
	return viper.WriteConfigAs(ConfigFile())
}

// NewClient returns a gateway client for the configured server. The saved token is
// attached when present.
func NewClient() *gateway.Client {
	serverURL := viper.GetString("server.url")
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	opts := []gateway.ClientOption{}
	if token := viper.GetString("user.token"); token != "" {
		opts = append(opts, gateway.WithToken(token))
	}
	return gateway.NewClient(serverURL, opts...)
}

// RequireToken fails when no session was saved
func RequireToken() error {
	if viper.GetString("user.token") == "" {
		return ErrNotLoggedIn
	}
	return nil
}
