package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "humanizer")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "humanizer")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }
func guestPath() string { return filepath.Join(cfgDir(), "guest_id") }

func saveToken(tok string, exp time.Time) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

// loadToken returns "" without error when no valid session is stored.
func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", nil
	}
	return tf.AccessToken, nil
}

func clearToken() error {
	err := os.Remove(tokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func saveGuestID(id string) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	return os.WriteFile(guestPath(), []byte(strings.TrimSpace(id)), 0o600)
}

func loadGuestID() string {
	b, err := os.ReadFile(guestPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func clearGuestID() error {
	err := os.Remove(guestPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
