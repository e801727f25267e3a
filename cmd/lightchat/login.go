package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/seggan/lightchat/internal/config"
	"github.com/seggan/lightchat/internal/credstore"
	"github.com/seggan/lightchat/sechat"
)

// newClient wires a sechat client from the config file and the
// credential store: a persisted cookie blob is imported before login,
// and a fresh credential exchange writes the updated blob back.
func newClient(cfg *config.Config, store *credstore.Store) (*sechat.Client, error) {
	sdk := sechat.DefaultConfig()
	sdk.SiteURL = cfg.SiteURL
	sdk.ChatURL = cfg.ChatURL
	sdk.HistoryDepth = cfg.HistoryDepth
	sdk.ReconnectBase = cfg.ReconnectBase
	sdk.ReconnectMax = cfg.ReconnectMax
	sdk.SaveCookies = func(blob []byte) error {
		return store.Save(credstore.CookieKey, blob)
	}

	client, err := sechat.NewClient(sdk)
	if err != nil {
		return nil, err
	}
	client.SetLogger(sechat.NewSlogLogger(newLogger()))

	blob, err := store.Load(credstore.CookieKey)
	if err == nil {
		if err := client.Session().ImportCookies(blob); err != nil {
			// A corrupt blob just means a fresh login.
			_ = store.Delete(credstore.CookieKey)
		}
	} else if !errors.Is(err, credstore.ErrNotFound) {
		return nil, err
	}
	return client, nil
}

// openStore opens the credential store, creating its directory.
func openStore(cfg *config.Config) (*credstore.Store, error) {
	if dir := filepath.Dir(cfg.CredentialsPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	return credstore.Open(cfg.CredentialsPath)
}

// login completes the handshake, prompting for whatever the persisted
// session cannot cover.
func login(ctx context.Context, client *sechat.Client, cfg *config.Config) error {
	email := cfg.Email
	password := ""
	if client.Session().NeedsCredentials() {
		var err error
		if email == "" {
			email, err = promptLine("email: ")
			if err != nil {
				return err
			}
		}
		password, err = promptPassword("password: ")
		if err != nil {
			return err
		}
	}
	return client.Login(ctx, email, password)
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		defer fmt.Fprintln(os.Stderr)
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return "", err
		}
		return string(password), nil
	}
	return promptLine("")
}
