package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"golang.org/x/term"

	"github.com/sydlexius/soundcheck/internal/config"
	"github.com/sydlexius/soundcheck/internal/encryption"
	"github.com/sydlexius/soundcheck/internal/provider"
)

// resetCredentials wipes all stored provider credentials from the database.
// This is an offline operation intended for recovery when the encryption key
// is lost or credentials need to be re-entered.
func resetCredentials() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()
	db, err := openDatabase(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	// The encryptor is unused for deletes; any key will do.
	enc, _, err := encryption.NewEncryptor("")
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if err := provider.NewSettingsService(db, enc).DeleteAllCredentials(ctx); err != nil {
		return err
	}

	fmt.Println("All stored provider credentials have been cleared.")
	fmt.Println("Keys from the config file or environment still apply.")
	return nil
}

// setKey stores one credential field for a provider, reading the secret from
// the terminal without echo (or from stdin when it is not a terminal).
func setKey(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: soundcheck set-key <provider> <field>")
	}
	name, field, err := parseKeyTarget(args[0], args[1])
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	fmt.Fprintf(os.Stderr, "%s %s: ", name.DisplayName(), field)
	secret, err := readSecret(os.Stdin)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("reading secret: %w", err)
	}
	if secret == "" {
		return fmt.Errorf("%s must not be empty", field)
	}

	ctx := context.Background()
	db, err := openDatabase(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	encKey, err := resolveEncryptionKey(cfg, logger)
	if err != nil {
		return fmt.Errorf("resolving encryption key: %w", err)
	}
	enc, _, err := encryption.NewEncryptor(encKey)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if err := provider.NewSettingsService(db, enc).SetCredentials(ctx, name, map[string]string{field: secret}); err != nil {
		return err
	}

	fmt.Printf("Stored %s for %s.\n", field, name.DisplayName())
	return nil
}

func parseKeyTarget(rawName, field string) (provider.ProviderName, string, error) {
	name, ok := provider.ParseProviderName(strings.ToLower(rawName))
	if !ok {
		return "", "", fmt.Errorf("unknown provider %q", rawName)
	}
	fields := provider.CredentialFields(name)
	if !slices.Contains(fields, field) {
		return "", "", fmt.Errorf("%s has no field %q (want one of %s)", name, field, strings.Join(fields, ", "))
	}
	return name, field, nil
}

// readSecret reads a single secret line. Terminal input is not echoed.
func readSecret(in *os.File) (string, error) {
	if term.IsTerminal(int(in.Fd())) { //nolint:gosec // G115: fd fits in int
		b, err := term.ReadPassword(int(in.Fd())) //nolint:gosec // G115: fd fits in int
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return readLine(in)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
