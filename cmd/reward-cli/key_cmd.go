package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"dgenerate/cmd/internal/passphrase"
	"dgenerate/crypto"
)

func newPassSource() *passphrase.Source {
	return passphrase.NewSource(keystorePassEnv, "keystore")
}

func loadKey(path string, pass *passphrase.Source) (*crypto.PrivateKey, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("keystore path required")
	}
	secret, err := pass.Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, secret)
	if err != nil {
		return nil, fmt.Errorf("load keystore %s: %w", path, err)
	}
	return key, nil
}

// loadOrCreateKey opens the keystore at path, generating a fresh key there
// when the file does not exist yet. New mints, token accounts and ledgers are
// keypair identities that must sign their own creation.
func loadOrCreateKey(path string, pass *passphrase.Source) (*crypto.PrivateKey, bool, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false, errors.New("keystore path required")
	}
	if _, err := os.Stat(path); err == nil {
		key, err := loadKey(path, pass)
		return key, false, err
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}
	secret, err := pass.Get()
	if err != nil {
		return nil, false, err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, false, err
	}
	if err := crypto.SaveToKeystore(path, key, secret); err != nil {
		return nil, false, err
	}
	return key, true, nil
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var out string
	fs.StringVar(&out, "out", "", "path of the keystore file to create")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(out) == "" {
		fmt.Fprintln(stderr, "Error: --out is required")
		return 1
	}
	if _, err := os.Stat(out); err == nil {
		fmt.Fprintf(stderr, "Error: %s already exists\n", out)
		return 1
	}
	key, created, err := loadOrCreateKey(out, newPassSource())
	if err != nil || !created {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	id := key.Identity()
	fmt.Fprintf(stdout, "identity: %s\nhex:      %s\nkeystore: %s\n", id, id.Hex(), out)
	return 0
}

func runAddress(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var keyPath string
	fs.StringVar(&keyPath, "key", "", "keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadKey(keyPath, newPassSource())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	id := key.Identity()
	fmt.Fprintf(stdout, "%s\n%s\n", id, id.Hex())
	return 0
}
