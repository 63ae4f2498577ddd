package signer

import (
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/go-signer/internal/config"
	"github/chapool/go-signer/internal/util"
)

var ErrNoKeys = errors.New("no signing keys configured")

// PasswordFunc asks for a password interactively.
type PasswordFunc func(prompt string) (string, error)

// Load builds a KeySigner from every backend configured in cfg. Accounts of several
// backends are merged. A missing password file falls back to prompt.
func Load(cfg config.Signer, prompt PasswordFunc) (*KeySigner, error) {
	s := NewKeySigner()

	if cfg.KeystoreFile != "" {
		password, err := password(cfg.PasswordFile, "Keystore password: ", prompt)
		if err != nil {
			return nil, err
		}

		if err := s.loadKeystore(cfg.KeystoreFile, password); err != nil {
			return nil, err
		}
	}

	if cfg.PrivateKeyFile != "" {
		if err := s.loadPrivateKey(cfg.PrivateKeyFile); err != nil {
			return nil, err
		}
	}

	if cfg.MnemonicFile != "" {
		if err := s.loadMnemonic(cfg.MnemonicFile, cfg.HDAccounts); err != nil {
			return nil, err
		}
	}

	accounts := s.Accounts()
	if len(accounts) == 0 {
		return nil, ErrNoKeys
	}

	for _, addr := range accounts {
		log.Info().Str("address", addr.Hex()).Msg("Signing account unlocked")
	}

	return s, nil
}

func password(path string, label string, prompt PasswordFunc) (string, error) {
	if path != "" {
		return util.ReadSecretFile(path)
	}

	if prompt == nil {
		return "", errors.New("no password file configured")
	}

	return prompt(label)
}

func (s *KeySigner) loadKeystore(path string, password string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read keystore file %s", path)
	}

	key, err := keystore.DecryptKey(content, password)
	if err != nil {
		return errors.Wrapf(err, "failed to decrypt keystore file %s", path)
	}

	_, err = s.Add(key.PrivateKey)
	return err
}

func (s *KeySigner) loadPrivateKey(path string) error {
	hex, err := util.ReadSecretFile(path)
	if err != nil {
		return err
	}

	key, err := crypto.HexToECDSA(trimHexPrefix(hex))
	if err != nil {
		return errors.Wrapf(err, "invalid private key in %s", path)
	}

	_, err = s.Add(key)
	return err
}

func (s *KeySigner) loadMnemonic(path string, count int) error {
	mnemonic, err := util.ReadSecretFile(path)
	if err != nil {
		return err
	}

	keys, err := DeriveKeys(mnemonic, "", count)
	if err != nil {
		return errors.Wrapf(err, "failed to derive keys from %s", path)
	}

	for _, key := range keys {
		if _, err := s.Add(key); err != nil {
			return err
		}
	}

	return nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
