package signer

import (
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// NewKeyFile generates a key, encrypts it with password using the standard scrypt
// parameters and writes it as a keystore v3 file to path.
func NewKeyFile(path string, password string, lightScrypt bool) (common.Address, error) {
	if _, err := os.Stat(path); err == nil {
		return common.Address{}, errors.Errorf("%s already exists", path)
	}

	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to generate key")
	}

	key := &keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		PrivateKey: privateKey,
	}

	scryptN, scryptP := keystore.StandardScryptN, keystore.StandardScryptP
	if lightScrypt {
		scryptN, scryptP = keystore.LightScryptN, keystore.LightScryptP
	}

	content, err := keystore.EncryptKey(key, password, scryptN, scryptP)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to encrypt key")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return common.Address{}, errors.Wrap(err, "failed to create key directory")
	}

	if err := os.WriteFile(path, content, 0o600); err != nil {
		return common.Address{}, errors.Wrapf(err, "failed to write %s", path)
	}

	return key.Address, nil
}
