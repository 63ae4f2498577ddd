package signer

import (
	"crypto/ecdsa"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

// BasePath is the BIP44 account path for Ethereum; the address index is appended.
const BasePath = "m/44'/60'/0'/0"

var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// DeriveKeys derives count private keys from mnemonic on BasePath/0 .. BasePath/count-1.
func DeriveKeys(mnemonic string, passphrase string, count int) ([]*ecdsa.PrivateKey, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	seed := bip39.NewSeed(mnemonic, passphrase)
	defer clear(seed)

	masterKey, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create master key")
	}

	keys := make([]*ecdsa.PrivateKey, 0, count)
	for i := range count {
		path := fmt.Sprintf("%s/%d", BasePath, i)

		derived, err := deriveKeyFromPath(masterKey, path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive key at %s", path)
		}

		key, err := crypto.ToECDSA(derived.Key)
		clear(derived.Key)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to convert key at %s", path)
		}

		keys = append(keys, key)
	}

	return keys, nil
}

func deriveKeyFromPath(masterKey *bip32.Key, path string) (*bip32.Key, error) {
	indices, err := parseBIP44Path(path)
	if err != nil {
		return nil, err
	}

	key := masterKey
	for _, index := range indices {
		key, err = key.NewChildKey(index)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive child key at index %d", index)
		}
	}

	return key, nil
}

// parseBIP44Path turns "m/44'/60'/0'/0/0" into child indices, hardened segments
// carrying bip32.FirstHardenedChild.
func parseBIP44Path(path string) ([]uint32, error) {
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] != "m" {
		return nil, errors.Errorf("invalid BIP44 path: %s", path)
	}

	indices := make([]uint32, 0, len(parts)-1)
	for _, part := range parts[1:] {
		hardened := strings.HasSuffix(part, "'")
		part = strings.TrimSuffix(part, "'")

		parsed, err := strconv.ParseUint(part, 10, 31)
		if err != nil {
			return nil, errors.Errorf("invalid path segment: %s", part)
		}

		index := uint32(parsed)
		if hardened {
			index += bip32.FirstHardenedChild
		}

		indices = append(indices, index)
	}

	return indices, nil
}
