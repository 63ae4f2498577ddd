package signer

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

var (
	ErrNotControlled = errors.New("address is not controlled by this signer")
	ErrDuplicateKey  = errors.New("address is already controlled by this signer")
)

// Signer produces signatures for accounts whose keys it holds. Key material never
// leaves the implementation.
type Signer interface {
	Accounts() []common.Address
	Controls(addr common.Address) bool
	// SignTransaction signs tx for chainID with the key of from and returns the
	// canonical binary encoding of the signed transaction.
	SignTransaction(ctx context.Context, from common.Address, tx *types.Transaction, chainID *big.Int) ([]byte, error)
}

// KeySigner holds decrypted private keys in memory.
type KeySigner struct {
	mu   sync.RWMutex
	keys map[common.Address]*ecdsa.PrivateKey
}

func NewKeySigner() *KeySigner {
	return &KeySigner{keys: make(map[common.Address]*ecdsa.PrivateKey)}
}

// Add registers key and returns the address it controls.
func (s *KeySigner) Add(key *ecdsa.PrivateKey) (common.Address, error) {
	addr := crypto.PubkeyToAddress(key.PublicKey)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[addr]; ok {
		return addr, errors.Wrap(ErrDuplicateKey, addr.Hex())
	}
	s.keys[addr] = key

	return addr, nil
}

// Accounts returns the controlled addresses in a stable order.
func (s *KeySigner) Accounts() []common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]common.Address, 0, len(s.keys))
	for addr := range s.keys {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })

	return out
}

func (s *KeySigner) Controls(addr common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.keys[addr]
	return ok
}

func (s *KeySigner) SignTransaction(ctx context.Context, from common.Address, tx *types.Transaction, chainID *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	key, ok := s.keys[from]
	s.mu.RUnlock()

	if !ok {
		return nil, errors.Wrap(ErrNotControlled, from.Hex())
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal transaction")
	}

	return raw, nil
}
