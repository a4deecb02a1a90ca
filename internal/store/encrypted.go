package store

import (
	"bytes"
	"context"
	"fmt"

	"modq/internal/modq"
)

// EncryptedStore seals every blob with an Encryptor before it reaches the
// inner store. Loading requires an unlocked DecryptionContext.
type EncryptedStore struct {
	inner     modq.Store
	encryptor modq.Encryptor
	dec       modq.DecryptionContext
}

// NewEncryptedStore wraps inner. dec may be nil for write-only use, in which
// case Load of an existing table fails.
func NewEncryptedStore(inner modq.Store, encryptor modq.Encryptor, dec modq.DecryptionContext) *EncryptedStore {
	return &EncryptedStore{inner: inner, encryptor: encryptor, dec: dec}
}

// Load decrypts the inner blob. A missing table yields nil.
func (s *EncryptedStore) Load(ctx context.Context, table string) ([]byte, error) {
	sealed, err := s.inner.Load(ctx, table)
	if err != nil || sealed == nil {
		return nil, err
	}
	if s.dec == nil {
		return nil, fmt.Errorf("table %s is encrypted and no decryption key is unlocked", table)
	}

	var plain bytes.Buffer
	if err := s.dec.Decrypt(bytes.NewReader(sealed), &plain); err != nil {
		return nil, fmt.Errorf("decrypting table %s: %w", table, err)
	}
	return plain.Bytes(), nil
}

// Save encrypts data and hands it to the inner store.
func (s *EncryptedStore) Save(ctx context.Context, table string, data []byte) error {
	var sealed bytes.Buffer
	if err := s.encryptor.Encrypt(bytes.NewReader(data), &sealed); err != nil {
		return fmt.Errorf("encrypting table %s: %w", table, err)
	}
	return s.inner.Save(ctx, table, sealed.Bytes())
}

// Close closes the inner store.
func (s *EncryptedStore) Close() error { return s.inner.Close() }

// Compile-time check that EncryptedStore implements modq.Store interface
var _ modq.Store = (*EncryptedStore)(nil)
