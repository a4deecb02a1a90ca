package testutil

import (
	"modq/internal/encryption"
	"modq/internal/modq"
)

// TestPassphrase is the passphrase NewTestEncryptor is set up with.
const TestPassphrase = "correct horse"

// NewTestEncryptor returns a deterministic encryptor set up with
// TestPassphrase, and the decryption context it unlocks to.
func NewTestEncryptor() (modq.Encryptor, modq.DecryptionContext) {
	enc := encryption.NewTestEncryptor()
	if err := enc.Setup(TestPassphrase); err != nil {
		panic(err)
	}
	dec, err := enc.Unlock(TestPassphrase)
	if err != nil {
		panic(err)
	}
	return enc, dec
}
