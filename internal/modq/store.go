package modq

import (
	"context"
	"io"
)

// Table names persisted by the Checkpointer.
const (
	TableUsers        = "users"
	TablePending      = "pending"
	TableApproved     = "approved"
	TableRejected     = "rejected"
	TableSecretAdmins = "secret_admins"
)

// Tables lists every persisted table in flush order.
var Tables = []string{TableUsers, TablePending, TableApproved, TableRejected, TableSecretAdmins}

// Store is the durable key-value capability the working set is flushed to.
// A table is stored as one opaque blob and always overwritten as a whole.
type Store interface {
	// Load returns the stored blob for table, or nil if the table was never saved.
	Load(ctx context.Context, table string) ([]byte, error)

	// Save overwrites the blob for table.
	Save(ctx context.Context, table string, data []byte) error

	// Close releases any connection held by the store.
	Close() error
}

// Encryptor seals table blobs at rest.
// Encryption uses the public key only. Decryption requires a passphrase to
// unlock the private key, producing a DecryptionContext for the process lifetime.
type Encryptor interface {
	// Setup performs one-time key generation. Called during `modq config init`.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key using the passphrase.
	// Returns an error if the passphrase is incorrect.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist at configured paths.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory. It is never written to disk.
type DecryptionContext interface {
	// Decrypt decrypts data read from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error
}
