package keymanager

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kenneth/pq-encryption-service/internal/crypto"
	"github.com/kenneth/pq-encryption-service/internal/provider"
)

const (
	publicKeyFile   = "public-key.bin"
	secretKeyFile   = "secret-key.bin"
	keyMetadataFile = "key-metadata.json"
	historyFile     = "rotation-history.json"
	backupDirName   = "backup"

	// Secret key material is owner-only; metadata and the public key are
	// world-readable.
	secretFileMode = os.FileMode(0o600)
	publicFileMode = os.FileMode(0o644)
	dirMode        = os.FileMode(0o755)
)

// Storage persists key material, metadata and rotation history under one
// directory. It is a pure I/O collaborator: one manager instance per
// directory, no caching, no locking.
type Storage struct {
	dir string
}

// ValidateStoragePath rejects empty paths, traversal sequences and paths
// escaping the allowed root.
func ValidateStoragePath(path, allowedRoot string) error {
	const op = "keymanager.ValidateStoragePath"

	if strings.TrimSpace(path) == "" {
		return crypto.NewError(crypto.KindConfig, op, "storage path is empty")
	}
	for _, segment := range strings.Split(filepath.ToSlash(path), "/") {
		if segment == ".." {
			return crypto.Errorf(crypto.KindConfig, op, "storage path must not contain traversal sequences: %s", path)
		}
	}

	if allowedRoot == "" {
		return nil
	}

	absRoot, err := filepath.Abs(allowedRoot)
	if err != nil {
		return crypto.WrapError(crypto.KindConfig, op, "invalid allowed root", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return crypto.WrapError(crypto.KindConfig, op, "invalid storage path", err)
	}
	if absPath != absRoot && !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return crypto.Errorf(crypto.KindConfig, op, "storage path %s escapes allowed root %s", path, allowedRoot)
	}
	return nil
}

// NewStorage creates a storage handle rooted at dir, confined to
// allowedRoot when non-empty.
func NewStorage(dir, allowedRoot string) (*Storage, error) {
	if err := ValidateStoragePath(dir, allowedRoot); err != nil {
		return nil, err
	}
	return &Storage{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *Storage) Dir() string {
	return s.dir
}

// EnsureDir creates the storage directory and its backup subdirectory.
func (s *Storage) EnsureDir() error {
	if err := os.MkdirAll(filepath.Join(s.dir, backupDirName), dirMode); err != nil {
		return crypto.WrapError(crypto.KindKeyManager, "Storage.EnsureDir", "failed to create storage directory", err)
	}
	return nil
}

// SaveKeyPair persists raw key bytes and metadata. The secret key file is
// written with owner-only permissions.
func (s *Storage) SaveKeyPair(kp *provider.KeyPair) error {
	const op = "Storage.SaveKeyPair"

	if kp == nil {
		return crypto.NewError(crypto.KindKeyManager, op, "key pair is nil")
	}

	if err := os.WriteFile(filepath.Join(s.dir, publicKeyFile), kp.PublicKey, publicFileMode); err != nil {
		return crypto.WrapError(crypto.KindKeyManager, op, "failed to write public key", err)
	}

	if err := os.WriteFile(filepath.Join(s.dir, secretKeyFile), kp.SecretKey, secretFileMode); err != nil {
		return crypto.WrapError(crypto.KindKeyManager, op, "failed to write secret key", err)
	}
	// Best effort on platforms where WriteFile did not apply the mode.
	_ = os.Chmod(filepath.Join(s.dir, secretKeyFile), secretFileMode)

	metadata, err := json.MarshalIndent(kp.Metadata, "", "  ")
	if err != nil {
		return crypto.WrapError(crypto.KindKeyManager, op, "failed to marshal key metadata", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, keyMetadataFile), metadata, publicFileMode); err != nil {
		return crypto.WrapError(crypto.KindKeyManager, op, "failed to write key metadata", err)
	}

	return nil
}

// LoadKeyPair reads persisted key material. A missing key file is reported
// via os.IsNotExist on the wrapped cause.
func (s *Storage) LoadKeyPair() (*provider.KeyPair, error) {
	const op = "Storage.LoadKeyPair"

	publicKey, err := os.ReadFile(filepath.Join(s.dir, publicKeyFile))
	if err != nil {
		return nil, crypto.WrapError(crypto.KindKeyManager, op, "failed to read public key", err)
	}

	secretKey, err := os.ReadFile(filepath.Join(s.dir, secretKeyFile))
	if err != nil {
		return nil, crypto.WrapError(crypto.KindKeyManager, op, "failed to read secret key", err)
	}

	metadataBytes, err := os.ReadFile(filepath.Join(s.dir, keyMetadataFile))
	if err != nil {
		return nil, crypto.WrapError(crypto.KindKeyManager, op, "failed to read key metadata", err)
	}

	var metadata provider.KeyMetadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return nil, crypto.WrapError(crypto.KindKeyManager, op, "corrupt key metadata", err)
	}

	return &provider.KeyPair{
		PublicKey: publicKey,
		SecretKey: secretKey,
		Metadata:  metadata,
	}, nil
}

// KeysExist reports whether both key files are present.
func (s *Storage) KeysExist() bool {
	if _, err := os.Stat(filepath.Join(s.dir, publicKeyFile)); err != nil {
		return false
	}
	if _, err := os.Stat(filepath.Join(s.dir, secretKeyFile)); err != nil {
		return false
	}
	return true
}

// SaveHistory persists the rotation history.
func (s *Storage) SaveHistory(h *RotationHistory) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return crypto.WrapError(crypto.KindKeyManager, "Storage.SaveHistory", "failed to marshal rotation history", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, historyFile), data, publicFileMode); err != nil {
		return crypto.WrapError(crypto.KindKeyManager, "Storage.SaveHistory", "failed to write rotation history", err)
	}
	return nil
}

// LoadHistory reads the rotation history. A missing file yields a fresh
// empty history rather than an error.
func (s *Storage) LoadHistory() (*RotationHistory, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, historyFile))
	if err != nil {
		if os.IsNotExist(err) {
			return NewRotationHistory(time.Now()), nil
		}
		return nil, crypto.WrapError(crypto.KindKeyManager, "Storage.LoadHistory", "failed to read rotation history", err)
	}

	var h RotationHistory
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, crypto.WrapError(crypto.KindKeyManager, "Storage.LoadHistory", "corrupt rotation history", err)
	}
	return &h, nil
}

// BackupKeyPair writes timestamped copies of superseded key material into
// the backup directory.
func (s *Storage) BackupKeyPair(kp *provider.KeyPair, now time.Time) error {
	const op = "Storage.BackupKeyPair"

	if kp == nil {
		return crypto.NewError(crypto.KindKeyManager, op, "key pair is nil")
	}

	stamp := now.UTC().Format("20060102T150405Z")
	prefix := fmt.Sprintf("v%d-%s", kp.Metadata.Version, stamp)
	backupDir := filepath.Join(s.dir, backupDirName)

	if err := os.WriteFile(filepath.Join(backupDir, prefix+"-"+publicKeyFile), kp.PublicKey, publicFileMode); err != nil {
		return crypto.WrapError(crypto.KindKeyManager, op, "failed to back up public key", err)
	}
	if err := os.WriteFile(filepath.Join(backupDir, prefix+"-"+secretKeyFile), kp.SecretKey, secretFileMode); err != nil {
		return crypto.WrapError(crypto.KindKeyManager, op, "failed to back up secret key", err)
	}

	metadata, err := json.MarshalIndent(kp.Metadata, "", "  ")
	if err != nil {
		return crypto.WrapError(crypto.KindKeyManager, op, "failed to marshal backup metadata", err)
	}
	if err := os.WriteFile(filepath.Join(backupDir, prefix+"-"+keyMetadataFile), metadata, publicFileMode); err != nil {
		return crypto.WrapError(crypto.KindKeyManager, op, "failed to back up key metadata", err)
	}

	return nil
}

// PruneBackups keeps the newest keep backup generations and removes the
// rest. A non-positive keep disables pruning.
func (s *Storage) PruneBackups(keep int) error {
	if keep <= 0 {
		return nil
	}

	backupDir := filepath.Join(s.dir, backupDirName)
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return crypto.WrapError(crypto.KindKeyManager, "Storage.PruneBackups", "failed to list backups", err)
	}

	// Group files by generation prefix "vN-STAMP".
	generations := make(map[string][]string)
	for _, entry := range entries {
		name := entry.Name()
		parts := strings.SplitN(name, "-", 3)
		if len(parts) < 3 {
			continue
		}
		prefix := parts[0] + "-" + parts[1]
		generations[prefix] = append(generations[prefix], name)
	}
	if len(generations) <= keep {
		return nil
	}

	prefixes := make([]string, 0, len(generations))
	for prefix := range generations {
		prefixes = append(prefixes, prefix)
	}
	// Timestamps sort lexicographically; oldest first.
	sort.Slice(prefixes, func(i, j int) bool {
		return prefixes[i][strings.Index(prefixes[i], "-")+1:] < prefixes[j][strings.Index(prefixes[j], "-")+1:]
	})

	for _, prefix := range prefixes[:len(prefixes)-keep] {
		for _, name := range generations[prefix] {
			if err := os.Remove(filepath.Join(backupDir, name)); err != nil {
				return crypto.WrapError(crypto.KindKeyManager, "Storage.PruneBackups", "failed to remove old backup", err)
			}
		}
	}
	return nil
}
