package imagestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FSStore serves images from a local directory tree laid out as
// <root>/<tenant-id>/<file>. Object-storage deployments swap in their own
// Store; the pipeline only sees the interface.
type FSStore struct {
	root   string
	logger *slog.Logger
}

func NewFSStore(root string, logger *slog.Logger) *FSStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSStore{root: root, logger: logger}
}

func (s *FSStore) Fetch(_ context.Context, tenantID uuid.UUID, key string) ([]byte, error) {
	if err := CheckTenantKey(tenantID, key); err != nil {
		return nil, err
	}

	path := filepath.Join(s.root, filepath.FromSlash(key))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", key, err)
	}

	s.logger.Debug("imagestore.fetched", "tenant_id", tenantID, "key", key, "bytes", len(data))
	return data, nil
}

// ChecksumHex returns the hex SHA-256 of the image bytes, for comparison
// against the uploader's declared checksum.
func ChecksumHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
