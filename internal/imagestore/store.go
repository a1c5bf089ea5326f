// Package imagestore reads source receipt images for the pipeline. Keys are
// tenant-prefixed ("<tenant-id>/<file>"); every implementation must refuse a
// key that does not belong to the requesting tenant.
package imagestore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
)

// Store fetches the raw bytes of a stored image.
type Store interface {
	Fetch(ctx context.Context, tenantID uuid.UUID, key string) ([]byte, error)
}

// CheckTenantKey verifies that an object key is scoped to the tenant.
// Last line of defense against a mis-routed job.
func CheckTenantKey(tenantID uuid.UUID, key string) error {
	prefix := tenantID.String() + "/"
	if !strings.HasPrefix(key, prefix) {
		return fmt.Errorf("key %q not under tenant %s: %w", key, tenantID, common.ErrTenantIsolation)
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("key %q contains a path traversal: %w", key, common.ErrTenantIsolation)
	}
	return nil
}
