// Package storage persists rendered-page snapshots so price observations
// keep an auditable copy of the page they came from. The interface hides
// whether snapshots land in GCS, on local disk, or nowhere at all.
package storage

import "context"

// Provider saves one snapshot blob under an object key.
type Provider interface {
	Save(ctx context.Context, objectName string, data []byte) error
}

// NoOpProvider discards snapshots. Used when archiving is disabled.
type NoOpProvider struct{}

// Save for NoOpProvider does nothing and always returns nil.
func (n *NoOpProvider) Save(_ context.Context, _ string, _ []byte) error {
	return nil
}
