// Package artifacts defines the artifact store adapter used for export
// payloads. Artifacts are opaque byte blobs addressed by a locator the store
// returns on write.
package artifacts

import "context"

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks Store

// Error Contract:
// - Read and Delete return sentinel.ErrNotFound when the locator is unknown
// - Infrastructure failures are returned wrapped with context
type Store interface {
	Write(ctx context.Context, data []byte) (locator string, err error)
	Read(ctx context.Context, locator string) ([]byte, error)
	Delete(ctx context.Context, locator string) error
}
