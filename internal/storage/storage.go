// Package storage defines the object-storage collaborator boundary. The
// core treats keys as opaque strings and never inspects their format.
package storage

import "context"

// UploadTarget is a presigned upload slot issued to a client.
type UploadTarget struct {
	UploadURL string `json:"uploadUrl"`
	FileKey   string `json:"fileKey"`
}

type Storage interface {
	IssueUploadTarget(ctx context.Context, fileName, contentType string) (*UploadTarget, error)
	IssueDownloadURL(ctx context.Context, key string) (string, error)

	// Delete removes one object. Deleting an already-deleted key is not an
	// error; retention and erasure sweeps rely on that.
	Delete(ctx context.Context, key string) error
}
