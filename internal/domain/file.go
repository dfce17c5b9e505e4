package domain

import "context"

// Upload is an image received from a client before it is stored.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// FileStore abstracts raw file byte storage.
// The default implementation stores BLOBs in the document database; the
// filesystem and S3 implementations live under internal/filestore.
type FileStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
