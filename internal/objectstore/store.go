package objectstore

import "context"

// Store uploads load-test reports to an object storage backend.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// NullStore discards uploads.
type NullStore struct{}

func (NullStore) Put(_ context.Context, _ string, _ []byte, _ string) error { return nil }

// Config describes an S3-compatible endpoint. An empty Endpoint disables
// uploads.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// New returns a MinIO store for cfg, or a NullStore when no endpoint is set.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Endpoint == "" {
		return NullStore{}, nil
	}
	return NewMinIOStore(ctx, cfg)
}
