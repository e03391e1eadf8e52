package checkpoint

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/umputun/profscout/pkg/config"
	"github.com/umputun/profscout/pkg/domain"
)

// Stores contains the snapshots of both stages sharing one backend kind
type Stores struct {
	Profiles *Store[domain.ExtractionRecord]
	Scores   *Store[domain.ScoreRecord]
	closer   io.Closer
}

// Open makes stores for the configured driver
func Open(ctx context.Context, cfg config.CheckpointConfig) (*Stores, error) {
	switch cfg.Driver {
	case "", "file":
		return &Stores{
			Profiles: NewStore[domain.ExtractionRecord](&FileBackend{Path: filepath.Join(cfg.Dir, cfg.Profiles)}),
			Scores:   NewStore[domain.ScoreRecord](&FileBackend{Path: filepath.Join(cfg.Dir, cfg.Scores)}),
		}, nil
	case "sqlite":
		db, err := OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite checkpoints: %w", err)
		}
		return &Stores{
			Profiles: NewStore[domain.ExtractionRecord](db.Backend(cfg.Profiles)),
			Scores:   NewStore[domain.ScoreRecord](db.Backend(cfg.Scores)),
			closer:   db,
		}, nil
	case "s3":
		s3, err := NewS3(S3Options{
			Endpoint: cfg.S3Endpoint, Region: cfg.S3Region, Bucket: cfg.S3Bucket, Prefix: cfg.S3Prefix,
			AccessKey: cfg.S3Key, SecretKey: cfg.S3Secret, Secure: cfg.S3Secure,
		})
		if err != nil {
			return nil, fmt.Errorf("open s3 checkpoints: %w", err)
		}
		return &Stores{
			Profiles: NewStore[domain.ExtractionRecord](s3.Backend(cfg.Profiles)),
			Scores:   NewStore[domain.ScoreRecord](s3.Backend(cfg.Scores)),
		}, nil
	default:
		return nil, fmt.Errorf("unknown checkpoint driver %q", cfg.Driver)
	}
}

// Close releases the underlying connection if the driver has one
func (s *Stores) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
