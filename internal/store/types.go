package store

import (
	"context"
	"time"
)

// BuildWriter defines persistence for corpus builds and variant artifacts.
type BuildWriter interface {
	SaveBuild(ctx context.Context, build *BuildRecord) error
	SaveVariant(ctx context.Context, v *VariantRecord) error
}

// BuildReader defines read access to build history.
type BuildReader interface {
	GetBuild(ctx context.Context, id string) (*BuildRecord, error)
	ListBuilds(ctx context.Context, filter BuildFilter) ([]*BuildRecord, error)
	GetVariants(ctx context.Context, buildID string) ([]*VariantRecord, error)
}

// Store defines persistence for corpus build history.
type Store interface {
	BuildWriter
	BuildReader
	Close() error
}

// BuildRecord stores one pipeline run.
type BuildRecord struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Corpus       string
	Seed         int64
	TrainRatio   float64
	TotalSources int
	Skipped      []string // JSON serialized
	TrainSize    int
	TestSize     int
	Config       map[string]any // Serialized run parameters
}

// VariantRecord stores one variant artifact produced by a build.
type VariantRecord struct {
	ID         string
	BuildID    string
	Variant    string
	TrainSize  int
	TestSize   int
	OutputPath string
	Published  bool
	CreatedAt  time.Time
}

// BuildFilter filters build listings.
type BuildFilter struct {
	Corpus string
	Since  time.Time
	Until  time.Time
	Limit  int
}
