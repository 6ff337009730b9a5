package pipeline

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/bilgisen/newsbot/internal/models"
)

// Collector yields unseen candidates and claims them in the ledger.
type Collector interface {
	Collect(ctx context.Context) ([]models.Candidate, error)
	Claim(ctx context.Context, c models.Candidate) error
}

type Rewriter interface {
	Rewrite(ctx context.Context, title, description string) (string, error)
}

type Illustrator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

type Submitter interface {
	Submit(ctx context.Context, c models.Candidate, e models.Enriched) (string, error)
}

// Runner is one pass of the pipeline.
type Runner interface {
	RunOnce(ctx context.Context) (Stats, error)
}
