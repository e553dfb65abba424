// Package resolver finds a full-text document for a PubMed record by trying a
// fixed list of open sources in order and keeping the first hit.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-search/internal/domain"
)

// Step is one lookup in the waterfall. Run returns NoResolution for a miss;
// an error is also treated as a miss.
type Step struct {
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context) (domain.ResolutionResult, error)
}

// FirstSuccess runs steps in order and returns the first found result, or
// NoResolution when every step misses. Each step runs under its own timeout
// and a panicking step counts as a miss.
func FirstSuccess(ctx context.Context, logger zerolog.Logger, steps ...Step) domain.ResolutionResult {
	for _, step := range steps {
		if ctx.Err() != nil {
			break
		}
		res, err := runStep(ctx, step)
		if err != nil {
			logger.Debug().Err(err).Str("step", step.Name).Msg("resolver step failed")
			continue
		}
		if res.Found() {
			return res
		}
	}
	return domain.NoResolution()
}

func runStep(ctx context.Context, step Step) (res domain.ResolutionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = domain.NoResolution()
			err = fmt.Errorf("step %s panicked: %v", step.Name, r)
		}
	}()

	if step.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}
	return step.Run(ctx)
}
