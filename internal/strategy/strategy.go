// Package strategy holds the pluggable execution policies that decide which
// sources to consult, in what order or concurrency, and when enough evidence
// exists to stop.
package strategy

import (
	"context"

	"github.com/askroute/backend/internal/models"
)

// Strategy executes one routing policy for one query. Individual source
// failures are swallowed into Run.Failures; the returned error is reserved
// for configuration and programming problems (an unknown source name, a nil
// registry), which are bugs rather than routing outcomes.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, q models.Query) (*Run, error)
}

// Run is everything a strategy produced: the results that will feed the
// aggregator plus the failures that only feed logs and metrics.
type Run struct {
	Strategy string
	Results  []models.SourceResult
	Failures []Failure
}

type Failure struct {
	Source string
	Err    error
}

func (r *Run) fail(source string, err error) {
	r.Failures = append(r.Failures, Failure{Source: source, Err: err})
}
