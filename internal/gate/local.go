package gate

import (
	"context"

	"github.com/moplabs/mopd/internal/kernel"
)

// Local consults the embedded kernel service in-process. It is the default
// mode: one binary serves both the pipeline and the oracle it answers to.
type Local struct {
	service *kernel.Service
}

var _ Gate = (*Local)(nil)

// NewLocal wraps the embedded oracle.
func NewLocal(service *kernel.Service) *Local {
	return &Local{service: service}
}

// Name implements Gate.
func (g *Local) Name() string { return "local" }

// Check implements Gate. The in-process consult still honors ctx so a run
// timeout fires at the same points it would with a remote kernel.
func (g *Local) Check(ctx context.Context, q Query) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return VerdictContinue, err
	}

	resp := g.service.Decide(kernel.DecideRequest{
		SessionID: q.SessionID,
		Agent:     q.Agent,
		Stage:     q.Stage,
		Problem:   q.Problem,
	})
	return parseStatus(resp.Status)
}
