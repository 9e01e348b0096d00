package runtime

import (
	"fmt"

	"github.com/yungbote/nearby-backend/internal/jobs/payload"
)

type PairHandler interface {
	Run(jc *Context, p payload.PairAnalysis) error
}

type EnrichmentHandler interface {
	Run(jc *Context, p payload.ProfileEnrichment) error
}

// Registry holds one handler per payload variant.
type Registry struct {
	pair       PairHandler
	enrichment EnrichmentHandler
}

func NewRegistry(pair PairHandler, enrichment EnrichmentHandler) (*Registry, error) {
	if pair == nil {
		return nil, fmt.Errorf("nil pair handler")
	}
	if enrichment == nil {
		return nil, fmt.Errorf("nil enrichment handler")
	}
	return &Registry{pair: pair, enrichment: enrichment}, nil
}

// Dispatch routes jc to the handler for its payload variant.
func (r *Registry) Dispatch(jc *Context) error {
	switch p := jc.Payload.(type) {
	case payload.PairAnalysis:
		return r.pair.Run(jc, p)
	case payload.ProfileEnrichment:
		return r.enrichment.Run(jc, p)
	default:
		return &missingHandlerError{Kind: fmt.Sprintf("%T", jc.Payload)}
	}
}

type missingHandlerError struct{ Kind string }

func (e *missingHandlerError) Error() string { return "no handler registered for payload " + e.Kind }
