// Package payload defines the closed set of job inputs. Each variant knows
// its own dedup id, so scheduler, queue and worker agree on it.
package payload

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/nearby-backend/internal/domain"
	"github.com/yungbote/nearby-backend/internal/pkg/ctxutil"
)

type Kind string

const (
	KindPairAnalysis      Kind = "pair_analysis"
	KindProfileEnrichment Kind = "profile_enrichment"
)

// Payload is sealed: only the variants in this package implement it.
type Payload interface {
	Kind() Kind
	JobID() string
	Owner() uuid.UUID
	PairKey() string
	Validate() error
	sealed()
}

// PairAnalysis scores Requester and Other against each other.
type PairAnalysis struct {
	Requester uuid.UUID
	Other     uuid.UUID
}

func (PairAnalysis) Kind() Kind         { return KindPairAnalysis }
func (p PairAnalysis) JobID() string    { return domain.PairJobID(p.Requester, p.Other) }
func (p PairAnalysis) Owner() uuid.UUID { return p.Requester }
func (p PairAnalysis) PairKey() string  { return domain.PairKey(p.Requester, p.Other) }
func (PairAnalysis) sealed()            {}

func (p PairAnalysis) Validate() error {
	if p.Requester == uuid.Nil || p.Other == uuid.Nil {
		return fmt.Errorf("pair_analysis: both user ids required")
	}
	if p.Requester == p.Other {
		return fmt.Errorf("pair_analysis: cannot pair a user with itself")
	}
	return nil
}

// ProfileEnrichment rebuilds one user's descriptor, hash and embedding.
type ProfileEnrichment struct {
	UserID uuid.UUID
}

func (ProfileEnrichment) Kind() Kind         { return KindProfileEnrichment }
func (p ProfileEnrichment) JobID() string    { return domain.EnrichmentJobID(p.UserID) }
func (p ProfileEnrichment) Owner() uuid.UUID { return p.UserID }
func (ProfileEnrichment) PairKey() string    { return "" }
func (ProfileEnrichment) sealed()            {}

func (p ProfileEnrichment) Validate() error {
	if p.UserID == uuid.Nil {
		return fmt.Errorf("profile_enrichment: user id required")
	}
	return nil
}

// envelope is the stored JSON: {"kind": ..., <variant fields>, trace ids}.
type envelope struct {
	Kind      Kind      `json:"kind"`
	Requester uuid.UUID `json:"requester,omitzero"`
	Other     uuid.UUID `json:"other,omitzero"`
	UserID    uuid.UUID `json:"user_id,omitzero"`
	TraceID   string    `json:"trace_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// Encode serialises p together with any trace ids carried by td.
func Encode(p Payload, td *ctxutil.TraceData) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("nil payload")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	env := envelope{Kind: p.Kind()}
	switch v := p.(type) {
	case PairAnalysis:
		env.Requester, env.Other = v.Requester, v.Other
	case ProfileEnrichment:
		env.UserID = v.UserID
	}
	if td != nil {
		env.TraceID, env.RequestID = td.TraceID, td.RequestID
	}
	return json.Marshal(env)
}

// Decode parses a stored payload. Unknown kinds are an error.
func Decode(raw []byte) (Payload, *ctxutil.TraceData, error) {
	if len(raw) == 0 {
		return nil, nil, fmt.Errorf("empty payload")
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, fmt.Errorf("decode payload: %w", err)
	}
	var p Payload
	switch env.Kind {
	case KindPairAnalysis:
		p = PairAnalysis{Requester: env.Requester, Other: env.Other}
	case KindProfileEnrichment:
		p = ProfileEnrichment{UserID: env.UserID}
	default:
		return nil, nil, fmt.Errorf("unknown payload kind %q", env.Kind)
	}
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	var td *ctxutil.TraceData
	if env.TraceID != "" || env.RequestID != "" {
		td = &ctxutil.TraceData{TraceID: env.TraceID, RequestID: env.RequestID}
	}
	return p, td, nil
}
