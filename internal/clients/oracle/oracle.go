package oracle

import (
	"context"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/yungbote/nearby-backend/internal/pkg/errors"
)

const (
	MaxScore      = 100
	MaxSnippetLen = 280
)

// Side is one participant as the oracle sees it: a display name and the
// normalised descriptor, nothing else.
type Side struct {
	UserID      uuid.UUID
	DisplayName string
	Descriptor  string
}

type CompareRequest struct {
	A Side
	B Side
}

// Direction is what one user is told about the other.
type Direction struct {
	Score       int    `json:"score"`
	Snippet     string `json:"snippet"`
	Description string `json:"description"`
}

// CompareResult carries both asymmetric directions from one call.
type CompareResult struct {
	ForA Direction
	ForB Direction
}

// Oracle scores a pair of descriptors and embeds text.
type Oracle interface {
	Compare(ctx context.Context, req CompareRequest) (*CompareResult, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// compareOutput is the wire shape the model is constrained to.
type compareOutput struct {
	ScoreForA     *int   `json:"scoreForA"`
	ScoreForB     *int   `json:"scoreForB"`
	ShortTextForA string `json:"shortTextForA"`
	ShortTextForB string `json:"shortTextForB"`
	LongTextForA  string `json:"longTextForA"`
	LongTextForB  string `json:"longTextForB"`
}

var compareSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"scoreForA", "scoreForB", "shortTextForA", "shortTextForB", "longTextForA", "longTextForB"},
	"properties": map[string]any{
		"scoreForA":     map[string]any{"type": "integer", "minimum": 0, "maximum": MaxScore},
		"scoreForB":     map[string]any{"type": "integer", "minimum": 0, "maximum": MaxScore},
		"shortTextForA": map[string]any{"type": "string"},
		"shortTextForB": map[string]any{"type": "string"},
		"longTextForA":  map[string]any{"type": "string"},
		"longTextForB":  map[string]any{"type": "string"},
	},
}

// validate turns raw model output into a result or a malformed-output error.
func (o compareOutput) validate() (*CompareResult, error) {
	if o.ScoreForA == nil || o.ScoreForB == nil {
		return nil, &apperrors.OracleError{Op: "compare", Err: errMalformed("missing score")}
	}
	a, b := *o.ScoreForA, *o.ScoreForB
	if a < 0 || a > MaxScore || b < 0 || b > MaxScore {
		return nil, &apperrors.OracleError{Op: "compare", Err: errMalformed("score out of range")}
	}
	return &CompareResult{
		ForA: Direction{Score: a, Snippet: clip(o.ShortTextForA, MaxSnippetLen), Description: strings.TrimSpace(o.LongTextForA)},
		ForB: Direction{Score: b, Snippet: clip(o.ShortTextForB, MaxSnippetLen), Description: strings.TrimSpace(o.LongTextForB)},
	}, nil
}

type malformedError string

func (e malformedError) Error() string { return "malformed output: " + string(e) }

func errMalformed(reason string) error { return malformedError(reason) }

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
