// Package oracletest provides an in-process oracle for tests.
package oracletest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yungbote/nearby-backend/internal/clients/oracle"
	apperrors "github.com/yungbote/nearby-backend/internal/pkg/errors"
)

type Fake struct {
	compareCalls atomic.Int64
	embedCalls   atomic.Int64

	mu        sync.Mutex
	CompareFn func(req oracle.CompareRequest) (*oracle.CompareResult, error)
	EmbedErr  error
	Delay     time.Duration
	requests  []oracle.CompareRequest
}

func New() *Fake { return &Fake{} }

func (f *Fake) Compare(ctx context.Context, req oracle.CompareRequest) (*oracle.CompareResult, error) {
	f.compareCalls.Add(1)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn := f.CompareFn
	delay := f.Delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, &apperrors.OracleError{Op: "compare", Err: ctx.Err()}
		case <-time.After(delay):
		}
	}
	if fn != nil {
		return fn(req)
	}
	return &oracle.CompareResult{
		ForA: oracle.Direction{Score: 72, Snippet: "about " + req.B.DisplayName, Description: "long about " + req.B.DisplayName},
		ForB: oracle.Direction{Score: 64, Snippet: "about " + req.A.DisplayName, Description: "long about " + req.A.DisplayName},
	}, nil
}

func (f *Fake) Embed(ctx context.Context, text string) ([]float32, error) {
	f.embedCalls.Add(1)
	f.mu.Lock()
	err := f.EmbedErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *Fake) SetCompare(fn func(req oracle.CompareRequest) (*oracle.CompareResult, error)) {
	f.mu.Lock()
	f.CompareFn = fn
	f.mu.Unlock()
}

func (f *Fake) CompareCalls() int64 { return f.compareCalls.Load() }

func (f *Fake) EmbedCalls() int64 { return f.embedCalls.Load() }

func (f *Fake) Requests() []oracle.CompareRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]oracle.CompareRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// Failing returns a compare func that always reports an oracle failure.
func Failing(status int) func(oracle.CompareRequest) (*oracle.CompareResult, error) {
	return func(oracle.CompareRequest) (*oracle.CompareResult, error) {
		return nil, &apperrors.OracleError{Op: "compare", Status: status, Err: context.DeadlineExceeded}
	}
}
