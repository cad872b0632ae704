package llm

import (
	"context"
	"log/slog"
)

// FallbackModel is the conservative, widely-available chat model used
// when the preferred streaming path fails.
const FallbackModel = "gpt-4o"

// FallbackStream prefers the primary streaming path and degrades to the
// secondary one on any primary failure, whether at dispatch or
// mid-stream. At most one fallback dispatch happens per request; if the
// fallback also fails, its error propagates to the caller.
type FallbackStream struct {
	primary  StreamClient
	fallback StreamClient
	log      *slog.Logger
}

func NewFallbackStream(primary, fallback StreamClient, log *slog.Logger) *FallbackStream {
	return &FallbackStream{primary: primary, fallback: fallback, log: log}
}

// GenerateStream never fails at dispatch; all errors surface through the
// returned stream's Err so the caller has a single completion point.
// Tokens already delivered before a mid-stream failure are not retracted.
func (f *FallbackStream) GenerateStream(ctx context.Context, req GenerateRequest) (*TokenStream, error) {
	out := make(chan string)
	ts, fail := newTokenStream(out)

	go func() {
		defer close(out)

		err := pipeStream(ctx, f.primary, req, out)
		if err == nil {
			return
		}

		f.log.Error("primary stream failed, dispatching fallback",
			"model", req.Model, "fallbackModel", FallbackModel, "error", err)

		freq := req
		freq.Model = FallbackModel
		freq.Thinking = false
		if ferr := pipeStream(ctx, f.fallback, freq, out); ferr != nil {
			fail(ferr)
		}
	}()

	return ts, nil
}

// pipeStream forwards one client's tokens onto out and reports the
// stream's terminal error.
func pipeStream(ctx context.Context, client StreamClient, req GenerateRequest, out chan<- string) error {
	inner, err := client.GenerateStream(ctx, req)
	if err != nil {
		return err
	}
	for tok := range inner.Tokens {
		select {
		case out <- tok:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return inner.Err()
}
