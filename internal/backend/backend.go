// Package backend adapts pluggable language-model providers to the single
// request/response contract the engine depends on.
package backend

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"golang.org/x/time/rate"
)

// Response is the uniform result of one model round-trip.
type Response struct {
	Success      bool
	Message      string
	ErrorMessage string
}

// Backend sends a single prompt and waits for the answer.
type Backend interface {
	Send(ctx context.Context, prompt string) Response
}

// Func adapts a function to Backend.
type Func func(ctx context.Context, prompt string) Response

func (f Func) Send(ctx context.Context, prompt string) Response {
	return f(ctx, prompt)
}

// LangChain sends prompts through any langchaingo model.
type LangChain struct {
	Model   llms.Model
	Options []llms.CallOption
}

func NewLangChain(model llms.Model, opts ...llms.CallOption) *LangChain {
	return &LangChain{Model: model, Options: opts}
}

func (b *LangChain) Send(ctx context.Context, prompt string) Response {
	out, err := llms.GenerateFromSinglePrompt(ctx, b.Model, prompt, b.Options...)
	if err != nil {
		return Response{ErrorMessage: err.Error()}
	}
	return Response{Success: true, Message: strings.TrimSpace(out)}
}

// Paced limits how often the wrapped backend is called.
type Paced struct {
	Backend Backend
	Limiter *rate.Limiter
}

// NewPaced allows perMinute requests per minute with a burst of one.
// perMinute <= 0 disables pacing.
func NewPaced(b Backend, perMinute int) Backend {
	if perMinute <= 0 {
		return b
	}
	return &Paced{
		Backend: b,
		Limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1),
	}
}

func (p *Paced) Send(ctx context.Context, prompt string) Response {
	if err := p.Limiter.Wait(ctx); err != nil {
		return Response{ErrorMessage: "request not sent: " + err.Error()}
	}
	return p.Backend.Send(ctx, prompt)
}
