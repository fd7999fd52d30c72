package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rahul/reforge/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type stubModel struct {
	reply  string
	err    error
	prompt string
}

func (m *stubModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				m.prompt = text.Text
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestLangChainSuccess(t *testing.T) {
	model := &stubModel{reply: "  {\"plan\":[]}\n"}
	resp := NewLangChain(model).Send(context.Background(), "make a plan")

	assert.True(t, resp.Success)
	assert.Equal(t, `{"plan":[]}`, resp.Message)
	assert.Empty(t, resp.ErrorMessage)
	assert.Equal(t, "make a plan", model.prompt)
}

func TestLangChainFailureIsSurfacedVerbatim(t *testing.T) {
	model := &stubModel{err: errors.New("401 invalid api key")}
	resp := NewLangChain(model).Send(context.Background(), "x")

	assert.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "401 invalid api key")
}

func TestNewPacedDisabled(t *testing.T) {
	b := Func(func(ctx context.Context, prompt string) Response { return Response{Success: true} })
	_, paced := NewPaced(b, 0).(*Paced)
	assert.False(t, paced)
}

func TestPacedHonoursContext(t *testing.T) {
	calls := 0
	b := Func(func(ctx context.Context, prompt string) Response {
		calls++
		return Response{Success: true, Message: "ok"}
	})
	p := NewPaced(b, 1)

	require.True(t, p.Send(context.Background(), "first").Success)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	resp := p.Send(ctx, "second")
	assert.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "request not sent")
	assert.Equal(t, 1, calls)
}

func TestNewModelUnknownProvider(t *testing.T) {
	_, err := NewModel("carrier-pigeon", config.ProviderConfig{})
	assert.Error(t, err)
}

func TestNewWithoutEnabledProvider(t *testing.T) {
	cfg := config.Default()
	_, err := New(cfg)
	assert.Error(t, err)
}
