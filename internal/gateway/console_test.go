package gateway

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoBrain struct {
	inputs []string
	fail   bool
}

func (b *echoBrain) Think(ctx context.Context, sessionID string, input string) (string, error) {
	b.inputs = append(b.inputs, sessionID+":"+input)
	if b.fail {
		return "", errors.New("no backend")
	}
	return "Done: " + input, nil
}

var _ Messenger = (*ConsoleGateway)(nil)

func TestConsoleGatewayRunsEachLine(t *testing.T) {
	brain := &echoBrain{}
	var out bytes.Buffer
	gw := NewConsoleGateway(strings.NewReader("create Foo\n\n  create Bar  \nexit\ncreate Baz\n"), &out, brain, "cli", nil)

	require.NoError(t, gw.Start(context.Background()))

	assert.Equal(t, []string{"cli:create Foo", "cli:create Bar"}, brain.inputs)
	assert.Contains(t, out.String(), "Done: create Foo")
	assert.Contains(t, out.String(), "Done: create Bar")
	assert.NotContains(t, out.String(), "Baz")
}

func TestConsoleGatewayReportsErrors(t *testing.T) {
	var out bytes.Buffer
	gw := NewConsoleGateway(strings.NewReader("x\n"), &out, &echoBrain{fail: true}, "cli", nil)

	require.NoError(t, gw.Start(context.Background()))
	assert.Contains(t, out.String(), "Failed: no backend")
}

func TestConsoleGatewayStop(t *testing.T) {
	brain := &echoBrain{}
	gw := NewConsoleGateway(strings.NewReader("x\n"), &bytes.Buffer{}, brain, "cli", nil)
	require.NoError(t, gw.Stop())

	require.NoError(t, gw.Start(context.Background()))
	assert.Empty(t, brain.inputs)
}
