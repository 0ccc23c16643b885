package outbound

import (
	"context"
	"io"
	"testing"

	"dealflow_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderFirstMessageEscapesInput(t *testing.T) {
	html, err := renderFirstMessage(FirstMessage{ContactName: "Ana", Address: "12 Elm St <b>"}, "Northside Homes")
	require.NoError(t, err)

	assert.Contains(t, html, "Hello Ana,")
	assert.Contains(t, html, "12 Elm St &lt;b&gt;")
	assert.Contains(t, html, "Northside Homes")
}

func TestRenderFirstMessageWithoutName(t *testing.T) {
	html, err := renderFirstMessage(FirstMessage{Address: "9 Oak Ave"}, "")
	require.NoError(t, err)

	assert.Contains(t, html, "Hello,")
	assert.Contains(t, html, "The acquisitions team")
}

func TestNoopSenderNeverFails(t *testing.T) {
	s := NoopSender{log: logger.NewWithWriter("test", io.Discard)}
	assert.NoError(t, s.SendFirstMessage(context.Background(), FirstMessage{ToEmail: "a@example.com"}))
}
