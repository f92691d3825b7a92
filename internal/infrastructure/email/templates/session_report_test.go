package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSessionReportEscapesLines(t *testing.T) {
	html, err := GetSessionReport(SessionReportProps{
		SessionID:  "abc",
		Transcript: "=== Conversation history ===\n[PARTNER] (happy) <b>hi</b>\n[SELF] hello",
	})
	require.NoError(t, err)
	assert.Contains(t, html, "[PARTNER] (happy) &lt;b&gt;hi&lt;/b&gt;")
	assert.Contains(t, html, "[SELF] hello")
	assert.NotContains(t, html, "=== Conversation history ===")
	assert.NotContains(t, html, "Nothing was recorded")
}

func TestGetSessionReportEmptyHistory(t *testing.T) {
	html, err := GetSessionReport(SessionReportProps{SessionID: "abc", Transcript: "=== Conversation history ===\n(no history)"})
	require.NoError(t, err)
	assert.Contains(t, html, "Nothing was recorded")
}
