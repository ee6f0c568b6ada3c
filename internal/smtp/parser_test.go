package smtp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/welldanyogia/webrana-inbox-backend/internal/errors"
)

func openFixture(t *testing.T, name string) *os.File {
	t.Helper()
	file, err := os.Open(filepath.Join("..", "..", "tests", "fixtures", "emails", name))
	require.NoError(t, err)
	t.Cleanup(func() { file.Close() })
	return file
}

func TestParseMessage_SimpleText(t *testing.T) {
	// Act
	payload, err := ParseMessage(openFixture(t, "new_thread.eml"))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, `"Jane Customer" <jane@acme.com>`, payload.From)
	assert.Equal(t, []string{"<support@ourteam.io>"}, []string(payload.To))
	assert.Equal(t, "Order problem", payload.Subject)
	assert.Equal(t, "<order-1@acme.com>", payload.MessageID)
	assert.Equal(t, "Mon, 15 Jan 2024 10:00:00 +0000", payload.Date)
	require.NotNil(t, payload.Text)
	assert.Contains(t, *payload.Text, "My order #1234 has not arrived.")
	assert.Nil(t, payload.HTML)
	assert.Empty(t, payload.Attachments)
}

func TestParseMessage_ReplyWithAttachment(t *testing.T) {
	// Act
	payload, err := ParseMessage(openFixture(t, "reply_with_attachment.eml"))

	// Assert
	require.NoError(t, err)
	assert.Contains(t, payload.From, "Jürgen Müller")
	assert.Len(t, payload.To, 2)
	assert.Contains(t, payload.To[0], "support@ourteam.io")
	assert.Contains(t, payload.To[1], "billing@ourteam.io")
	assert.Len(t, payload.Cc, 1)
	assert.Equal(t, "<order-1@acme.com>", payload.InReplyTo)
	assert.Equal(t, []string{"<order-0@acme.com> <order-1@acme.com>"}, []string(payload.References))

	require.NotNil(t, payload.Text)
	require.NotNil(t, payload.HTML)
	assert.Contains(t, *payload.HTML, "<b>receipt</b>")

	require.Len(t, payload.Attachments, 1)
	assert.Equal(t, "receipt.pdf", payload.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", payload.Attachments[0].ContentType)
	assert.True(t, strings.HasPrefix(string(payload.Attachments[0].Content), "%PDF-1.4"))
}

func TestParseMessage_KeepsUnstructuredHeaders(t *testing.T) {
	payload, err := ParseMessage(openFixture(t, "reply_with_attachment.eml"))

	require.NoError(t, err)
	assert.Equal(t, "TestMailer 1.0", payload.Headers["X-Mailer"])
	assert.NotContains(t, payload.Headers, "Subject")
	assert.NotContains(t, payload.Headers, "Message-Id")
}

func TestParseMessage_AutoReplyHeadersPreserved(t *testing.T) {
	raw := "From: mailer@acme.com\r\nTo: support@ourteam.io\r\nSubject: Out of office\r\n" +
		"Auto-Submitted: auto-replied\r\nMessage-ID: <ooo@acme.com>\r\n\r\nI am away.\r\n"

	payload, err := ParseMessage(strings.NewReader(raw))

	require.NoError(t, err)
	assert.Equal(t, "auto-replied", payload.Headers["Auto-Submitted"])
}

func TestParseMessage_Unreadable(t *testing.T) {
	_, err := ParseMessage(failingReader{})

	require.Error(t, err)
	assert.True(t, apperrors.IsParseError(err))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, os.ErrClosed }
