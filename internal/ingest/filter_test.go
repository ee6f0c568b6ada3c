package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAutoReplyFilter_Subjects(t *testing.T) {
	f := NewAutoReplyFilter()

	tests := []struct {
		subject string
		want    bool
	}{
		{"Automatic reply: Invoice question", true},
		{"  out of office until Monday", true},
		{"AUTO-REPLY: thanks", true},
		{"Autoreply", true},
		{"Abwesenheitsnotiz: Urlaub", true},
		{"Réponse automatique : absent", true},
		{"Re: Invoice question", false},
		{"Question about auto-reply settings", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			assert.Equal(t, tt.want, f.IsAutoReply(tt.subject, nil))
		})
	}
}

func TestAutoReplyFilter_Headers(t *testing.T) {
	f := NewAutoReplyFilter()

	tests := []struct {
		name    string
		headers map[string]string
		want    bool
	}{
		{"auto-submitted auto-replied", map[string]string{"Auto-Submitted": "auto-replied"}, true},
		{"auto-submitted no", map[string]string{"Auto-Submitted": "No"}, false},
		{"x-autoreply", map[string]string{"X-Autoreply": "yes"}, true},
		{"x-auto-response-suppress", map[string]string{"X-Auto-Response-Suppress": "All"}, true},
		{"precedence auto_reply", map[string]string{"Precedence": "auto_reply"}, true},
		{"precedence bulk", map[string]string{"Precedence": "bulk"}, false},
		{"blank marker", map[string]string{"X-Autorespond": " "}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.IsAutoReply("Hello", tt.headers))
		})
	}
}

func TestAutoReplyFilter_ExtraPrefixes(t *testing.T) {
	f := NewAutoReplyFilter("  Fuera de la oficina ", "")

	assert.True(t, f.IsAutoReply("fuera de la oficina: vuelvo el lunes", nil))
	assert.True(t, f.IsAutoReply("Out of Office", nil))
}

func TestAutoReplyFilter_Skip(t *testing.T) {
	f := NewAutoReplyFilter()

	skip, reason := f.Skip(&ParsedEmail{Subject: "Out of Office: back soon"})
	assert.True(t, skip)
	assert.Equal(t, ReasonAutoReply, reason)

	skip, reason = f.Skip(&ParsedEmail{Subject: "Need help"})
	assert.False(t, skip)
	assert.Empty(t, reason)
	assert.Equal(t, "auto-reply", f.ID())
}
