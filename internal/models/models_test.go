package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddress_Domain(t *testing.T) {
	tests := []struct {
		name     string
		address  string
		expected string
	}{
		{"lower-cases domain", "Support@Acme.COM", "acme.com"},
		{"no at sign", "support", ""},
		{"trailing at", "support@", ""},
		{"quoted local part with at", `"a@b"@example.org`, "example.org"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Address{Address: tt.address}.Domain())
		})
	}
}

func TestAddress_DomainKeepsAddressCasing(t *testing.T) {
	a := Address{Address: "Jane.Doe@Example.COM"}
	assert.Equal(t, "example.com", a.Domain())
	assert.Equal(t, "Jane.Doe@Example.COM", a.Address)
}

func TestMergeParticipants(t *testing.T) {
	existing := []Participant{
		{Address: "alice@example.com", Role: RoleFrom},
		{Address: "support@acme.com", Role: RoleTo},
	}
	incoming := []Participant{
		{Address: "Alice@Example.com", Role: RoleTo},
		{Address: "bob@example.com", Name: "Bob", Role: RoleCc},
	}

	merged, changed := MergeParticipants(existing, incoming)

	assert.True(t, changed)
	assert.Len(t, merged, 3)
	assert.Equal(t, RoleFrom, merged[0].Role)
	assert.Equal(t, "bob@example.com", merged[2].Address)
	assert.Equal(t, RoleCc, merged[2].Role)
}

func TestMergeParticipants_NoChange(t *testing.T) {
	existing := []Participant{{Address: "alice@example.com", Role: RoleFrom}}

	merged, changed := MergeParticipants(existing, []Participant{{Address: "ALICE@example.com", Role: RoleTo}})

	assert.False(t, changed)
	assert.Equal(t, existing, merged)
}

func TestMessage_ClassificationInput(t *testing.T) {
	text := "plain body"
	html := "<p>html body</p>"
	empty := ""

	t.Run("prefers text", func(t *testing.T) {
		m := &Message{Subject: "s", TextContent: &text, HTMLContent: &html}
		assert.Equal(t, text, m.ClassificationInput())
	})
	t.Run("falls back to html", func(t *testing.T) {
		m := &Message{Subject: "s", TextContent: &empty, HTMLContent: &html}
		assert.Equal(t, html, m.ClassificationInput())
	})
	t.Run("falls back to subject", func(t *testing.T) {
		m := &Message{Subject: "s"}
		assert.Equal(t, "s", m.ClassificationInput())
	})
}

func TestEnums_Valid(t *testing.T) {
	assert.True(t, PriorityUrgent.Valid())
	assert.False(t, Priority("critical").Valid())
	assert.True(t, ThreadStatusArchived.Valid())
	assert.False(t, ThreadStatus("spam").Valid())
}
