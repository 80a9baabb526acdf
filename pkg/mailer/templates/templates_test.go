package templates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWelcomeData(t *testing.T) {
	d := NewWelcomeData("App", "Ada", "ada@test.com", WithTime(time.Time{}), WithLoginURL("https://app.test/login"))
	assert.Equal(t, Welcome, d.Type)
	assert.Empty(t, d.Time)
	assert.Equal(t, "https://app.test/login", d.LoginURL)

	m := ToMap(d)
	assert.Equal(t, "Ada", m["Name"])
	assert.Equal(t, "App", m["AppName"])
}

func TestRender_Defaults(t *testing.T) {
	subject, text, html, err := Render(Welcome, ToMap(NewWelcomeData("", "", "x@test.com")))
	require.NoError(t, err)
	assert.Equal(t, "Welcome to Task Manager", subject)
	assert.Contains(t, text, "Hi there,")
	assert.NotContains(t, text, "Sign in:")
	assert.NotContains(t, html, "Registered")
}

func TestRender_EscapesHTML(t *testing.T) {
	_, _, html, err := Render(Welcome, NewWelcomeData("App", "<script>", "x@test.com"))
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestKnown(t *testing.T) {
	assert.True(t, Known(Welcome))
	assert.False(t, Known("forgot_password"))
}
