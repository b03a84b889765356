package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ExactlyOneOfHTTPOrStdio(t *testing.T) {
	_, err := ServerDefinition{Name: "x"}.Validate("/home")
	require.Error(t, err)

	_, err = ServerDefinition{
		Name:  "x",
		HTTP:  &HTTPCommand{URL: "https://example.com"},
		Stdio: &StdioCommand{Executable: "cmd"},
	}.Validate("/home")
	require.Error(t, err)
}

func TestValidate_HTTPAcceptHeaderAlwaysNormalized(t *testing.T) {
	def, err := ServerDefinition{
		Name: "srv",
		HTTP: &HTTPCommand{URL: "https://example.com", Headers: map[string]string{"Accept": "application/json"}},
	}.Validate("/home")
	require.NoError(t, err)
	assert.Equal(t, "application/json, text/event-stream", def.HTTP.Headers["Accept"])
}

func TestValidate_HTTPAcceptHeaderPreservedWhenAlreadySatisfied(t *testing.T) {
	existing := "text/event-stream, application/json"
	def, err := ServerDefinition{
		Name: "srv",
		HTTP: &HTTPCommand{URL: "https://example.com", Headers: map[string]string{"Accept": existing}},
	}.Validate("/home")
	require.NoError(t, err)
	assert.Equal(t, existing, def.HTTP.Headers["Accept"])
}

func TestValidate_OAuthDefaultTokenCacheDir(t *testing.T) {
	def, err := ServerDefinition{
		Name:  "github",
		Stdio: &StdioCommand{Executable: "mcp-github"},
		Auth:  OAuthAuth,
	}.Validate("/home/user")
	require.NoError(t, err)
	assert.Equal(t, "/home/user/.mcporter/github", def.TokenCacheDir)
}

func TestValidate_OAuthExplicitTokenCacheDirPreserved(t *testing.T) {
	def, err := ServerDefinition{
		Name:          "github",
		Stdio:         &StdioCommand{Executable: "mcp-github"},
		Auth:          OAuthAuth,
		TokenCacheDir: "/custom/dir",
	}.Validate("/home/user")
	require.NoError(t, err)
	assert.Equal(t, "/custom/dir", def.TokenCacheDir)
}

func TestEnsureHTTPAcceptHeader_Idempotent(t *testing.T) {
	h := EnsureHTTPAcceptHeader(map[string]string{"Accept": "application/json"})
	h2 := EnsureHTTPAcceptHeader(h)
	assert.Equal(t, h, h2)
}

func TestValidate_BlankNameRejected(t *testing.T) {
	// Uniqueness across a catalog is checked by FileLoader, not here;
	// Validate is single-definition scoped and rejects a name that is blank
	// once trimmed.
	_, err := ServerDefinition{Name: "  ", Stdio: &StdioCommand{Executable: "x"}}.Validate("/home")
	require.Error(t, err)
}
