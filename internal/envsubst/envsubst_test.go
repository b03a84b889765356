package envsubst

import (
	"testing"

	"github.com/mcporter/mcporter/pkg/mcporter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(m map[string]string) Lookup {
	return func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	}
}

func TestResolve_DefaultFallback(t *testing.T) {
	lookup := lookupFrom(map[string]string{})
	got, err := Resolve("${X:-d}", lookup)
	require.NoError(t, err)
	assert.Equal(t, "d", got)
}

func TestResolve_DefaultFallback_EmptyIsUsed(t *testing.T) {
	lookup := lookupFrom(map[string]string{"X": ""})
	got, err := Resolve("${X:-d}", lookup)
	require.NoError(t, err)
	assert.Equal(t, "d", got)
}

func TestResolve_SetValueWins(t *testing.T) {
	lookup := lookupFrom(map[string]string{"SIGNOZ_URL": "http://example:3301"})
	got, err := Resolve("${SIGNOZ_URL:-http://localhost:3301}", lookup)
	require.NoError(t, err)
	assert.Equal(t, "http://example:3301", got)
}

func TestResolve_ScenarioSix(t *testing.T) {
	lookup := lookupFrom(map[string]string{})
	got, err := Resolve("${SIGNOZ_URL:-http://localhost:3301}", lookup)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3301", got)
}

func TestResolve_MissingNoDefault(t *testing.T) {
	lookup := lookupFrom(map[string]string{})
	_, err := Resolve("${FOO}", lookup)
	require.Error(t, err)
	var missErr *mcporter.MissingEnvError
	require.ErrorAs(t, err, &missErr)
	assert.Equal(t, []string{"FOO"}, missErr.Names)
}

func TestResolve_MissingUnionSorted(t *testing.T) {
	lookup := lookupFrom(map[string]string{})
	_, err := Resolve("${ZEBRA} and ${APPLE}", lookup)
	require.Error(t, err)
	var missErr *mcporter.MissingEnvError
	require.ErrorAs(t, err, &missErr)
	assert.Equal(t, []string{"APPLE", "ZEBRA"}, missErr.Names)
}

func TestResolve_EnvTagStrict(t *testing.T) {
	lookup := lookupFrom(map[string]string{"NAME": "val"})
	got, err := Resolve("$env:NAME", lookup)
	require.NoError(t, err)
	assert.Equal(t, "val", got)

	_, err = Resolve("$env:MISSING", lookup)
	require.Error(t, err)
}

func TestResolve_IdempotentOnPlainStrings(t *testing.T) {
	lookup := lookupFrom(map[string]string{})
	for _, s := range []string{"", "plain", "no placeholders here", "/usr/bin/foo"} {
		got, err := Resolve(s, lookup)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestResolveAll_IsolatesOverlay(t *testing.T) {
	before := map[string]string{"OTHER": "1"}
	lookup := lookupFrom(before)

	env := map[string]string{"SIGNOZ_URL": "${SIGNOZ_URL:-http://localhost:3301}"}
	resolved, err := ResolveAll(env, lookup)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3301", resolved["SIGNOZ_URL"])

	// lookup map (standing in for ambient env) was never mutated.
	assert.Equal(t, map[string]string{"OTHER": "1"}, before)
}

func TestResolveAll_CollectsAllMissing(t *testing.T) {
	lookup := lookupFrom(map[string]string{})
	env := map[string]string{
		"A": "${ZEBRA}",
		"B": "${APPLE}",
	}
	_, err := ResolveAll(env, lookup)
	require.Error(t, err)
	var missErr *mcporter.MissingEnvError
	require.ErrorAs(t, err, &missErr)
	assert.Equal(t, []string{"APPLE", "ZEBRA"}, missErr.Names)
}
