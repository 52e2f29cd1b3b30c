package electrum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidProtocolVersion(t *testing.T) {
	cases := map[string]bool{
		"1.4":   true,
		"1.4.2": true,
		"1":     false,
		"":      false,
		"v1.4":  false,
		"1.4.":  false,
	}
	for in, want := range cases {
		assert.Equal(t, want, ValidProtocolVersion(in), "input %q", in)
	}
}

func TestBuildRequest(t *testing.T) {
	frame, err := BuildRequest("server.ping", nil, "keepAlive")
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"server.ping","params":[],"id":"keepAlive"}`, frame)
}

func TestSplitStatements(t *testing.T) {
	t.Run("single chunk, single statement", func(t *testing.T) {
		statements, remainder := SplitStatements("", []byte("{\"a\":1}\n"))
		assert.Equal(t, []string{`{"a":1}`}, statements)
		assert.Empty(t, remainder)
	})

	t.Run("multiple statements in one chunk", func(t *testing.T) {
		statements, remainder := SplitStatements("", []byte("a\nb\nc\n"))
		assert.Equal(t, []string{"a", "b", "c"}, statements)
		assert.Empty(t, remainder)
	})

	t.Run("partial trailing statement carries over", func(t *testing.T) {
		statements, remainder := SplitStatements("", []byte("a\nb"))
		assert.Equal(t, []string{"a"}, statements)
		assert.Equal(t, "b", remainder)
	})

	t.Run("chunk boundary splits mid-statement", func(t *testing.T) {
		statements, remainder := SplitStatements("ab", []byte("c\nd"))
		assert.Equal(t, []string{"abc"}, statements)
		assert.Equal(t, "d", remainder)
	})

	t.Run("chunk boundary splits exactly on delimiter", func(t *testing.T) {
		statements, remainder := SplitStatements("ab", []byte("\n"))
		assert.Equal(t, []string{"ab"}, statements)
		assert.Empty(t, remainder)
	})

	t.Run("no delimiter yet", func(t *testing.T) {
		statements, remainder := SplitStatements("ab", []byte("cd"))
		assert.Nil(t, statements)
		assert.Equal(t, "abcd", remainder)
	})

	t.Run("empty chunk is a no-op", func(t *testing.T) {
		statements, remainder := SplitStatements("ab", nil)
		assert.Nil(t, statements)
		assert.Equal(t, "ab", remainder)
	})
}
