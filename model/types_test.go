package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareVersions(t *testing.T) {
	pairs := [][2]string{
		{"136.0.7064.0", "136.0.7067.0"},
		{"1.2.3.4", "1.2.3.5"},
		{"9.0.0.0", "10.0.0.0"},
		{"136.0.7064.99", "136.1.0.0"},
	}
	for _, p := range pairs {
		lt, err := CompareVersions(p[0], p[1])
		require.NoError(t, err)
		assert.Negative(t, lt, "%s < %s", p[0], p[1])

		gt, err := CompareVersions(p[1], p[0])
		require.NoError(t, err)
		assert.Positive(t, gt, "%s > %s", p[1], p[0])

		eq, err := CompareVersions(p[0], p[0])
		require.NoError(t, err)
		assert.Zero(t, eq)
	}
}

func TestCompareVersionsShapeMismatch(t *testing.T) {
	_, err := CompareVersions("1.2.3", "1.2.3.4")
	assert.Error(t, err)
}

func TestCompareVersionsNonNumeric(t *testing.T) {
	_, err := CompareVersions("1.2.x.4", "1.2.3.4")
	assert.Error(t, err)
}

func TestCommitEntry(t *testing.T) {
	c := Commit{
		SHA:     "abc123",
		Meta:    "Author: Dev <dev@example.com>",
		Message: "Fix the thing",
		Changes: []Change{
			{Status: "M", Path: "a.cc"},
			{Status: "R100", OldPath: "b.h", Path: "c.h"},
		},
	}

	assert.Equal(t, "commit abc123\n\nFix the thing\n\nM\ta.cc\nR100\tb.h\tc.h", c.Entry())
	assert.Equal(t, "commit abc123\nAuthor: Dev <dev@example.com>\n\nFix the thing\n\nM\ta.cc\nR100\tb.h\tc.h", c.Show())
	assert.Greater(t, c.Size(), len("Fix the thing"))
}

func TestParseContinuation(t *testing.T) {
	c, err := ParseContinuation(`{"after":"abc","page":3,"startVersion":"1.0.0.0","endVersion":"1.0.1.0"}`)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "abc", c.After)
	assert.Equal(t, 3, c.Page)
	assert.Equal(t, "1.0.0.0..1.0.1.0", c.Range().Key())

	c, err = ParseContinuation("  ")
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = ParseContinuation("{")
	assert.Error(t, err)
}
