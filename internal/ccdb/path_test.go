package ccdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	p, err := ParsePath("/CDC/dedx_gains")
	require.NoError(t, err)
	assert.Equal(t, Path("/CDC/dedx_gains"), p)

	_, err = ParsePath("CDC/dedx_gains")
	assert.Error(t, err, "relative path")
	_, err = ParsePath("/CDC/dedx gains")
	assert.Error(t, err, "space")
	_, err = ParsePath("/CDC/dédx")
	assert.Error(t, err, "non-ASCII")
}

func TestPath_NameParent(t *testing.T) {
	p := Path("/CDC/dedx_gains")
	assert.Equal(t, "dedx_gains", p.Name())

	parent, ok := p.Parent()
	require.True(t, ok)
	assert.Equal(t, Path("/CDC"), parent)

	root, ok := parent.Parent()
	require.True(t, ok)
	assert.Equal(t, Path("/"), root)
	assert.True(t, root.IsRoot())

	_, ok = root.Parent()
	assert.False(t, ok)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		base, rel string
		want      Path
	}{
		{"/CDC", "dedx_gains", "/CDC/dedx_gains"},
		{"/CDC", "./dedx_gains", "/CDC/dedx_gains"},
		{"/CDC/sub", "..", "/CDC"},
		{"/CDC", "../FDC/gains", "/FDC/gains"},
		{"/CDC", "/FDC/gains", "/FDC/gains"},
		{"/", "..", "/"},
		{"/a//b", "", "/a/b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePath(tt.base, tt.rel),
			"NormalizePath(%q, %q)", tt.base, tt.rel)
	}
}
