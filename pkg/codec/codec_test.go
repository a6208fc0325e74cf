package codec

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRoundTrip(t *testing.T) {
	text := "def f(x):\n    return x\n"
	got, err := Decode("a.py", Encode(text))
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestDecodeInvalidEncoding(t *testing.T) {
	_, err := Decode("b.py", "not*base64!")
	require.Error(t, err)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "b.py", de.Path)
}

func TestDecodeDropsInvalidUTF8(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
		want    string
	}{
		{"lone invalid byte", "/w==", ""},
		{"invalid byte between ascii", Encode("a\xffb"), "ab"},
		{"truncated sequence at end", Encode("caf\xc3"), "caf"},
		{"valid multibyte kept", Encode("café\xfe ü"), "café ü"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode("c.txt", tt.encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		root    string
		wantErr bool
	}{
		{name: "simple file", path: "main.py", root: "/ws"},
		{name: "nested file", path: "pkg/sub/mod.go", root: "/ws"},
		{name: "dot segment", path: "./pkg/mod.go", root: "/ws"},
		{name: "empty root", path: "a/b.py", root: ""},
		{name: "parent segment", path: "../etc/passwd", root: "/ws", wantErr: true},
		{name: "embedded parent", path: "pkg/../../x", root: "/ws", wantErr: true},
		{name: "backslash parent", path: `pkg\..\..\x`, root: "/ws", wantErr: true},
		{name: "absolute", path: "/etc/passwd", root: "/ws", wantErr: true},
		{name: "empty", path: "", root: "/ws", wantErr: true},
		{name: "root itself", path: ".", root: "/ws", wantErr: true},
		{name: "dotdot-like name is fine", path: "a/..b/c.py", root: "/ws"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path, tt.root)
			if tt.wantErr {
				var pe *PathTraversalError
				assert.True(t, errors.As(err, &pe), "expected PathTraversalError, got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRoot(t *testing.T) {
	assert.NoError(t, ValidateRoot("/srv/workspace"))
	assert.NoError(t, ValidateRoot("workspace"))
	assert.Error(t, ValidateRoot("/srv/../etc"))
	assert.Error(t, ValidateRoot(".."))
}

func TestResolve(t *testing.T) {
	root := t.TempDir()
	got, err := Resolve(root, "pkg/a.go")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "pkg", "a.go"), got)

	_, err = Resolve(root, "../a.go")
	assert.Error(t, err)
}
