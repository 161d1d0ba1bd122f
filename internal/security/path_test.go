package security

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFilePath(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		errMsg string
	}{
		{name: "plain file", path: "qchat.db"},
		{name: "nested relative path", path: "data/qchat.db"},
		{name: "dotted filename", path: "config/production.v2.json"},
		{name: "empty", path: "", errMsg: "path cannot be empty"},
		{name: "absolute", path: "/var/lib/qchat.db", errMsg: "absolute paths not allowed"},
		{name: "leading traversal", path: "../secrets.json", errMsg: "directory traversal"},
		{name: "embedded traversal", path: "data/../../etc/passwd", errMsg: "directory traversal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilePath(tt.path)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateFilePathWithBase(t *testing.T) {
	base := filepath.Join("var", "qchat")

	require.NoError(t, ValidateFilePathWithBase("store.db", base))
	require.NoError(t, ValidateFilePathWithBase(filepath.Join("media", "store.db"), base))

	err := ValidateFilePathWithBase(filepath.Join("..", "outside.db"), base)
	require.Error(t, err)
}
