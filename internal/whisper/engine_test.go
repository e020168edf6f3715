package whisper

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptionsIsValid(t *testing.T) {
	model := filepath.Join(t.TempDir(), "ggml-tiny.bin")
	require.NoError(t, os.WriteFile(model, []byte("ggml"), 0o600))

	tcs := []struct {
		name string
		opts Options
		err  string
	}{
		{
			name: "empty model path",
			err:  "invalid ModelPath: should not be empty",
		},
		{
			name: "non existent model file",
			opts: Options{ModelPath: "/tmp/invalid.ggml"},
			err:  "invalid ModelPath: failed to stat model file: stat /tmp/invalid.ggml: no such file or directory",
		},
		{
			name: "too many threads",
			opts: Options{ModelPath: model, Threads: runtime.NumCPU() + 1},
			err:  "invalid Threads",
		},
		{
			name: "valid",
			opts: Options{ModelPath: model, Threads: 1},
		},
		{
			name: "default threads",
			opts: Options{ModelPath: model},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.opts.IsValid()
			if tc.err != "" {
				require.ErrorContains(t, err, tc.err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
