package buildinfo

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	assert.Equal(t, Commit, info.Commit)
	assert.Equal(t, Date, info.Date)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.NotEmpty(t, info.Version)
}

func TestInfo_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		info Info
		want string
	}{
		{
			name: "release",
			info: Info{Version: "1.2.0", Commit: "a1b2c3d", Date: "2026-02-17T10:00:00Z", GoVersion: "go1.24.2", Platform: "linux/amd64"},
			want: "storytotest v1.2.0 (commit: a1b2c3d, built: 2026-02-17T10:00:00Z, go1.24.2 linux/amd64)",
		},
		{
			name: "git describe",
			info: Info{Version: "1.2.0-3-gabcdef0-dirty", Commit: "abcdef0", Date: "unknown", GoVersion: "go1.24.2", Platform: "darwin/arm64"},
			want: "storytotest v1.2.0-3-gabcdef0-dirty (commit: abcdef0, built: unknown, go1.24.2 darwin/arm64)",
		},
		{
			name: "empty",
			info: Info{},
			want: "storytotest v (commit: , built: ,  )",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.info.String())
		})
	}
}

func TestInfo_JSON(t *testing.T) {
	t.Parallel()
	data, err := json.Marshal(Info{Version: "1.0.0", Commit: "abc", Date: "d", GoVersion: "go1.24.2", Platform: "linux/amd64"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"1.0.0","commit":"abc","date":"d","go_version":"go1.24.2","platform":"linux/amd64"}`, string(data))
}
