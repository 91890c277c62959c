package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/mediastudio/internal/infra/backend"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    backend.Params
		wantErr bool
	}{
		{
			name:  "未指定",
			input: nil,
			want:  nil,
		},
		{
			name:  "複数指定",
			input: []string{"language=ja", "model = large-v3"},
			want:  backend.Params{"language": "ja", "model": "large-v3"},
		},
		{
			name:  "値に=を含む",
			input: []string{"prompt=a=b"},
			want:  backend.Params{"prompt": "a=b"},
		},
		{
			name:  "空の値",
			input: []string{"initial_prompt="},
			want:  backend.Params{"initial_prompt": ""},
		},
		{
			name:    "区切り無し",
			input:   []string{"language"},
			wantErr: true,
		},
		{
			name:    "キー無し",
			input:   []string{"=ja"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
	assert.Equal(t, "あいうえお...", truncateString("あいうえおかきくけこさしす", 8))
}
