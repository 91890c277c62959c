package backend

import (
	"net/url"
	"strings"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeQuery(t *testing.T, query string) url.Values {
	t.Helper()
	require.True(t, strings.HasPrefix(query, "?"), "query must start with '?': %q", query)
	values, err := url.ParseQuery(strings.TrimPrefix(query, "?"))
	require.NoError(t, err)
	return values
}

func TestEncodeQuery_DropsEmptyValues(t *testing.T) {
	var nilString *string
	lang := "ja"

	tests := []struct {
		name    string
		params  Params
		want    map[string]string
		missing []string
	}{
		{
			name:    "nil and empty string are dropped",
			params:  Params{"model_size": "large-v3", "lang": "", "initial_prompt": nil},
			want:    map[string]string{"model_size": "large-v3"},
			missing: []string{"lang", "initial_prompt"},
		},
		{
			name:    "typed nil pointer is dropped",
			params:  Params{"lang": nilString, "beam_size": 5},
			want:    map[string]string{"beam_size": "5"},
			missing: []string{"lang"},
		},
		{
			name:   "pointer is dereferenced",
			params: Params{"lang": &lang},
			want:   map[string]string{"lang": "ja"},
		},
		{
			name:   "scalars are string-coerced",
			params: Params{"vad_filter": true, "threshold": 0.5, "min_speech_duration_ms": 250, "enable_offload": false},
			want:   map[string]string{"vad_filter": "true", "threshold": "0.5", "min_speech_duration_ms": "250", "enable_offload": "false"},
		},
		{
			name:    "options are unwrapped or dropped",
			params:  Params{"top_k": mo.Some(4), "temperature": mo.None[float64](), "hf_token": mo.Some("")},
			want:    map[string]string{"top_k": "4"},
			missing: []string{"temperature", "hf_token"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := decodeQuery(t, EncodeQuery(tt.params))

			for key, want := range tt.want {
				require.Len(t, values[key], 1, "key %s must appear exactly once", key)
				assert.Equal(t, want, values.Get(key))
			}
			for _, key := range tt.missing {
				_, ok := values[key]
				assert.False(t, ok, "key %s must not be encoded", key)
			}
			assert.Len(t, values, len(tt.want))
		})
	}
}

func TestEncodeQuery_EmptyResult(t *testing.T) {
	assert.Equal(t, "", EncodeQuery(nil))
	assert.Equal(t, "", EncodeQuery(Params{}))
	assert.Equal(t, "", EncodeQuery(Params{"lang": "", "prompt": nil}))
}

func TestEncodeQuery_EscapesValues(t *testing.T) {
	values := decodeQuery(t, EncodeQuery(Params{"initial_prompt": "こんにちは & welcome"}))
	assert.Equal(t, "こんにちは & welcome", values.Get("initial_prompt"))
}

func TestMergeParams_LaterGroupWins(t *testing.T) {
	whisper := Params{"model_size": "large-v3", "lang": "en"}
	vad := Params{"vad_filter": true, "lang": "ja"}
	bgm := Params{"is_separate_bgm": false}

	merged := MergeParams(whisper, vad, nil, bgm)

	assert.Equal(t, Params{
		"model_size":      "large-v3",
		"lang":            "ja",
		"vad_filter":      true,
		"is_separate_bgm": false,
	}, merged)

	// 入力は変更されない
	assert.Equal(t, "en", whisper["lang"])
}
