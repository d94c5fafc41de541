package codec_test

import (
	"testing"
	"time"

	"github.com/aretw0/palaver/internal/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	Name    string    `json:"name"`
	Age     int       `json:"age,omitempty"`
	Tags    []string  `json:"tags"`
	Created time.Time `json:"created"`
}

func TestDecode(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		want profile
	}{
		{
			name: "From JSON shaped map",
			in: map[string]any{
				"name":    "Ana",
				"age":     float64(31),
				"tags":    []any{"a", "b"},
				"created": created.Format(time.RFC3339Nano),
			},
			want: profile{Name: "Ana", Age: 31, Tags: []string{"a", "b"}, Created: created},
		},
		{
			name: "Same type is assigned",
			in:   profile{Name: "Bo", Created: created},
			want: profile{Name: "Bo", Created: created},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got profile
			require.NoError(t, codec.Decode(tt.in, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_RejectsNonPointer(t *testing.T) {
	var p profile
	assert.Error(t, codec.Decode(map[string]any{}, p))
}

func TestCloneMap_IsDeep(t *testing.T) {
	src := map[string]any{"inner": map[string]any{"k": "v"}}
	cp, err := codec.CloneMap(src)
	require.NoError(t, err)

	cp["inner"].(map[string]any)["k"] = "changed"
	assert.Equal(t, "v", src["inner"].(map[string]any)["k"])
}

func TestInt(t *testing.T) {
	for _, v := range []any{3, int64(3), float64(3)} {
		n, ok := codec.Int(v)
		assert.True(t, ok)
		assert.Equal(t, 3, n)
	}
	_, ok := codec.Int("3")
	assert.False(t, ok)
}
