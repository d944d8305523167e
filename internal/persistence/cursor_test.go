package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JarvisScienz/progress-tracker/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	in := &domain.Cursor{CreatedAt: time.Date(2024, 3, 14, 10, 0, 0, 123456789, time.UTC), ID: "3f2a"}
	out, err := DecodeCursor(EncodeCursor(in))
	require.NoError(t, err)
	require.True(t, in.CreatedAt.Equal(out.CreatedAt))
	require.Equal(t, in.ID, out.ID)
}

func TestCursorEmpty(t *testing.T) {
	require.Empty(t, EncodeCursor(nil))
	c, err := DecodeCursor(" ")
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"!!!", "bm8tc2VwYXJhdG9y", "bm90LWEtdGltZXxpZA"} {
		_, err := DecodeCursor(token)
		require.Error(t, err, token)
	}
}
