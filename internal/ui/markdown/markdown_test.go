package markdown

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_Styles(t *testing.T) {
	for _, style := range []string{"", StyleDark, StyleLight, StyleNoTTY} {
		r, err := New(style, 40)
		require.NoError(t, err, style)
		require.Equal(t, 40, r.Width())
	}
	r, err := New("", 40)
	require.NoError(t, err)
	require.Equal(t, StyleAuto, r.Style())
}

func TestNew_UnknownStyle(t *testing.T) {
	_, err := New("neon", 40)
	require.ErrorContains(t, err, `unknown markdown style "neon"`)
}

func TestRender(t *testing.T) {
	r, err := New(StyleNoTTY, 60)
	require.NoError(t, err)

	out, err := r.Render("# Sessions\n\n- **r** run\n- **b** run batch\n")
	require.NoError(t, err)
	require.Contains(t, out, "Sessions")
	require.Contains(t, out, "run batch")
}
