package merchant

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSearchURL(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		"https://www.amazon.de/s?k=Sony+WH-1000XM5",
		Amazon.SearchURL("Sony WH-1000XM5"),
	)
	require.Equal(t,
		"https://www.otto.de/suche/Sony+WH-1000XM5",
		Otto.SearchURL(" Sony WH-1000XM5 "),
	)
}

func TestFromBaseURL(t *testing.T) {
	t.Parallel()

	m, err := FromBaseURL("https://www.amazon.de")
	require.NoError(t, err)
	require.Equal(t, "AMAZON", m.Name())

	_, err = FromBaseURL("https://www.example.com")
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestAllIsStable(t *testing.T) {
	t.Parallel()

	names := []string{}
	for _, m := range All() {
		names = append(names, m.Name())
	}
	require.Equal(t, []string{"AMAZON", "OTTO"}, names)
}
