package reflector

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct{}

func TestNameOf(t *testing.T) {
	want := "github.com/codewandler/revent-go/internal/reflector.sample"
	require.Equal(t, want, NameOf(sample{}))
	require.Equal(t, want, NameOf(&sample{}))
	require.Equal(t, want, NameFor[sample]())
	require.Equal(t, want, NameFor[*sample]())
}

func TestNameOf_Cached(t *testing.T) {
	a := NameOf(sample{})
	b := NameOf(sample{})
	require.Equal(t, a, b)
}
