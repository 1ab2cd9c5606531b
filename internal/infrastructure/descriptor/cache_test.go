package descriptor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
)

type countingResolver struct {
	calls int
	fail  bool
}

func (r *countingResolver) Resolve(classType, methodName string, genericArgs []string) (Descriptor, error) {
	r.calls++
	if r.fail {
		return Descriptor{}, errors.New("no such method")
	}
	return Descriptor{MethodDescriptor: classType + "." + methodName}, nil
}

func TestResolveCachesAcrossCalls(t *testing.T) {
	r := &countingResolver{}
	c, err := New(r, 10)
	require.NoError(t, err)

	d1, err := c.Resolve("Widget", "Render", nil)
	require.NoError(t, err)
	d2, err := c.Resolve("Widget", "Render", nil)
	require.NoError(t, err)

	require.Equal(t, d1, d2)
	require.Equal(t, 1, r.calls, "second resolve should hit the cache")
}

func TestResolveDistinguishesGenericArgs(t *testing.T) {
	r := &countingResolver{}
	c, err := New(r, 10)
	require.NoError(t, err)

	_, err = c.Resolve("Repo", "Get", []string{"int"})
	require.NoError(t, err)
	_, err = c.Resolve("Repo", "Get", []string{"string"})
	require.NoError(t, err)

	require.Equal(t, 2, r.calls)
}

func TestResolveFailureWrapsMethodNotFound(t *testing.T) {
	r := &countingResolver{fail: true}
	c, err := New(r, 10)
	require.NoError(t, err)

	_, err = c.Resolve("Widget", "Missing", nil)
	require.Error(t, err)
	require.ErrorIs(t, err, monitoring.ErrMethodNotFound)
}
