package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelorch/kestrel/pkg/domain"
)

func stubFactory(config map[string]string) (domain.HookSet, error) {
	return domain.HookSet{
		Start: func(ctx context.Context) error { return nil },
	}, nil
}

func TestRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("stub", stubFactory))

	specs, err := r.Resolve([]domain.NodeSpec{
		{Name: "db", Driver: "stub", Config: map[string]string{"k": "v"}},
	})
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.NotNil(t, specs[0].Hooks.Start)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("stub", stubFactory))
	require.Error(t, r.Register("stub", stubFactory))
}

func TestRegisterRejectsBadInput(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.Register("", stubFactory))
	require.Error(t, r.Register("stub", nil))
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("stub", stubFactory)
	assert.Panics(t, func() { r.MustRegister("stub", stubFactory) })
}

func TestResolveKeepsExistingHooks(t *testing.T) {
	r := NewRegistry()

	called := false
	specs, err := r.Resolve([]domain.NodeSpec{
		{Name: "db", Hooks: domain.HookSet{Start: func(ctx context.Context) error {
			called = true
			return nil
		}}},
	})
	require.NoError(t, err)
	require.NoError(t, specs[0].Hooks.Start(context.Background()))
	assert.True(t, called)
}

func TestResolveUnknownDriver(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve([]domain.NodeSpec{{Name: "db", Driver: "nope"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestResolveMissingDriverAndHooks(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve([]domain.NodeSpec{{Name: "db"}})
	require.Error(t, err)
}

func TestResolvePropagatesFactoryError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("bad config")
	require.NoError(t, r.Register("picky", func(config map[string]string) (domain.HookSet, error) {
		return domain.HookSet{}, boom
	}))

	_, err := r.Resolve([]domain.NodeSpec{{Name: "db", Driver: "picky"}})
	require.ErrorIs(t, err, boom)
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("stub", stubFactory))

	input := []domain.NodeSpec{{Name: "db", Driver: "stub"}}
	_, err := r.Resolve(input)
	require.NoError(t, err)
	assert.Nil(t, input[0].Hooks.Start)
}
