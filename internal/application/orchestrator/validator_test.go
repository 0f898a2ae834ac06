package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelorch/kestrel/pkg/domain"
)

func noopStart(ctx context.Context) error { return nil }

func specWithDeps(name string, deps ...domain.Dependency) domain.NodeSpec {
	return domain.NodeSpec{
		Name:      name,
		DependsOn: deps,
		Hooks:     domain.HookSet{Start: noopStart},
	}
}

func TestValidateAcceptsWellFormedSet(t *testing.T) {
	v := NewValidator()

	set, err := v.Validate([]domain.NodeSpec{
		specWithDeps("db"),
		specWithDeps("api", domain.Dependency{Name: "db"}),
	})
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	assert.Equal(t, []string{"db", "api"}, set.Names())
	assert.NotNil(t, set.Get("db"))
	assert.Nil(t, set.Get("missing"))
}

func TestValidateRejectsEmptySet(t *testing.T) {
	v := NewValidator()

	_, err := v.Validate(nil)
	require.Error(t, err)
}

func TestValidateRejectsEmptyName(t *testing.T) {
	v := NewValidator()

	_, err := v.Validate([]domain.NodeSpec{specWithDeps("")})
	require.Error(t, err)
}

func TestValidateRejectsDuplicateName(t *testing.T) {
	v := NewValidator()

	_, err := v.Validate([]domain.NodeSpec{
		specWithDeps("db"),
		specWithDeps("db"),
	})
	var dup *DuplicateNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "db", dup.Name)
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	v := NewValidator()

	_, err := v.Validate([]domain.NodeSpec{
		specWithDeps("api", domain.Dependency{Name: "db"}),
	})
	var unknown *UnknownDependencyError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "api", unknown.Node)
	assert.Equal(t, "db", unknown.Dependency)
}

func TestValidateRejectsMissingStartHook(t *testing.T) {
	v := NewValidator()

	_, err := v.Validate([]domain.NodeSpec{{Name: "db"}})
	var missing *MissingHookError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "db", missing.Node)
	assert.Equal(t, "start", missing.Hook)
}

func TestValidateDoesNotMutateInput(t *testing.T) {
	v := NewValidator()

	specs := []domain.NodeSpec{specWithDeps("db"), specWithDeps("api", domain.Dependency{Name: "db"})}
	set, err := v.Validate(specs)
	require.NoError(t, err)

	set.Get("db").Name = "mutated"
	assert.Equal(t, "db", specs[0].Name)
}
