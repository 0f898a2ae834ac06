package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelorch/kestrel/pkg/domain"
)

func buildTestGraph(t *testing.T, specs ...domain.NodeSpec) *Graph {
	t.Helper()
	set, err := NewValidator().Validate(specs)
	require.NoError(t, err)
	graph, err := BuildGraph(set)
	require.NoError(t, err)
	return graph
}

func TestGraphTopoOrderDependenciesFirst(t *testing.T) {
	graph := buildTestGraph(t,
		specWithDeps("api", domain.Dependency{Name: "db"}, domain.Dependency{Name: "cache"}),
		specWithDeps("db"),
		specWithDeps("cache", domain.Dependency{Name: "db"}),
	)

	assert.Equal(t, []string{"db", "cache", "api"}, graph.TopoOrder())
	assert.Equal(t, []string{"api", "cache", "db"}, graph.StopOrder())
}

func TestGraphTopoOrderKeepsDeclarationOrderForUnrelatedNodes(t *testing.T) {
	graph := buildTestGraph(t,
		specWithDeps("charlie"),
		specWithDeps("alpha"),
		specWithDeps("bravo"),
	)

	// No edges, so the submitted order is the start order.
	assert.Equal(t, []string{"charlie", "alpha", "bravo"}, graph.TopoOrder())
}

func TestGraphRejectsCycleWithPath(t *testing.T) {
	set, err := NewValidator().Validate([]domain.NodeSpec{
		specWithDeps("a", domain.Dependency{Name: "b"}),
		specWithDeps("b", domain.Dependency{Name: "c"}),
		specWithDeps("c", domain.Dependency{Name: "a"}),
	})
	require.NoError(t, err)

	_, err = BuildGraph(set)
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Contains(t, err.Error(), "dependency cycle detected")
	require.NotEmpty(t, cycle.Path)
	// The path is closed: it ends where it starts.
	assert.Equal(t, cycle.Path[0], cycle.Path[len(cycle.Path)-1])
	assert.GreaterOrEqual(t, len(cycle.Path), 4)
}

func TestGraphRejectsSelfDependency(t *testing.T) {
	set, err := NewValidator().Validate([]domain.NodeSpec{
		specWithDeps("a", domain.Dependency{Name: "a"}),
	})
	require.NoError(t, err)

	_, err = BuildGraph(set)
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "a"}, cycle.Path)
}

func TestGraphTransitiveHardDependents(t *testing.T) {
	graph := buildTestGraph(t,
		specWithDeps("db"),
		specWithDeps("api", domain.Dependency{Name: "db"}),
		specWithDeps("worker", domain.Dependency{Name: "api"}),
		specWithDeps("dashboard", domain.Dependency{Name: "db", Soft: true}),
	)

	// Soft dependents are not part of the failure domain.
	assert.Equal(t, []string{"api"}, graph.HardDependents("db"))
	assert.Equal(t, []string{"dashboard"}, graph.SoftDependents("db"))
	assert.Equal(t, []string{"api", "worker"}, graph.TransitiveHardDependents("db"))
	assert.Equal(t, []string{"worker"}, graph.TransitiveHardDependents("api"))
	assert.Empty(t, graph.TransitiveHardDependents("dashboard"))
}

func TestGraphDOTExport(t *testing.T) {
	graph := buildTestGraph(t,
		specWithDeps("db"),
		specWithDeps("api", domain.Dependency{Name: "db"}),
		specWithDeps("dashboard", domain.Dependency{Name: "api", Soft: true}),
	)

	dot := graph.DOT()
	assert.Contains(t, dot, "digraph kestrel")
	assert.Contains(t, dot, `label="db"`)
	assert.Contains(t, dot, `label="api"`)
	assert.Contains(t, dot, "style=dashed")
}

func TestGraphHasNode(t *testing.T) {
	graph := buildTestGraph(t, specWithDeps("db"))

	assert.True(t, graph.HasNode("db"))
	assert.False(t, graph.HasNode("api"))
}
