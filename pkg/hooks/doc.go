// Package hooks maps the declarative Driver field of a NodeSpec to a
// concrete HookSet. Embedders register factories by driver name; the
// protocol layer resolves submitted specs before handing them to the
// orchestrator.
package hooks
