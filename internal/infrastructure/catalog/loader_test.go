package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
)

func writeDefinition(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad_BuiltinsOnly(t *testing.T) {
	catalog, err := Load("")
	require.NoError(t, err)

	def, err := catalog.GetSimulation("local-budget")
	require.NoError(t, err)
	assert.Equal(t, 40, def.MaxPossibleScore())

	def, err = catalog.GetSimulation("city-petition")
	require.NoError(t, err)
	assert.Equal(t, 45, def.MaxPossibleScore())
}

func TestLoad_FromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "recycling.json", `{
		"id": "recycling",
		"title": "Раздельный сбор",
		"description": "Организуйте раздельный сбор в доме.",
		"steps": [
			{
				"number": 1,
				"description": "С чего начать?",
				"choices": [
					{"id": "a", "text": "Договориться с УК", "points_delta": 10, "feedback": "ок", "next_step": 2},
					{"id": "b", "text": "Поставить баки самим", "points_delta": -5, "feedback": "снесут", "next_step": 2}
				]
			},
			{
				"number": 2,
				"description": "Баки установлены.",
				"choices": [
					{"id": "a", "text": "Объяснить соседям правила", "points_delta": 15, "feedback": "ок", "is_complete": true}
				]
			}
		]
	}`)

	catalog, err := Load(dir)
	require.NoError(t, err)

	def, err := catalog.GetSimulation("recycling")
	require.NoError(t, err)
	assert.Equal(t, "Раздельный сбор", def.Title)
	assert.Equal(t, 25, def.MaxPossibleScore())

	// built-ins load alongside the directory
	_, err = catalog.GetSimulation("local-budget")
	require.NoError(t, err)
}

func TestLoad_InvalidJSONIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "broken.json", `{"id": "broken",`)

	_, err := Load(dir)
	require.Error(t, err)

	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.ErrorIs(t, err, shared.ErrMalformedDefinition)
}

func TestLoad_IntegrityViolationIsFatal(t *testing.T) {
	dir := t.TempDir()
	// nextStep points backwards: the walk must never loop
	writeDefinition(t, dir, "loop.json", `{
		"id": "loop",
		"title": "Цикл",
		"description": "x",
		"steps": [
			{
				"number": 1,
				"description": "s1",
				"choices": [{"id": "a", "text": "t", "points_delta": 1, "feedback": "f", "next_step": 2}]
			},
			{
				"number": 2,
				"description": "s2",
				"choices": [{"id": "a", "text": "t", "points_delta": 1, "feedback": "f", "next_step": 1}]
			}
		]
	}`)

	_, err := Load(dir)
	assert.ErrorIs(t, err, shared.ErrMalformedDefinition)
}

func TestLoad_NonJSONFilesIgnored(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "README.md", "not a definition")

	catalog, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.Len())
}

func TestBuiltinDefinitions_AllValid(t *testing.T) {
	for _, def := range BuiltinDefinitions() {
		assert.NoError(t, def.Validate(), "definition %s", def.ID)
	}
}

func TestLoad_DuplicateOfBuiltinRejected(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "dup.json", `{
		"id": "local-budget",
		"title": "Дубликат",
		"description": "x",
		"steps": [
			{
				"number": 1,
				"description": "s1",
				"choices": [{"id": "a", "text": "t", "points_delta": 1, "feedback": "f", "is_complete": true}]
			}
		]
	}`)

	_, err := Load(dir)
	require.Error(t, err)
	var derr *shared.DomainError
	assert.ErrorAs(t, err, &derr)
}
