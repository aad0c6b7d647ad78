package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewkit/reviewkit/internal/models"
)

const sampleCode = "func add(a, b int) int { return a + b }"

func TestBuild_Deterministic(t *testing.T) {
	for _, tech := range models.Techniques() {
		sys1, user1, err := Build(tech, "go", sampleCode)
		require.NoError(t, err)
		sys2, user2, err := Build(tech, "go", sampleCode)
		require.NoError(t, err)

		assert.Equal(t, sys1, sys2, "system prompt should be deterministic for %s", tech)
		assert.Equal(t, user1, user2, "user prompt should be deterministic for %s", tech)
	}
}

func TestBuild_IncludesCodeAndLanguage(t *testing.T) {
	for _, tech := range models.Techniques() {
		_, user, err := Build(tech, "python", "print('hi')")
		require.NoError(t, err)
		assert.Contains(t, user, "```python")
		assert.Contains(t, user, "print('hi')")
	}
}

func TestBuild_UnknownTechnique(t *testing.T) {
	_, _, err := Build(models.Technique("mystery"), "go", sampleCode)
	assert.ErrorContains(t, err, "unknown technique")
}

func TestBuild_TechniquesDiffer(t *testing.T) {
	_, zero, err := Build(models.TechniqueZeroShot, "go", sampleCode)
	require.NoError(t, err)
	_, few, err := Build(models.TechniqueFewShot, "go", sampleCode)
	require.NoError(t, err)
	_, cot, err := Build(models.TechniqueCoT, "go", sampleCode)
	require.NoError(t, err)

	assert.NotEqual(t, zero, few)
	assert.NotEqual(t, zero, cot)
	assert.Contains(t, few, "Example 1:")
	assert.Contains(t, cot, "step by step")
}

func TestBuildRAG(t *testing.T) {
	user := BuildRAG("go", sampleCode, "## Guideline 1: Error handling (general)\nAlways check errors.")
	assert.Contains(t, user, "RELEVANT CODING GUIDELINES:")
	assert.Contains(t, user, "Always check errors.")
	assert.Contains(t, user, "guidelines_used")
	assert.True(t, strings.Contains(user, "```go"))
}
