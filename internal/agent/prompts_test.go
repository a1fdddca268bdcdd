package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

func TestBuildPlanMessages(t *testing.T) {
	msgs := buildPlanMessages(promptInput{
		EndGoal:           "subscribe to the newsletter",
		MaxActionsPerTask: 4,
		PageURL:           "https://example.com",
		History:           `{"tasks":[]}`,
		DOMState:          "[0]<input placeholder=\"email\">",
		Screenshot:        []byte("png"),
	})

	require.Len(t, msgs, 2)
	assert.Equal(t, schemas.RoleSystem, msgs[0].Role)
	system := msgs[0].Parts[0].Text
	assert.Contains(t, system, "at most 4 actions")
	for _, name := range schemas.ActionNames {
		assert.Contains(t, system, string(name), "every action is documented")
	}

	assert.Equal(t, schemas.RoleUser, msgs[1].Role)
	require.Len(t, msgs[1].Parts, 2)
	user := msgs[1].Parts[0].Text
	assert.Contains(t, user, "End Goal: subscribe to the newsletter")
	assert.Contains(t, user, "Current URL: https://example.com")
	assert.Contains(t, user, `[0]<input placeholder="email">`)
	assert.NotContains(t, user, "No screenshot")
	assert.Equal(t, []byte("png"), msgs[1].Parts[1].ImagePNG)
}

func TestBuildPlanMessages_WithoutContext(t *testing.T) {
	msgs := buildPlanMessages(promptInput{EndGoal: "g", MaxActionsPerTask: 3})

	require.Len(t, msgs[1].Parts, 1)
	user := msgs[1].Parts[0].Text
	assert.Contains(t, user, "Current URL: unknown")
	assert.Contains(t, user, "Task History (JSON):\n[]")
	assert.Contains(t, user, "No screenshot is available")
}
