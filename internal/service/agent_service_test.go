package service

import (
	"context"
	"testing"

	"astra-chat-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm.io/datatypes"
)

func TestAgentService_SelectValidatesPublished(t *testing.T) {
	agents := &fakeAgentRepo{agents: map[uint]*model.Agent{
		1: {ID: 1, Name: "Draft", IsPublished: false},
		2: {ID: 2, Name: "Live", IsPublished: true},
	}}
	sessions := &fakeSessionRepo{}
	svc := NewAgentService(agents, sessions)

	draft := uint(1)
	assert.Error(t, svc.Select(context.Background(), 9, &draft))
	assert.Nil(t, sessions.selectedAgent)

	live := uint(2)
	require.NoError(t, svc.Select(context.Background(), 9, &live))
	require.NotNil(t, sessions.selectedAgent)
	assert.Equal(t, live, *sessions.selectedAgent)

	// nil 清除选择
	require.NoError(t, svc.Select(context.Background(), 9, nil))
	assert.Nil(t, sessions.selectedAgent)
}

func TestAgentService_Selected(t *testing.T) {
	agents := &fakeAgentRepo{agents: map[uint]*model.Agent{
		2: {ID: 2, Name: "Live", IsPublished: true},
	}}
	sessions := &fakeSessionRepo{}
	svc := NewAgentService(agents, sessions)

	agent, err := svc.Selected(context.Background(), 9)
	require.NoError(t, err)
	assert.Nil(t, agent)

	id := uint(2)
	sessions.selectedAgent = &id
	agent, err = svc.Selected(context.Background(), 9)
	require.NoError(t, err)
	require.NotNil(t, agent)
	assert.Equal(t, "Live", agent.Name)
}

func TestAgentSystemPrompt(t *testing.T) {
	a := &model.Agent{Persona: datatypes.NewJSONType(model.AgentPersona{
		SystemPrompt: "You are a pirate.",
		Metadata:     model.AgentMetadata{Instructions: "Answer in one sentence."},
	})}
	assert.Equal(t, "You are a pirate.\n\nAnswer in one sentence.", a.SystemPrompt())

	empty := &model.Agent{}
	assert.Equal(t, "", empty.SystemPrompt())

	promptOnly := &model.Agent{Persona: datatypes.NewJSONType(model.AgentPersona{SystemPrompt: "Just this."})}
	assert.Equal(t, "Just this.", promptOnly.SystemPrompt())
}
