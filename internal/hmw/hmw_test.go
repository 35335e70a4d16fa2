package hmw

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/sprintkit/internal/llm/llmtest"
	"github.com/apresai/sprintkit/internal/structgen"
)

const answer = "Most of my customers find us through word of mouth; the website is an afterthought they only use to check opening hours."

func TestSynthesize(t *testing.T) {
	p := &llmtest.Provider{Responses: []string{
		`{"questions": [
			{"question": "HMW turn word of mouth into referrals?", "role": "Product"},
			{"question": "HMW make the website a storefront?", "role": "technology"},
			{"question": "HMW surface opening hours instantly?", "role": "DESIGN"}
		]}`,
	}}
	s := NewSynthesizer(structgen.NewClient(p))

	questions, err := s.Synthesize(context.Background(), answer, "get more people to buy coffee online")
	require.NoError(t, err)
	require.Len(t, questions, len(Roles))

	assert.Equal(t, "product", questions[0].Role, "roles are normalized to lowercase")
	assert.Equal(t, "technology", questions[1].Role)
	assert.Equal(t, "design", questions[2].Role)
	for _, q := range questions {
		assert.Contains(t, q.Question, "HMW")
	}

	require.Equal(t, 1, p.CallCount())
	assert.Contains(t, p.Calls[0].Req.SystemPrompt, "get more people to buy coffee online")
	assert.Equal(t, answer, p.Calls[0].Req.Messages[0].Content, "the raw answer is the model input")
}

func TestSynthesize_WrongArity(t *testing.T) {
	p := &llmtest.Provider{Responses: []string{
		`{"questions": [
			{"question": "HMW one?", "role": "product"},
			{"question": "HMW two?", "role": "technology"}
		]}`,
	}}
	s := NewSynthesizer(structgen.NewClient(p))

	_, err := s.Synthesize(context.Background(), answer, "goal")
	assert.True(t, structgen.IsSchemaError(err))
}

func TestSynthesize_UnknownRole(t *testing.T) {
	p := &llmtest.Provider{Responses: []string{
		`{"questions": [
			{"question": "HMW one?", "role": "product"},
			{"question": "HMW two?", "role": "technology"},
			{"question": "HMW three?", "role": "marketing"}
		]}`,
	}}
	s := NewSynthesizer(structgen.NewClient(p))

	_, err := s.Synthesize(context.Background(), answer, "goal")
	assert.True(t, structgen.IsSchemaError(err))
}

func TestSynthesize_DuplicateRole(t *testing.T) {
	p := &llmtest.Provider{Responses: []string{
		`{"questions": [
			{"question": "HMW one?", "role": "product"},
			{"question": "HMW two?", "role": "product"},
			{"question": "HMW three?", "role": "design"}
		]}`,
	}}
	s := NewSynthesizer(structgen.NewClient(p))

	_, err := s.Synthesize(context.Background(), answer, "goal")
	assert.True(t, structgen.IsSchemaError(err))
}

func TestSynthesize_MissingHMWFraming(t *testing.T) {
	p := &llmtest.Provider{Responses: []string{
		`{"questions": [
			{"question": "How might we one?", "role": "product"},
			{"question": "HMW two?", "role": "technology"},
			{"question": "HMW three?", "role": "design"}
		]}`,
	}}
	s := NewSynthesizer(structgen.NewClient(p))

	_, err := s.Synthesize(context.Background(), answer, "goal")
	assert.True(t, structgen.IsSchemaError(err))
}

func TestSynthesize_InvocationErrorPropagates(t *testing.T) {
	boom := errors.New("rate limited")
	p := &llmtest.Provider{Err: boom}
	s := NewSynthesizer(structgen.NewClient(p))

	_, err := s.Synthesize(context.Background(), answer, "goal")
	require.Error(t, err)
	assert.True(t, structgen.IsInvocationError(err))
	assert.ErrorIs(t, err, boom)
}
