package aigen

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBedrockClient implements BedrockClient for testing
type mockBedrockClient struct {
	output   *bedrockruntime.ConverseOutput
	err      error
	gotInput *bedrockruntime.ConverseInput
}

func (m *mockBedrockClient) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.gotInput = params
	if m.err != nil {
		return nil, m.err
	}
	return m.output, nil
}

func TestBedrockProvider_Generate(t *testing.T) {
	t.Run("successful generation", func(t *testing.T) {
		client := &mockBedrockClient{
			output: &bedrockruntime.ConverseOutput{
				Output: &types.ConverseOutputMemberMessage{
					Value: types.Message{
						Role: types.ConversationRoleAssistant,
						Content: []types.ContentBlock{
							&types.ContentBlockMemberText{Value: "Soft rain on rooftops"},
						},
					},
				},
				Usage: &types.TokenUsage{
					InputTokens:  aws.Int32(10),
					OutputTokens: aws.Int32(20),
					TotalTokens:  aws.Int32(30),
				},
			},
		}
		provider := NewBedrockProvider(client)

		result, err := provider.Generate(context.Background(),
			NewGenerationRequest("Write a haiku about rain", "anthropic.claude-3-5-sonnet-20240620-v1:0", WithMaxTokens(256)))

		require.NoError(t, err)
		assert.Equal(t, "Soft rain on rooftops", result.Content)
		assert.Equal(t, ProviderBedrock, result.Provider)
		require.NotNil(t, result.Usage)
		assert.Equal(t, 30, result.Usage.TotalTokens)

		require.NotNil(t, client.gotInput)
		assert.Equal(t, "anthropic.claude-3-5-sonnet-20240620-v1:0", aws.ToString(client.gotInput.ModelId))
		require.NotNil(t, client.gotInput.InferenceConfig)
		assert.Equal(t, int32(256), aws.ToInt32(client.gotInput.InferenceConfig.MaxTokens))
	})

	t.Run("missing usage yields nil usage", func(t *testing.T) {
		client := &mockBedrockClient{
			output: &bedrockruntime.ConverseOutput{
				Output: &types.ConverseOutputMemberMessage{
					Value: types.Message{
						Content: []types.ContentBlock{
							&types.ContentBlockMemberText{Value: "hello"},
						},
					},
				},
			},
		}
		provider := NewBedrockProvider(client)

		result, err := provider.Generate(context.Background(),
			NewGenerationRequest("hi", "anthropic.claude-3-5-sonnet-20240620-v1:0"))

		require.NoError(t, err)
		assert.Nil(t, result.Usage)
	})

	t.Run("converse failure", func(t *testing.T) {
		client := &mockBedrockClient{err: errors.New("throttled")}
		provider := NewBedrockProvider(client)

		_, err := provider.Generate(context.Background(),
			NewGenerationRequest("hi", "anthropic.claude-3-5-sonnet-20240620-v1:0"))

		require.Error(t, err)
		assert.True(t, IsKind(err, KindGenerationFailed))
		assert.Contains(t, err.Error(), "throttled")
	})
}
