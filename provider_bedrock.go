package aigen

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockClient defines the interface for AWS Bedrock converse operations.
type BedrockClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClientWrapper wraps bedrockruntime.Client to implement the
// BedrockClient interface.
type BedrockClientWrapper struct {
	client *bedrockruntime.Client
}

// NewBedrockClientWrapper creates a wrapper around the given Bedrock client.
func NewBedrockClientWrapper(client *bedrockruntime.Client) *BedrockClientWrapper {
	return &BedrockClientWrapper{client: client}
}

// Converse implements the BedrockClient interface.
func (w *BedrockClientWrapper) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	return w.client.Converse(ctx, params, optFns...)
}

// BedrockProvider implements GenerationProvider using AWS Bedrock.
type BedrockProvider struct {
	client BedrockClient
}

// NewBedrockProvider creates a Bedrock generation provider.
func NewBedrockProvider(client BedrockClient) *BedrockProvider {
	return &BedrockProvider{client: client}
}

// Name implements GenerationProvider.
func (p *BedrockProvider) Name() string { return ProviderBedrock }

// Generate implements GenerationProvider with a single Converse call.
func (p *BedrockProvider) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	startTime := time.Now()

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(req.ModelID),
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: req.Prompt},
				},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			Temperature: aws.Float32(float32(req.Temperature)),
			TopP:        aws.Float32(float32(req.TopP)),
			MaxTokens:   aws.Int32(int32(req.MaxTokens)),
		},
	}

	output, err := p.client.Converse(ctx, input)
	if err != nil {
		return GenerationResult{}, WrapError(KindGenerationFailed, err, "bedrock converse failed")
	}

	var content strings.Builder
	if msgOutput, ok := output.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range msgOutput.Value.Content {
			if textBlock, ok := block.(*types.ContentBlockMemberText); ok {
				content.WriteString(textBlock.Value)
			}
		}
	}

	var usage *TokenUsage
	if output.Usage != nil {
		usage = &TokenUsage{
			PromptTokens:     int(aws.ToInt32(output.Usage.InputTokens)),
			CompletionTokens: int(aws.ToInt32(output.Usage.OutputTokens)),
			TotalTokens:      int(aws.ToInt32(output.Usage.TotalTokens)),
		}
	}

	return GenerationResult{
		Content:        content.String(),
		ModelID:        req.ModelID,
		Provider:       ProviderBedrock,
		Usage:          usage,
		CompletionTime: time.Since(startTime).Seconds(),
	}, nil
}
