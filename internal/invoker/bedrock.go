package invoker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
)

// DefaultBedrockModel is used when no model ID is configured.
const DefaultBedrockModel = "anthropic.claude-3-haiku-20240307-v1:0"

const defaultMaxTokens = 4096

// Bedrock invokes models through the Bedrock Converse API. The request's
// static segment is followed by a cache point block so the backend caches
// the shared document context across tasks.
type Bedrock struct {
	client    *bedrockruntime.Client
	modelID   string
	maxTokens int32
}

// Compile-time check that Bedrock implements Invoker.
var _ Invoker = (*Bedrock)(nil)

// NewBedrock creates a Bedrock invoker using the default AWS credential
// chain. If modelID is empty, DefaultBedrockModel is used.
func NewBedrock(ctx context.Context, modelID string) (*Bedrock, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if modelID == "" {
		modelID = DefaultBedrockModel
	}
	return &Bedrock{
		client:    bedrockruntime.NewFromConfig(cfg),
		modelID:   modelID,
		maxTokens: defaultMaxTokens,
	}, nil
}

// Model returns the configured Bedrock model ID.
func (b *Bedrock) Model() string {
	return b.modelID
}

// Invoke sends one Converse call and returns the model text plus token
// usage. Throttling and timeout errors are mapped onto the package
// sentinels.
func (b *Bedrock) Invoke(ctx context.Context, req Request) (*Response, error) {
	content := make([]types.ContentBlock, 0, len(req.Images)+3)
	for _, img := range req.Images {
		content = append(content, &types.ContentBlockMemberImage{
			Value: types.ImageBlock{
				Format: types.ImageFormatPng,
				Source: &types.ImageSourceMemberBytes{Value: img},
			},
		})
	}
	content = append(content,
		&types.ContentBlockMemberText{Value: req.Static},
		&types.ContentBlockMemberCachePoint{
			Value: types.CachePointBlock{Type: types.CachePointTypeDefault},
		},
		&types.ContentBlockMemberText{Value: req.Dynamic},
	)

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(b.modelID),
		Messages: []types.Message{
			{Role: types.ConversationRoleUser, Content: content},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(b.maxTokens),
			Temperature: aws.Float32(0),
		},
	}
	if req.System != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}

	out, err := b.client.Converse(ctx, input)
	if err != nil {
		return nil, wrapConverseError(err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("unexpected converse output %T", out.Output)
	}
	var text strings.Builder
	for _, block := range msg.Value.Content {
		if t, ok := block.(*types.ContentBlockMemberText); ok {
			text.WriteString(t.Value)
		}
	}

	resp := &Response{Text: text.String()}
	if out.Usage != nil {
		resp.InputTokens = int64(aws.ToInt32(out.Usage.InputTokens))
		resp.OutputTokens = int64(aws.ToInt32(out.Usage.OutputTokens))
	}
	return resp, nil
}

// wrapConverseError maps Bedrock error types onto the package sentinels so
// the scheduler can classify them with errors.Is. Unknown API errors keep
// their error code in the message.
func wrapConverseError(err error) error {
	if err == nil {
		return nil
	}

	var throttled *types.ThrottlingException
	if errors.As(err, &throttled) {
		return fmt.Errorf("%w: %s", ErrThrottled, aws.ToString(throttled.Message))
	}
	var unavailable *types.ServiceUnavailableException
	if errors.As(err, &unavailable) {
		return fmt.Errorf("%w: %s", ErrThrottled, aws.ToString(unavailable.Message))
	}
	var notReady *types.ModelNotReadyException
	if errors.As(err, &notReady) {
		return fmt.Errorf("%w: %s", ErrThrottled, aws.ToString(notReady.Message))
	}
	var timedOut *types.ModelTimeoutException
	if errors.As(err, &timedOut) {
		return fmt.Errorf("%w: %s", ErrTimeout, aws.ToString(timedOut.Message))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("converse %s: %w", apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("converse: %w", err)
}
