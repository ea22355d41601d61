package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	smithydoc "github.com/aws/smithy-go/document"
)

// ErrNoFlowOutput is returned when a flow stream ends without an output event.
var ErrNoFlowOutput = errors.New("flow produced no output event")

// LoadAWSConfig resolves credentials from the default chain for region.
// Clients built from it make a single attempt per call.
func LoadAWSConfig(ctx context.Context, region, profile string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithRetryMaxAttempts(1),
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// BedrockFlow runs prompts through a Bedrock prompt flow.
type BedrockFlow struct {
	client     *bedrockagentruntime.Client
	flowID     string
	aliasID    string
	inputNode  string
	outputName string
	logger     *slog.Logger
}

type BedrockFlowConfig struct {
	AWS        aws.Config
	FlowID     string
	AliasID    string
	InputNode  string // default "FlowInputNode"
	OutputName string // default "document"
	Logger     *slog.Logger
}

func NewBedrockFlow(cfg BedrockFlowConfig) *BedrockFlow {
	if cfg.InputNode == "" {
		cfg.InputNode = "FlowInputNode"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "document"
	}
	return &BedrockFlow{
		client:     bedrockagentruntime.NewFromConfig(cfg.AWS),
		flowID:     cfg.FlowID,
		aliasID:    cfg.AliasID,
		inputNode:  cfg.InputNode,
		outputName: cfg.OutputName,
		logger:     cfg.Logger,
	}
}

func (f *BedrockFlow) Name() string { return "bedrock-flow" }

func (f *BedrockFlow) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := f.client.InvokeFlow(ctx, &bedrockagentruntime.InvokeFlowInput{
		FlowIdentifier:      aws.String(f.flowID),
		FlowAliasIdentifier: aws.String(f.aliasID),
		Inputs: []types.FlowInput{{
			NodeName:       aws.String(f.inputNode),
			NodeOutputName: aws.String(f.outputName),
			Content:        &types.FlowInputContentMemberDocument{Value: document.NewLazyDocument(prompt)},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("invoke flow %s: %w", f.flowID, err)
	}
	stream := out.GetStream()
	defer stream.Close()

	text, err := collectFlowOutput(stream.Events())
	if err != nil {
		return "", err
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("flow stream: %w", err)
	}
	return text, nil
}

// collectFlowOutput returns the first output document in the stream. The
// channel is drained so the stream can shut down cleanly.
func collectFlowOutput(events <-chan types.FlowResponseStream) (string, error) {
	var (
		text  string
		found bool
	)
	for ev := range events {
		out, ok := ev.(*types.FlowResponseStreamMemberFlowOutputEvent)
		if !ok || found {
			continue
		}
		doc, ok := out.Value.Content.(*types.FlowOutputContentMemberDocument)
		if !ok || doc.Value == nil {
			continue
		}
		var v any
		if err := doc.Value.UnmarshalSmithyDocument(&v); err != nil {
			return "", fmt.Errorf("decode flow output: %w", err)
		}
		s, err := documentText(v)
		if err != nil {
			return "", err
		}
		text, found = s, true
	}
	if !found {
		return "", ErrNoFlowOutput
	}
	return text, nil
}

// documentText returns string documents as-is and re-encodes anything else
// as JSON text.
func documentText(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(jsonNumbers(v))
	if err != nil {
		return "", fmt.Errorf("encode flow output: %w", err)
	}
	return string(data), nil
}

// jsonNumbers converts smithy document numbers, which marshal as strings,
// into json.Number.
func jsonNumbers(v any) any {
	switch t := v.(type) {
	case smithydoc.Number:
		return json.Number(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = jsonNumbers(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = jsonNumbers(e)
		}
		return out
	}
	return v
}

// BedrockAgent invokes one Bedrock Agent alias.
type BedrockAgent struct {
	client  *bedrockagentruntime.Client
	name    string
	agentID string
	aliasID string
	logger  *slog.Logger
}

type BedrockAgentConfig struct {
	AWS     aws.Config
	Name    string
	AgentID string
	AliasID string
	Logger  *slog.Logger
}

func NewBedrockAgent(cfg BedrockAgentConfig) *BedrockAgent {
	return &BedrockAgent{
		client:  bedrockagentruntime.NewFromConfig(cfg.AWS),
		name:    cfg.Name,
		agentID: cfg.AgentID,
		aliasID: cfg.AliasID,
		logger:  cfg.Logger,
	}
}

func (a *BedrockAgent) Name() string { return a.name }

func (a *BedrockAgent) Invoke(ctx context.Context, sessionID, input string) (string, error) {
	out, err := a.client.InvokeAgent(ctx, &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(a.agentID),
		AgentAliasId: aws.String(a.aliasID),
		SessionId:    aws.String(sessionID),
		InputText:    aws.String(input),
	})
	if err != nil {
		return "", fmt.Errorf("invoke agent %s: %w", a.agentID, err)
	}
	stream := out.GetStream()
	defer stream.Close()

	text := collectAgentChunks(stream.Events())
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("agent stream: %w", err)
	}
	return text, nil
}

// collectAgentChunks concatenates every chunk payload in order.
func collectAgentChunks(events <-chan types.ResponseStream) string {
	var sb strings.Builder
	for ev := range events {
		if chunk, ok := ev.(*types.ResponseStreamMemberChunk); ok {
			sb.Write(chunk.Value.Bytes)
		}
	}
	return strings.TrimSpace(sb.String())
}
