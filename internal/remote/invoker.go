package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/goccy/go-json"
	"github.com/openmined/photoframe/internal/manifest"
)

// Invoker computes the diff between a manifest and a container.
type Invoker interface {
	Diff(ctx context.Context, current manifest.Manifest, container string) (*DiffResponse, error)
}

// ===================================================================================================

// LocalInvoker runs the diff in process through the same wire encoding the
// remote function uses.
type LocalInvoker struct {
	handler *Handler
}

func NewLocalInvoker(handler *Handler) *LocalInvoker {
	return &LocalInvoker{handler: handler}
}

func (i *LocalInvoker) Diff(ctx context.Context, current manifest.Manifest, container string) (*DiffResponse, error) {
	payload, err := EncodeRequest(NewDiffRequest(current, container))
	if err != nil {
		return nil, fmt.Errorf("encode diff request: %w", err)
	}

	out, err := i.handler.Invoke(ctx, payload)
	if err != nil {
		return nil, err
	}

	return DecodeResponse(out)
}

// ===================================================================================================

// LambdaAPI is the part of the lambda client the invoker uses.
type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

type LambdaConfig struct {
	FunctionName string
	Region       string
	AccessKey    string
	SecretKey    string
	Endpoint     string
	MaxAttempts  int
}

// LambdaInvoker calls the deployed diff function synchronously.
type LambdaInvoker struct {
	client       LambdaAPI
	functionName string
}

func NewLambdaInvoker(client LambdaAPI, functionName string) *LambdaInvoker {
	return &LambdaInvoker{
		client:       client,
		functionName: functionName,
	}
}

func NewLambdaInvokerWithConfig(ctx context.Context, cfg *LambdaConfig) (*LambdaInvoker, error) {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithRetryMaxAttempts(maxAttempts),
		config.WithHTTPClient(&http.Client{Timeout: 2 * time.Minute}),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := lambda.NewFromConfig(awsCfg, func(o *lambda.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return NewLambdaInvoker(client, cfg.FunctionName), nil
}

type functionError struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorType    string `json:"errorType"`
}

func (i *LambdaInvoker) Diff(ctx context.Context, current manifest.Manifest, container string) (*DiffResponse, error) {
	payload, err := EncodeRequest(NewDiffRequest(current, container))
	if err != nil {
		return nil, fmt.Errorf("encode diff request: %w", err)
	}

	slog.Debug("invoking diff function", "function", i.functionName, "entries", len(current))
	out, err := i.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(i.functionName),
		InvocationType: types.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: invoke %s: %w", ErrRemoteUnavailable, i.functionName, err)
	}

	if out.FunctionError != nil {
		var fnErr functionError
		if err := json.Unmarshal(out.Payload, &fnErr); err != nil || fnErr.ErrorMessage == "" {
			fnErr.ErrorMessage = "unknown error"
		}
		return nil, fmt.Errorf("%w: function %s: %s", ErrRemoteUnavailable, i.functionName, fnErr.ErrorMessage)
	}

	return DecodeResponse(out.Payload)
}

var (
	_ Invoker = (*LocalInvoker)(nil)
	_ Invoker = (*LambdaInvoker)(nil)
)
