// Command photodiff is the Lambda function behind the diff boundary. It lists
// the bucket and answers a diff.request with a diff.result.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/openmined/photoframe/internal/blob"
	"github.com/openmined/photoframe/internal/logging"
	"github.com/openmined/photoframe/internal/remote"
)

func main() {
	if _, err := logging.Setup(logging.Options{Level: slog.LevelInfo}); err != nil {
		fmt.Fprintf(os.Stderr, "logging setup: %v\n", err)
		os.Exit(1)
	}

	handler, err := newHandler(context.Background(), os.Getenv)
	if err != nil {
		slog.Error("photodiff init", "error", err)
		os.Exit(1)
	}

	lambda.Start(handler)
}

// newHandler builds the diff handler from the function environment. The
// execution role supplies credentials.
func newHandler(ctx context.Context, getenv func(string) string) (*remote.Handler, error) {
	bucket := getenv("BUCKET_NAME")
	if bucket == "" {
		return nil, blob.ErrNoBucket
	}

	client, err := blob.NewS3ClientWithConfig(ctx, &blob.S3Config{
		BucketName:  bucket,
		Region:      getenv("AWS_REGION"),
		Endpoint:    getenv("S3_ENDPOINT"),
		MaxAttempts: blob.DefaultMaxAttempts,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("photodiff ready", "bucket", bucket)
	return remote.NewHandler(remote.NewLister(client), bucket), nil
}
