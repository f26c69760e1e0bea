package blob

import "errors"

// DefaultMaxAttempts is the retry budget used when none is configured.
const DefaultMaxAttempts = 3

var ErrNoBucket = errors.New("bucket name is required")

type S3Config struct {
	BucketName string
	Region     string
	AccessKey  string
	SecretKey  string
	// Endpoint points the client at an S3 compatible store such as MinIO.
	// Path style addressing is used when it is set.
	Endpoint    string
	MaxAttempts int
}

// WithS3Config creates a configuration for an AWS bucket. Empty keys fall back
// to the default credential chain.
func WithS3Config(bucketName, region, accessKey, secretKey string) *S3Config {
	return &S3Config{
		BucketName:  bucketName,
		Region:      region,
		AccessKey:   accessKey,
		SecretKey:   secretKey,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// WithMinioConfig creates a configuration for a MinIO bucket
func WithMinioConfig(url, bucketName, accessKey, secretKey string) *S3Config {
	return &S3Config{
		BucketName:  bucketName,
		Endpoint:    url,
		Region:      "us-east-1",
		AccessKey:   accessKey,
		SecretKey:   secretKey,
		MaxAttempts: DefaultMaxAttempts,
	}
}

func (c *S3Config) hasStaticKeys() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}
