package docquery

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/theory-cloud/docquery/pkg/session"
)

var (
	// Global DB reused across warm invocations
	globalLambdaDB *DB
	lambdaErr      error
	lambdaOnce     sync.Once
)

// lambdaCleanupBuffer is kept back from the invocation deadline
const lambdaCleanupBuffer = time.Second

// LambdaInit opens the DB once per execution environment. Call it from the
// handler's init or first invocation; warm invocations get the cached DB.
//
// Inside Lambda the DynamoDB client is tuned for short lived connections
// (adaptive retries, a small keep-alive pool).
func LambdaInit(ctx context.Context, cfg *session.Config, opts ...Option) (*DB, error) {
	lambdaOnce.Do(func() {
		if cfg == nil {
			cfg = session.DefaultConfig()
		}
		if IsLambdaEnvironment() && cfg.Backend == session.BackendDynamoDB {
			tuneForLambda(cfg)
		}
		globalLambdaDB, lambdaErr = Open(ctx, cfg, opts...)
	})
	return globalLambdaDB, lambdaErr
}

func tuneForLambda(cfg *session.Config) {
	httpClient := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	if region := os.Getenv("AWS_REGION"); region != "" && cfg.Region == "" {
		cfg.Region = region
	}
	cfg.AWSConfigOptions = append(cfg.AWSConfigOptions,
		config.WithHTTPClient(httpClient),
		config.WithRetryMode(aws.RetryModeAdaptive),
	)
	cfg.DynamoDBOptions = append(cfg.DynamoDBOptions, func(o *dynamodb.Options) {
		o.RetryMode = aws.RetryModeAdaptive
	})
}

// WithLambdaTimeout derives a context that ends one second before the
// invocation deadline, leaving time to write the response
func WithLambdaTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, deadline.Add(-lambdaCleanupBuffer))
}

// IsLambdaEnvironment detects if running in AWS Lambda
func IsLambdaEnvironment() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

// GetLambdaMemoryMB returns the allocated memory in MB
func GetLambdaMemoryMB() int {
	mem, err := strconv.Atoi(os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE"))
	if err != nil {
		return 0
	}
	return mem
}

// GetRemainingTimeMillis returns milliseconds until the context deadline, or -1 without one
func GetRemainingTimeMillis(ctx context.Context) int64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return -1
	}
	return time.Until(deadline).Milliseconds()
}
