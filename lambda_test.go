package docquery_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/docquery"
)

func TestLambdaEnvironmentHelpers(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	t.Setenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE", "")
	assert.False(t, docquery.IsLambdaEnvironment())
	assert.Equal(t, 0, docquery.GetLambdaMemoryMB())

	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "docquery-api")
	t.Setenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE", "1024")
	assert.True(t, docquery.IsLambdaEnvironment())
	assert.Equal(t, 1024, docquery.GetLambdaMemoryMB())

	t.Setenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE", "lots")
	assert.Equal(t, 0, docquery.GetLambdaMemoryMB())
}

func TestWithLambdaTimeout(t *testing.T) {
	assert.Equal(t, int64(-1), docquery.GetRemainingTimeMillis(context.Background()))

	ctx, cancel := docquery.WithLambdaTimeout(context.Background())
	_, hasDeadline := ctx.Deadline()
	assert.False(t, hasDeadline)
	cancel()

	deadline := time.Now().Add(10 * time.Second)
	parent, parentCancel := context.WithDeadline(context.Background(), deadline)
	defer parentCancel()

	ctx, cancel = docquery.WithLambdaTimeout(parent)
	defer cancel()
	adjusted, ok := ctx.Deadline()
	require.True(t, ok)
	assert.Equal(t, deadline.Add(-time.Second), adjusted)

	remaining := docquery.GetRemainingTimeMillis(ctx)
	assert.Greater(t, remaining, int64(8000))
	assert.LessOrEqual(t, remaining, int64(9000))
}

func TestLambdaInitReusesDB(t *testing.T) {
	first, err := docquery.LambdaInit(context.Background(), nil)
	require.NoError(t, err)
	second, err := docquery.LambdaInit(context.Background(), nil)
	require.NoError(t, err)
	assert.Same(t, first, second)
}
