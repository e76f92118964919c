package llm_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurelmarchand/medidocs/internal/common"
	"github.com/aurelmarchand/medidocs/internal/llm"
)

// scriptedClient fails with errs[i] on call i, then succeeds.
type scriptedClient struct {
	mu    sync.Mutex
	calls int
	errs  []error
	out   string
}

func (c *scriptedClient) Complete(context.Context, llm.ChatRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	c.calls++
	if i < len(c.errs) {
		return "", c.errs[i]
	}
	return c.out, nil
}

func fastConfig() llm.GatewayConfig {
	return llm.GatewayConfig{
		MaxConcurrent: 2,
		MaxAttempts:   3,
		BackoffBase:   time.Millisecond,
		BackoffCap:    2 * time.Millisecond,
	}
}

func TestGatewayRetriesRateLimits(t *testing.T) {
	rl := &llm.StatusError{StatusCode: 429, Body: "slow down"}
	client := &scriptedClient{errs: []error{rl, rl}, out: "ok"}
	g := llm.NewGateway(client, fastConfig(), nil)

	out, err := g.Invoke(context.Background(), llm.ChatRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, client.calls)
}

func TestGatewayExhaustsAttempts(t *testing.T) {
	rl := &llm.StatusError{StatusCode: 429, Body: "slow down"}
	client := &scriptedClient{errs: []error{rl, rl, rl, rl, rl}}
	g := llm.NewGateway(client, fastConfig(), nil)

	_, err := g.Invoke(context.Background(), llm.ChatRequest{Model: "m"})
	assert.True(t, errors.Is(err, common.ErrRateLimited))
	assert.Equal(t, 3, client.calls)
}

func TestGatewayDoesNotRetryOtherErrors(t *testing.T) {
	client := &scriptedClient{errs: []error{&llm.StatusError{StatusCode: 500, Body: "boom"}}}
	g := llm.NewGateway(client, fastConfig(), nil)

	_, err := g.Invoke(context.Background(), llm.ChatRequest{Model: "m"})
	assert.True(t, errors.Is(err, common.ErrModel))
	assert.Equal(t, 1, client.calls)
}

func TestGatewayHonorsCancel(t *testing.T) {
	rl := &llm.StatusError{StatusCode: 429, Body: "slow down"}
	client := &scriptedClient{errs: []error{rl, rl, rl}}
	cfg := fastConfig()
	cfg.BackoffBase = time.Hour
	cfg.BackoffCap = time.Hour
	g := llm.NewGateway(client, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := g.Invoke(ctx, llm.ChatRequest{Model: "m"})
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Invoke did not return after cancel")
	}
	assert.Equal(t, 1, client.calls)
}

// slowClient records how many calls run at once.
type slowClient struct {
	inFlight atomic.Int32
	max      atomic.Int32
}

func (c *slowClient) Complete(context.Context, llm.ChatRequest) (string, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		cur := c.max.Load()
		if n <= cur || c.max.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return "ok", nil
}

func TestGatewayBoundsConcurrency(t *testing.T) {
	client := &slowClient{}
	cfg := fastConfig()
	cfg.MaxConcurrent = 2
	g := llm.NewGateway(client, cfg, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Invoke(context.Background(), llm.ChatRequest{Model: "m"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, client.max.Load(), int32(2))
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, llm.IsRateLimited(&llm.StatusError{StatusCode: 429}))
	assert.True(t, llm.IsRateLimited(&llm.StatusError{StatusCode: 400, Body: "Rate limit exceeded"}))
	assert.True(t, llm.IsRateLimited(errors.New("upstream said: too many requests")))
	assert.False(t, llm.IsRateLimited(&llm.StatusError{StatusCode: 500, Body: "internal"}))
	assert.False(t, llm.IsRateLimited(errors.New("connection refused")))
	assert.False(t, llm.IsRateLimited(nil))
}

func TestCleanJSONPayload(t *testing.T) {
	assert.Equal(t, `{"a":1}`, llm.CleanJSONPayload("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, llm.CleanJSONPayload("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, llm.CleanJSONPayload(`  {"a":1}  `))
	assert.Equal(t, `[1,2]`, llm.CleanJSONPayload("```json\n[1,2]\n```"))
}

func TestValidateJSONAgainstSchema(t *testing.T) {
	schema := llm.BuildPrescriptionJSONSchema()

	assert.NoError(t, llm.ValidateJSONAgainstSchema(schema, []byte(`{"medications":[]}`)))
	assert.NoError(t, llm.ValidateJSONAgainstSchema(schema, []byte(
		`{"medications":[{"name":"Doliprane","dosage":null,"page_number":"2"}]}`)))

	for _, bad := range []string{
		`{}`,
		`{"medications":{}}`,
		`{"medications":[{"name":""}]}`,
		`{"medications":[{"dosage":"500mg"}]}`,
		`not json`,
	} {
		err := llm.ValidateJSONAgainstSchema(schema, []byte(bad))
		assert.True(t, errors.Is(err, common.ErrSchemaViolation), "payload %q: got %v", bad, err)
	}
}
