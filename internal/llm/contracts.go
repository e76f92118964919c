package llm

import "context"

// Message is one chat turn. ImageURL, when set, attaches an image part to the
// user content (data URL or https).
type Message struct {
	Role     string
	Content  string
	ImageURL string
}

// ChatRequest is a provider-neutral completion request. Model selects between
// the vision OCR model and the text model; JSONObject constrains the response
// to a single JSON object where the provider supports it.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float32
	TopP        float32
	JSONObject  bool
}

// ChatClient is the raw provider boundary: one request, one completion,
// no throttling or retries.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// Invoker is what the pipeline and agents depend on: a ChatClient behind the
// gateway's concurrency cap, inter-call delay and retry policy.
type Invoker interface {
	Invoke(ctx context.Context, req ChatRequest) (string, error)
}
