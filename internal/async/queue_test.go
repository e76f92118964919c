package async_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurelmarchand/medidocs/internal/async"
	"github.com/aurelmarchand/medidocs/internal/common"
	"github.com/aurelmarchand/medidocs/internal/core"
	"github.com/aurelmarchand/medidocs/internal/repository"
)

const queueTemplate = `categories:
  - category: patient_information
    version: v1
    fields:
      - field: patient_name
        description: Full name of the patient
`

func newTestProcessor(t *testing.T) (*core.Processor, repository.DocumentRepository) {
	t.Helper()
	ctx := context.Background()

	db, err := repository.Open(ctx, repository.Config{DSN: "file::memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.EnsureSchema(ctx))

	tmplPath := filepath.Join(t.TempDir(), "fields.yaml")
	require.NoError(t, os.WriteFile(tmplPath, []byte(queueTemplate), 0o644))

	cfg := &common.Config{
		Mistral: common.MistralConfig{
			APIKey:  "test-key",
			BaseURL: "http://127.0.0.1:1",
			Timeout: time.Second,
		},
		Pipeline: common.PipelineConfig{
			MaxConcurrent: 1,
			MaxAttempts:   1,
			BackoffBase:   time.Millisecond,
			BackoffCap:    time.Millisecond,
			RenderZoom:    2,
		},
		Template: common.TemplateConfig{Path: tmplPath, Version: "v1"},
	}
	proc, err := core.NewProcessor(db, cfg, nil)
	require.NoError(t, err)
	return proc, repository.NewDocumentRepository(db, nil)
}

func TestQueueDrainsBadJobs(t *testing.T) {
	proc, docs := newTestProcessor(t)
	q := async.NewDocumentQueue(proc, nil,
		async.WithWorkers(1),
		async.WithQueueSize(4),
		async.WithProcessTimeout(2*time.Second),
	)

	dir := t.TempDir()
	junk := filepath.Join(dir, "junk.bin")
	require.NoError(t, os.WriteFile(junk, []byte("not a pdf"), 0o644))

	// one missing file, one non-PDF; both fail inside the worker
	require.NoError(t, q.Enqueue(context.Background(), async.Job{
		Path: filepath.Join(dir, "missing.pdf"), Filename: "missing.pdf",
	}))
	require.NoError(t, q.Enqueue(context.Background(), async.Job{
		Path: junk, Filename: "junk.bin",
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	list, err := docs.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)

	// shutdown is idempotent, and enqueue after shutdown is a no-op
	q.Shutdown(ctx)
	assert.NoError(t, q.Enqueue(context.Background(), async.Job{Filename: "late.pdf"}))
}
