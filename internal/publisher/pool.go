package publisher

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/NissesSenap/tweet-pipeline/internal/logging"
)

// Stdin is the file name that reads standard input.
const Stdin = "-"

// LinePublisher publishes the lines of a reader.
type LinePublisher interface {
	PublishLines(ctx context.Context, r io.Reader) (int, error)
}

// FilePool publishes several files concurrently
type FilePool struct {
	files     []string
	semaphore chan struct{}
	errors    map[string]error
	mu        sync.Mutex
	logger    *zap.Logger

	stdin io.Reader
}

// NewFilePool creates a pool publishing at most maxConcurrent files at
// once.
func NewFilePool(files []string, maxConcurrent int, logger *zap.Logger) *FilePool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &FilePool{
		files:     files,
		semaphore: make(chan struct{}, maxConcurrent),
		errors:    make(map[string]error),
		logger:    logging.OrNop(logger),
		stdin:     os.Stdin,
	}
}

// PublishAll publishes every file and returns the total number of
// messages published.
//
// A failing file does not stop the others: its error is kept (see Errors)
// and PublishAll returns an error counting the failed files once all of
// them were attempted.
func (p *FilePool) PublishAll(ctx context.Context, pub LinePublisher) (int, error) {
	var wg sync.WaitGroup
	var total atomic.Int64

	for _, file := range p.files {
		wg.Add(1)

		go func(name string) {
			defer wg.Done()

			// Acquire semaphore to limit concurrent files
			p.semaphore <- struct{}{}
			defer func() { <-p.semaphore }()

			n, err := p.publishFile(ctx, pub, name)
			total.Add(int64(n))
			if err != nil {
				p.mu.Lock()
				p.errors[name] = err
				p.mu.Unlock()
				p.logger.Error("Failed to publish file", zap.String("file", name), zap.Int("published", n), zap.Error(err))
				return
			}
			p.logger.Info("Published file", zap.String("file", name), zap.Int("messages", n))
		}(file)
	}

	wg.Wait()

	if len(p.errors) > 0 {
		return int(total.Load()), fmt.Errorf("failed to publish %d files", len(p.errors))
	}
	return int(total.Load()), nil
}

func (p *FilePool) publishFile(ctx context.Context, pub LinePublisher, name string) (int, error) {
	if name == Stdin {
		return pub.PublishLines(ctx, p.stdin)
	}

	f, err := os.Open(name)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return pub.PublishLines(ctx, f)
}

// Errors returns a copy of the errors map for inspection
func (p *FilePool) Errors() map[string]error {
	p.mu.Lock()
	defer p.mu.Unlock()

	errorsCopy := make(map[string]error, len(p.errors))
	for k, v := range p.errors {
		errorsCopy[k] = v
	}
	return errorsCopy
}
