package chunker

import (
	"context"

	"webresearch/internal/types"

	"golang.org/x/sync/errgroup"
)

// Input is one document queued for chunking.
type Input struct {
	Content     string
	Title       string
	URL         string
	SourceIndex int
}

// ChunkAll chunks every input concurrently. The result at i belongs to
// inputs[i]; a document that fails or is cancelled gets an empty chunk list
// with Error set.
func (c *Chunker) ChunkAll(ctx context.Context, inputs []Input) []types.ChunkedContent {
	results := make([]types.ChunkedContent, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	if c.cfg.MaxParallel > 0 {
		g.SetLimit(c.cfg.MaxParallel)
	}
	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = types.ChunkedContent{Error: err.Error()}
				return nil
			}
			results[i] = c.Chunk(in.Content, in.Title, in.URL, in.SourceIndex)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
