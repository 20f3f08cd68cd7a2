package cleaner

import (
	"context"

	"webresearch/internal/logging"
	"webresearch/internal/types"

	"golang.org/x/sync/errgroup"
)

// Result is the cleaning outcome for one scraped document.
type Result struct {
	Index    int // position in the input slice
	Document types.CleanedDocument
	Err      error
	FellBack bool // Document holds the raw text because cleaning failed
}

// CleanAll cleans every successful document concurrently. Failed scrapes are
// skipped; a document that cannot be cleaned keeps its raw text.
func (c *Cleaner) CleanAll(ctx context.Context, docs []types.ScrapedDocument) []Result {
	var idx []int
	for i, d := range docs {
		if d.Success {
			idx = append(idx, i)
		}
	}
	results := make([]Result, len(idx))

	g, gctx := errgroup.WithContext(ctx)
	if c.cfg.MaxParallel > 0 {
		g.SetLimit(c.cfg.MaxParallel)
	}
	for slot, i := range idx {
		g.Go(func() error {
			doc := docs[i]
			if gctx.Err() != nil {
				results[slot] = Fallback(i, doc, gctx.Err())
				return nil
			}
			cleaned, err := c.Clean(doc.RawContent, doc.Title, doc.URL)
			if err != nil {
				logging.CleanerWarn("Using raw content for %s: %v", doc.URL, err)
				results[slot] = Fallback(i, doc, err)
				return nil
			}
			results[slot] = Result{Index: i, Document: cleaned}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Fallback wraps the raw scraped text as a cleaned document.
func Fallback(index int, doc types.ScrapedDocument, err error) Result {
	n := len([]rune(doc.RawContent))
	return Result{
		Index: index,
		Document: types.CleanedDocument{
			Content:        doc.RawContent,
			OriginalLength: n,
			CleanedLength:  n,
		},
		Err:      err,
		FellBack: true,
	}
}
