package pipeline

import "webresearch/internal/ranking"

// Observer receives stage-boundary progress for one ProcessContent call.
// Methods are called from the calling goroutine, in stage order, and must not
// block for long.
type Observer interface {
	OnScrapingStart(urls []string)
	OnScrapingComplete(successful, failed int)
	OnProcessingStart(documents int)
	OnChunkingComplete(totalChunks int)
	OnAnalysisStart(chunks int)
	OnAnalysisComplete(stats ranking.Stats)
	OnComplete(res *Result)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) OnScrapingStart([]string)         {}
func (NopObserver) OnScrapingComplete(int, int)      {}
func (NopObserver) OnProcessingStart(int)            {}
func (NopObserver) OnChunkingComplete(int)           {}
func (NopObserver) OnAnalysisStart(int)              {}
func (NopObserver) OnAnalysisComplete(ranking.Stats) {}
func (NopObserver) OnComplete(*Result)               {}

// ObserverFuncs adapts optional callbacks to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	ScrapingStart    func(urls []string)
	ScrapingComplete func(successful, failed int)
	ProcessingStart  func(documents int)
	ChunkingComplete func(totalChunks int)
	AnalysisStart    func(chunks int)
	AnalysisComplete func(stats ranking.Stats)
	Complete         func(res *Result)
}

func (f ObserverFuncs) OnScrapingStart(urls []string) {
	if f.ScrapingStart != nil {
		f.ScrapingStart(urls)
	}
}

func (f ObserverFuncs) OnScrapingComplete(successful, failed int) {
	if f.ScrapingComplete != nil {
		f.ScrapingComplete(successful, failed)
	}
}

func (f ObserverFuncs) OnProcessingStart(documents int) {
	if f.ProcessingStart != nil {
		f.ProcessingStart(documents)
	}
}

func (f ObserverFuncs) OnChunkingComplete(totalChunks int) {
	if f.ChunkingComplete != nil {
		f.ChunkingComplete(totalChunks)
	}
}

func (f ObserverFuncs) OnAnalysisStart(chunks int) {
	if f.AnalysisStart != nil {
		f.AnalysisStart(chunks)
	}
}

func (f ObserverFuncs) OnAnalysisComplete(stats ranking.Stats) {
	if f.AnalysisComplete != nil {
		f.AnalysisComplete(stats)
	}
}

func (f ObserverFuncs) OnComplete(res *Result) {
	if f.Complete != nil {
		f.Complete(res)
	}
}

var (
	_ Observer = NopObserver{}
	_ Observer = ObserverFuncs{}
)
