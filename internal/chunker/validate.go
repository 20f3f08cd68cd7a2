package chunker

import "webresearch/internal/types"

// validate enforces size bounds: undersized chunks merge into a neighbour
// when the result fits MaxSize, oversized chunks are halved until they fit.
// Only the final chunk may stay below MinSize.
func (c *Chunker) validate(spans []span) []span {
	for merged := true; merged && len(spans) > 1; {
		merged = false
		for i := range spans {
			if spans[i].words() >= c.cfg.MinSize {
				continue
			}
			if i > 0 {
				if m := join(spans[i-1], spans[i]); m.words() <= c.cfg.MaxSize {
					spans[i-1] = m
					spans = append(spans[:i], spans[i+1:]...)
					merged = true
					break
				}
			}
			if i < len(spans)-1 {
				if m := join(spans[i], spans[i+1]); m.words() <= c.cfg.MaxSize {
					spans[i] = m
					spans = append(spans[:i+1], spans[i+2:]...)
					merged = true
					break
				}
			}
		}
	}

	out := make([]span, 0, len(spans))
	for _, s := range spans {
		out = c.split(out, s)
	}
	return out
}

func join(a, b span) span {
	return span{
		start:     a.start,
		end:       b.end,
		coreStart: a.coreStart,
		coreEnd:   b.coreEnd,
		method:    types.MethodMerged,
	}
}

// split appends s to out, halving it first while it exceeds MaxSize.
func (c *Chunker) split(out []span, s span) []span {
	if s.words() <= c.cfg.MaxSize {
		return append(out, s)
	}
	mid := s.start + s.words()/2
	first := span{start: s.start, end: mid, coreStart: s.start, coreEnd: mid, method: types.MethodSplit}
	second := span{start: mid, end: s.end, coreStart: mid, coreEnd: s.end, method: types.MethodSplit}
	out = c.split(out, first)
	return c.split(out, second)
}
