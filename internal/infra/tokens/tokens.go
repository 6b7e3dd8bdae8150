package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"audio-notes-pipeline/internal/domain/ports/adapter"
)

var _ adapter.TokenCounter = (*Estimator)(nil)

const encodingName = "cl100k_base"

// Estimator counts tokens with tiktoken. When the encoding cannot be loaded
// (offline, no cache) it falls back to one token per four bytes.
type Estimator struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	load func() (*tiktoken.Tiktoken, error)
}

func NewEstimator() *Estimator {
	return &Estimator{load: func() (*tiktoken.Tiktoken, error) { return tiktoken.GetEncoding(encodingName) }}
}

func (e *Estimator) Count(text string) int {
	e.once.Do(func() {
		if enc, err := e.load(); err == nil {
			e.enc = enc
		}
	})
	if e.enc == nil {
		return Approximate(text)
	}
	return len(e.enc.Encode(text, nil, nil))
}

// Approximate is the byte based estimate used without an encoding.
func Approximate(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
