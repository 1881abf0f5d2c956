package main

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"vidfinder/internal/pool"
)

// progressObserver draws a hashing progress bar. The bar is created on the
// first event because the total is only known once discovery finished.
type progressObserver struct {
	mu  sync.Mutex
	out io.Writer
	bar *progressbar.ProgressBar
}

func newProgressObserver(out io.Writer) *progressObserver {
	return &progressObserver{out: out}
}

func (p *progressObserver) OnFileDone(done, total int, _ pool.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription("hashing"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = p.bar.Set(done)
}

// Finish clears the bar.
func (p *progressObserver) Finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
