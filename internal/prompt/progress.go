package prompt

import (
	"io"
	"math"

	"gopkg.in/cheggaaa/pb.v1"
)

// Progress renders mining progress as a bar over the round cap.
type Progress struct {
	out io.Writer
	bar *pb.ProgressBar
}

func NewProgress(out io.Writer) *Progress {
	return &Progress{out: out}
}

func (p *Progress) Start(round uint64) {
	total := int64(0)
	if round <= math.MaxInt64 {
		total = int64(round)
	}
	bar := pb.New64(total)
	bar.Output = p.out
	bar.ShowPercent = total > 0
	bar.ShowTimeLeft = total > 0
	bar.ShowSpeed = true
	bar.Prefix("mining ")
	p.bar = bar.Start()
}

func (p *Progress) Step() {
	if p.bar != nil {
		p.bar.Increment()
	}
}

func (p *Progress) Done(bool) {
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}
