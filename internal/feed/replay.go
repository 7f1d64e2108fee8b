package feed

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gpsbench/dragtimer/internal/timeutil"
)

// Replayer plays back a recorded NMEA log as a Porter, emitting one line per
// interval. It stands in for live hardware during development and lets a
// captured drive be re-run through the pipeline deterministically. The
// Replayer owns src: when src is also an io.Closer it is closed once replay
// ends, whichever side finishes first.
type Replayer struct {
	pr  *io.PipeReader
	pw  *io.PipeWriter
	src io.Reader

	closeSrc sync.Once
}

// NewReplayer starts replaying lines from src, pacing one line per interval
// on the given clock. The returned Replayer reads the paced stream; replay
// stops when src is exhausted or the Replayer is closed.
func NewReplayer(src io.Reader, interval time.Duration, clock timeutil.Clock) *Replayer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	pr, pw := io.Pipe()
	r := &Replayer{pr: pr, pw: pw, src: src}

	go func() {
		defer r.closeSource()
		scan := bufio.NewScanner(src)
		for scan.Scan() {
			clock.Sleep(interval)
			if _, err := fmt.Fprintf(pw, "%s\n", scan.Text()); err != nil {
				// Reader side closed, stop replaying.
				return
			}
		}
		pw.CloseWithError(scan.Err())
	}()

	return r
}

func (r *Replayer) closeSource() {
	r.closeSrc.Do(func() {
		if c, ok := r.src.(io.Closer); ok {
			c.Close()
		}
	})
}

func (r *Replayer) Read(p []byte) (int, error) {
	return r.pr.Read(p)
}

// Write always fails: a recorded log cannot accept receiver commands.
func (r *Replayer) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("replay feed is read-only")
}

func (r *Replayer) Close() error {
	r.closeSource()
	r.pw.Close()
	return r.pr.Close()
}
