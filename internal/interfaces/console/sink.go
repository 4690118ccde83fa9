package console

import (
	"fmt"
	"io"
	"sync"
	"time"

	"fundarb/internal/application/port"
)

// Sink 终端输出，live 行原地覆盖，快照行追加
type Sink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSink(w io.Writer) port.Sink { return &Sink{w: w} }

func (s *Sink) WriteLive(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprint(s.w, line) // no newline
	return err
}

// 打印快照行后留一个空行，等下一次 live 刷新
func (s *Sink) WriteSnapshot(ts time.Time, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "\n%s %s\n\n", ts.Format("2006-01-02 15:04:05"), line)
	return err
}

func (s *Sink) NewLine() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprint(s.w, "\n")
	return err
}
