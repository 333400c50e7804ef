package cli

import (
	"fmt"
	"io"
	"sync"
)

// Notifier prints operator notifications as marked lines.
type Notifier struct {
	mu  sync.Mutex
	out io.Writer
}

func NewNotifier(out io.Writer) *Notifier {
	return &Notifier{out: out}
}

func (n *Notifier) Success(msg string) {
	n.print(CheckMark(), msg)
}

func (n *Notifier) Error(msg string) {
	n.print(CrossMark(), msg)
}

func (n *Notifier) print(mark, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintf(n.out, "%s %s\n", mark, msg)
}
