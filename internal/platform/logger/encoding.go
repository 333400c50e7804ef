package logger

import (
	"strings"

	"github.com/nulzo/prism-console/internal/cli"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var highlightPool = buffer.NewPool()

// highlightEncoder is a console encoder that colours the trailing JSON
// field blob of each line, e.g. the provider and rule ids attached to a
// "Rule saved" entry.
type highlightEncoder struct {
	zapcore.Encoder
}

func NewColoredConsoleEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return &highlightEncoder{Encoder: zapcore.NewConsoleEncoder(cfg)}
}

func (e *highlightEncoder) Clone() zapcore.Encoder {
	return &highlightEncoder{Encoder: e.Encoder.Clone()}
}

func (e *highlightEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	buf, err := e.Encoder.EncodeEntry(ent, fields)
	if err != nil {
		return nil, err
	}

	line := buf.String()
	// fields sit at the end of the first line; a stack trace may follow it
	head := line
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		head = line[:nl]
	}
	// JSON escapes tabs, so the last "\t{" starts the field blob
	start := strings.LastIndex(head, "\t{")
	if start < 0 || !strings.HasSuffix(head, "}") {
		return buf, nil
	}

	out := highlightPool.Get()
	out.AppendString(head[:start+1])
	out.AppendString(cli.HighlightJSON(head[start+1:]))
	out.AppendString(line[len(head):])
	buf.Free()
	return out, nil
}
