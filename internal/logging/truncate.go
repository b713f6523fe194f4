package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MaxMessageLen is the number of characters kept before a message is cut.
const MaxMessageLen = 125

const ellipsis = " ..."

// Truncate shortens msg to n characters followed by " ..." when it is longer.
func Truncate(msg string, n int) string {
	r := []rune(msg)
	if len(r) <= n {
		return msg
	}
	return string(r[:n]) + ellipsis
}

type truncatingCore struct {
	zapcore.Core
	limit int
}

// NewTruncatingCore wraps core so that entry messages and error fields are
// truncated to limit characters.
func NewTruncatingCore(core zapcore.Core, limit int) zapcore.Core {
	return &truncatingCore{Core: core, limit: limit}
}

func (c *truncatingCore) With(fields []zapcore.Field) zapcore.Core {
	return &truncatingCore{Core: c.Core.With(c.shorten(fields)), limit: c.limit}
}

func (c *truncatingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *truncatingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = Truncate(ent.Message, c.limit)
	return c.Core.Write(ent, c.shorten(fields))
}

func (c *truncatingCore) shorten(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		if f.Type == zapcore.ErrorType {
			if err, ok := f.Interface.(error); ok && err != nil {
				out[i] = zap.String(f.Key, Truncate(err.Error(), c.limit))
				continue
			}
		}
		out[i] = f
	}
	return out
}
