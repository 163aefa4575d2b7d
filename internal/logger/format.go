package logger

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Format expands the placeholders of s for a message at the given level.
// Substitution is a single left-to-right pass, so the "%" produced by "%%"
// is never combined with the following character into a new placeholder.
func (l *Logger) Format(level Level, s string) string {
	now := l.now()
	r := strings.NewReplacer(
		"%%", "%",
		"%D", now.Format(dateLayout),
		"%T", now.Format(timeLayout),
		"%N", l.cfg.Name,
		"%L", level.String(),
	)
	return r.Replace(s)
}

// lineFormatter renders an already expanded message, optionally wrapped in
// the color of its level.
type lineFormatter struct {
	color bool
}

func (f *lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder
	if f.color {
		b.WriteString(levelColors[fromLogrus(entry.Level)])
		b.WriteString(entry.Message)
		b.WriteString(colorReset)
	} else {
		b.WriteString(entry.Message)
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}
