package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// prettyHandler renders one record per line for local development.
// Production uses the JSON handler; this one is never the default.
type prettyHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	level  slog.Leveler
	source bool
	color  bool

	// preset holds already-rendered key=value fields from WithAttrs.
	preset []string
	// prefix is the dotted group path accumulated by WithGroup.
	prefix string
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, color bool) slog.Handler {
	h := &prettyHandler{mu: &sync.Mutex{}, out: w, color: color}
	if opts != nil {
		h.level = opts.Level
		h.source = opts.AddSource
	}
	return h
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.level != nil {
		min = h.level.Level()
	}
	return level >= min
}

// WithAttrs renders the attrs eagerly under the current group prefix,
// so a later WithGroup cannot retroactively requalify them.
func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	fields := h.preset[:len(h.preset):len(h.preset)]
	for _, a := range attrs {
		fields = h.renderAttr(fields, h.prefix, a)
	}
	cp.preset = fields
	return &cp
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	name = strings.TrimSpace(name)
	if name == "" {
		return h
	}
	cp := *h
	if cp.prefix == "" {
		cp.prefix = name
	} else {
		cp.prefix += "." + name
	}
	return &cp
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	line := make([]string, 0, 4+len(h.preset)+r.NumAttrs())

	when := r.Time
	if when.IsZero() {
		when = time.Now()
	}
	line = append(line,
		"ts="+h.dim(when.Format("15:04:05.000")),
		"lvl="+h.levelTag(r.Level),
		"msg="+h.bold(r.Message),
	)

	if h.source && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		if frame.File != "" {
			line = append(line, "src="+h.dim(filepath.Base(frame.File)+":"+strconv.Itoa(frame.Line)))
		}
	}

	line = append(line, h.preset...)
	r.Attrs(func(a slog.Attr) bool {
		line = h.renderAttr(line, h.prefix, a)
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.out, strings.Join(line, " "))
	return err
}

func (h *prettyHandler) renderAttr(line []string, prefix string, a slog.Attr) []string {
	a.Value = a.Value.Resolve()
	key := strings.TrimSpace(a.Key)
	if key == "" || a.Equal(slog.Attr{}) {
		return line
	}
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, member := range a.Value.Group() {
			line = h.renderAttr(line, key, member)
		}
		return line
	}
	return append(line, displayKey(key)+"="+h.renderValue(key, a.Value))
}

// Request log fields get friendlier names on the console.
var prettyKeyAliases = map[string]string{
	"status_class": "class",
	"duration_ms":  "duration",
}

func displayKey(k string) string {
	if alias, ok := prettyKeyAliases[k]; ok {
		return alias
	}
	return k
}

func (h *prettyHandler) renderValue(key string, v slog.Value) string {
	switch key {
	case "method":
		return colorizeHTTPMethod(strings.ToUpper(strings.TrimSpace(v.String())), h.color)
	case "path":
		return h.tint(ansiCyan, strings.TrimSpace(v.String()))
	case "status":
		if n, ok := asInt64(v); ok {
			return colorizeStatusCode(int(n), h.color)
		}
	case "status_class", "class":
		return colorizeStatusClass(strings.TrimSpace(v.String()), h.color)
	case "duration_ms":
		if n, ok := asInt64(v); ok {
			return colorizeDurationMS(n, h.color)
		}
	case "result":
		return colorizeResult(strings.ToLower(strings.TrimSpace(v.String())), h.color)
	}
	return quoteIfNeeded(plainValue(v))
}

func plainValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	}
	return fmt.Sprint(v.Any())
}

func asInt64(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= 1<<62 {
			return int64(u), true
		}
	case slog.KindFloat64:
		return int64(v.Float64()), true
	case slog.KindString:
		if n, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func quoteIfNeeded(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\r\n\"=") {
		return s
	}
	return strconv.Quote(s)
}

var levelTags = []struct {
	min  slog.Level
	tag  string
	tint string
}{
	{slog.LevelError, "[ERROR]", ansiRed},
	{slog.LevelWarn, "[WARN]", ansiYellow},
	{slog.LevelInfo, "[INFO]", ansiBlue},
}

func (h *prettyHandler) levelTag(level slog.Level) string {
	tag, tint := "[DEBUG]", ansiMagenta
	for _, lt := range levelTags {
		if level >= lt.min {
			tag, tint = lt.tag, lt.tint
			break
		}
	}
	if !h.color {
		return tag
	}
	return tint + tag + ansiReset
}

func (h *prettyHandler) dim(s string) string  { return h.tint(ansiDim, s) }
func (h *prettyHandler) bold(s string) string { return h.tint(ansiBright, s) }

func (h *prettyHandler) tint(code, s string) string {
	if !h.color {
		return s
	}
	return code + s + ansiReset
}
