package logging

import (
	"context"
	"log/slog"
	"slices"
	"time"
)

// Standard attribute keys. The console handler promotes component and run_id
// into the line prefix; everything else is rendered as key=value.
const (
	FieldComponent    = "component"
	FieldRunID        = "run_id"
	FieldEventType    = "event_type"
	FieldErrorHint    = "error_hint"
	FieldImpact       = "impact"
	FieldDecisionType = "decision_type"
	FieldListingCode  = "listing_code"
	FieldQuery        = "query"
)

type Attr = slog.Attr

func Bool(key string, value bool) Attr              { return slog.Bool(key, value) }
func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }
func Float64(key string, value float64) Attr        { return slog.Float64(key, value) }
func Int(key string, value int) Attr                { return slog.Int(key, value) }
func Int64(key string, value int64) Attr            { return slog.Int64(key, value) }
func String(key, value string) Attr                 { return slog.String(key, value) }
func Strings(key string, values []string) Attr      { return slog.Any(key, values) }

// Error records err under the "error" key.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// Args converts attributes into the variadic form slog.Logger methods accept.
func Args(attrs ...Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(discardHandler{})
}

// NewComponentLogger tags logger with a component name. A nil logger yields
// a no-op logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

var warnDefaults = []Attr{
	String(FieldErrorHint, "check logs for details"),
	String(FieldImpact, "run continues with partial results"),
}

// WarnWithContext logs a warning that always carries event_type, error_hint
// and impact. Missing keys get generic defaults.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	out := append(make([]Attr, 0, len(attrs)+3), attrs...)
	if !hasKey(out, FieldEventType) {
		out = append(out, String(FieldEventType, eventType))
	}
	for _, def := range warnDefaults {
		if !hasKey(out, def.Key) {
			out = append(out, def)
		}
	}
	logger.Warn(msg, Args(out...)...)
}

// DecisionAttrs describes one matching decision.
func DecisionAttrs(decisionType, result, reason string) []Attr {
	return []Attr{
		String(FieldDecisionType, decisionType),
		String("decision_result", result),
		String("decision_reason", reason),
	}
}

func hasKey(attrs []Attr, key string) bool {
	return slices.ContainsFunc(attrs, func(a Attr) bool { return a.Key == key })
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
