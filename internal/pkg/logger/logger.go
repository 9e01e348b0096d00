package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Logger is a key/value wrapper over zap's sugared logger. Every field goes
// through the redactor before it reaches the sink.
type Logger struct {
	SugaredLogger *zap.SugaredLogger
	redact        *redactor
}

type Options struct {
	// Mode is "production", "development" or "test".
	Mode string
	// Redact masks secrets and raw coordinates and hashes user ids.
	Redact bool
	// HashSalt is mixed into hashed ids so they cannot be joined across
	// deployments.
	HashSalt string
}

// New builds a redacting logger for mode.
func New(mode string) (*Logger, error) {
	return NewWithOptions(Options{Mode: mode, Redact: true})
}

func NewWithOptions(opts Options) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(opts.Mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "test", "nop":
		return Nop(), nil
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	var r *redactor
	if opts.Redact {
		r = &redactor{salt: strings.TrimSpace(opts.HashSalt)}
	}
	return &Logger{SugaredLogger: zl.Sugar(), redact: r}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, kv ...any) { l.SugaredLogger.Debugw(msg, l.redact.fields(kv)...) }
func (l *Logger) Info(msg string, kv ...any)  { l.SugaredLogger.Infow(msg, l.redact.fields(kv)...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.SugaredLogger.Warnw(msg, l.redact.fields(kv)...) }
func (l *Logger) Error(msg string, kv ...any) { l.SugaredLogger.Errorw(msg, l.redact.fields(kv)...) }
func (l *Logger) Fatal(msg string, kv ...any) { l.SugaredLogger.Fatalw(msg, l.redact.fields(kv)...) }

func (l *Logger) With(kv ...any) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(l.redact.fields(kv)...), redact: l.redact}
}

const redacted = "[REDACTED]"

// redactor rewrites log fields. A nil redactor passes fields through.
type redactor struct {
	salt string
}

func (r *redactor) fields(kv []any) []any {
	if r == nil || len(kv) == 0 {
		return kv
	}
	out := make([]any, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := stringify(kv[i])
		out = append(out, key, r.value(normalizeKey(key), kv[i+1]))
	}
	return out
}

func (r *redactor) value(key string, val any) any {
	switch classify(key) {
	case fieldSecret, fieldCoordinate:
		return redacted
	case fieldIdentity:
		return r.hash(val)
	}
	switch v := val.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, inner := range v {
			out[k] = r.value(normalizeKey(k), inner)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = r.value("", inner)
		}
		return out
	case string:
		if looksLikeJWT(v) {
			return redacted
		}
	}
	return val
}

func (r *redactor) hash(val any) string {
	raw := stringify(val)
	if raw == "" {
		return ""
	}
	h := sha256.New()
	h.Write([]byte(r.salt))
	h.Write([]byte(raw))
	return "hash:" + hex.EncodeToString(h.Sum(nil))[:12]
}

type fieldClass int

const (
	fieldPlain fieldClass = iota
	fieldSecret
	fieldCoordinate
	fieldIdentity
)

func classify(key string) fieldClass {
	if key == "" {
		return fieldPlain
	}
	for _, s := range []string{"token", "authorization", "password", "secret", "api_key", "apikey"} {
		if strings.Contains(key, s) {
			return fieldSecret
		}
	}
	// grid cells are fine, raw positions are not
	switch key {
	case "lat", "lng", "lon", "latitude", "longitude", "origin":
		return fieldCoordinate
	}
	if strings.Contains(key, "user_id") || strings.Contains(key, "session_id") {
		return fieldIdentity
	}
	return fieldPlain
}

func normalizeKey(k string) string { return strings.ToLower(strings.TrimSpace(k)) }

func looksLikeJWT(s string) bool {
	parts := strings.Split(s, ".")
	return len(parts) == 3 && len(parts[0]) > 10 && len(parts[1]) > 10
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
