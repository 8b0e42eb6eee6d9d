// Package temporal bridges the Temporal SDK logger to zap.
package temporal

import (
	"fmt"
	"reflect"

	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
)

// ZapAdapter implements the SDK's key/value logger on top of zap.
type ZapAdapter struct {
	logger *zap.Logger
}

var (
	_ log.Logger     = (*ZapAdapter)(nil)
	_ log.WithLogger = (*ZapAdapter)(nil)
)

func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapAdapter{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

func (z *ZapAdapter) Debug(msg string, keyvals ...any) { z.logger.Debug(msg, fields(keyvals)...) }
func (z *ZapAdapter) Info(msg string, keyvals ...any)  { z.logger.Info(msg, fields(keyvals)...) }
func (z *ZapAdapter) Warn(msg string, keyvals ...any)  { z.logger.Warn(msg, fields(keyvals)...) }
func (z *ZapAdapter) Error(msg string, keyvals ...any) { z.logger.Error(msg, fields(keyvals)...) }

// With returns an adapter that adds keyvals to every entry.
func (z *ZapAdapter) With(keyvals ...any) log.Logger {
	return &ZapAdapter{logger: z.logger.With(fields(keyvals)...)}
}

// fields pairs keyvals up. A non-string key is stringified and a trailing
// key without a value is logged as missing.
func fields(keyvals []any) []zap.Field {
	out := make([]zap.Field, 0, (len(keyvals)+1)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		if i+1 >= len(keyvals) {
			out = append(out, zap.String(key, "<missing>"))
			break
		}
		out = append(out, field(key, keyvals[i+1]))
	}
	return out
}

func field(key string, val any) (f zap.Field) {
	defer func() {
		if r := recover(); r != nil {
			f = zap.String(key, fmt.Sprintf("<unserializable: %v>", r))
		}
	}()

	switch v := val.(type) {
	case nil:
		return zap.String(key, "<nil>")
	case error:
		return zap.NamedError(key, v)
	}
	switch reflect.ValueOf(val).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return zap.String(key, fmt.Sprintf("<%T>", val))
	}
	return zap.Any(key, val)
}
