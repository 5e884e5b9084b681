package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

// Package logger is a thin key-value facade over zap. Call sites pass
// alternating keys and values after the message, sugared style:
//
//	logger.Info("order placed", "ref", ref, "amount", amount)

type Log struct {
	sugar *zap.SugaredLogger
}

var (
	mu     sync.RWMutex
	global *Log
)

func init() {
	cfg := zap.NewDevelopmentConfig()
	if os.Getenv("LOG_ENV") == "production" {
		cfg = zap.NewProductionConfig()
	}
	if _, err := Configure(cfg); err != nil {
		panic(err)
	}
}

// Configure rebuilds the process-wide logger from the given zap config
// and installs it as the target of the package-level functions.
func Configure(cfg zap.Config) (*Log, error) {
	z, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, err
	}
	l := &Log{sugar: z.Sugar()}
	mu.Lock()
	global = l
	mu.Unlock()
	return l, nil
}

func Get() *Log {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

func (l *Log) Debug(msg string, kv ...any) { l.sugar.Debugw(msg, kv...) }
func (l *Log) Info(msg string, kv ...any)  { l.sugar.Infow(msg, kv...) }
func (l *Log) Warn(msg string, kv ...any)  { l.sugar.Warnw(msg, kv...) }
func (l *Log) Error(msg string, kv ...any) { l.sugar.Errorw(msg, kv...) }
func (l *Log) Panic(msg string, kv ...any) { l.sugar.Panicw(msg, kv...) }

func (l *Log) Fatal(err error, kv ...any) { l.sugar.Fatalw(err.Error(), kv...) }

// Printf satisfies fasthttp's Logger interface.
func (l *Log) Printf(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

func Debug(msg string, kv ...any) { Get().Debug(msg, kv...) }
func Info(msg string, kv ...any)  { Get().Info(msg, kv...) }
func Warn(msg string, kv ...any)  { Get().Warn(msg, kv...) }
func Error(msg string, kv ...any) { Get().Error(msg, kv...) }
func Panic(msg string, kv ...any) { Get().Panic(msg, kv...) }

func Fatal(err error, kv ...any) { Get().Fatal(err, kv...) }
