package logger

import (
  "os"
  "strings"

  "go.uber.org/zap"
  "go.uber.org/zap/zapcore"
)

// Log is replaced by Init; the nop default keeps library code and
// tests safe before main runs.
var Log = zap.NewNop()

// Init sets up the global logger. Call once in main().
func Init() error {
  cfg := zap.NewProductionConfig()
  cfg.EncoderConfig.TimeKey = "ts"
  cfg.EncoderConfig.MessageKey = "msg"
  cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
  if level := os.Getenv("LOG_LEVEL"); level != "" {
    cfg.Level.SetLevel(parseLevel(level))
  }
  var err error
  Log, err = cfg.Build()
  return err
}

// parseLevel maps a level string to a zapcore.Level, defaulting to info.
func parseLevel(s string) zapcore.Level {
  switch strings.ToLower(s) {
  case "debug":
    return zapcore.DebugLevel
  case "warn":
    return zapcore.WarnLevel
  case "error":
    return zapcore.ErrorLevel
  default:
    return zapcore.InfoLevel
  }
}
