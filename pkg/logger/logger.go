package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 日誌配置
type Config struct {
	// 日誌等級：debug, info, warn, error
	Level string `yaml:"level"`
	// 輸出格式：json 或 text
	Format string `yaml:"format"`
	// 輸出目標：stdout, file, both
	Output string `yaml:"output"`
	// 日誌檔路徑 (output 為 file 或 both 時)
	FilePath string `yaml:"file_path"`
	// 單檔大小上限 (MB)
	MaxSize int `yaml:"max_size"`
	// 保留的備份檔數
	MaxBackups int `yaml:"max_backups"`
	// 保留天數
	MaxAge   int  `yaml:"max_age"`
	Compress bool `yaml:"compress"`
	// 是否輸出呼叫位置
	WithCaller bool `yaml:"with_caller"`
}

type ctxKey struct{}

// New 依配置建立 logger
//
// 回傳:
//
//	*slog.Logger: logger 實例
//	io.Closer: 關閉日誌檔 (輸出到 stdout 時為 no-op)
//	error: 建立日誌目錄失敗
func New(cfg Config) (*slog.Logger, io.Closer, error) {
	var output io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	switch cfg.Output {
	case "file", "both":
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		// 日誌切割
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		closer = fileWriter
		output = fileWriter
		if cfg.Output == "both" {
			output = io.MultiWriter(os.Stdout, fileWriter)
		}
	case "", "stdout":
	default:
		return nil, nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}

	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: cfg.WithCaller,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
			}
			return a
		},
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}
	return slog.New(&contextHandler{Handler: handler}), closer, nil
}

// Init 建立 logger 並設為 slog 的預設值
func Init(cfg Config) (*slog.Logger, io.Closer, error) {
	l, closer, err := New(cfg)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(l)
	return l, closer, nil
}

// ParseLevel 解析日誌等級，未知值視為 info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID 把 request id 放進 context，之後所有 *Context 的 log 都會帶上
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID 取出 request id
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// contextHandler 從 context 取出 request_id 加到每一筆 log
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := RequestID(ctx); id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
