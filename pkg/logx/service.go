package logx

import (
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const (
	timeFormat     = "2006-01-02T15:04:05.000Z07:00"
	defaultLogFile = "./email_automation.log"
)

func init() {
	zerolog.ErrorFieldName = "err"
	zerolog.TimeFieldFormat = timeFormat
}

type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

// FileConfig enables the JSON file sink.
type FileConfig struct {
	Enabled bool
	Path    string
}

// Service owns the sinks. Apply rebuilds them and swaps the root logger that
// every derived Logger reads.
type Service struct {
	console io.Writer
	root    atomic.Pointer[zerolog.Logger]

	mu   sync.Mutex
	file *os.File
}

// NewWithWriter builds a Service whose console sink writes to out
// (os.Stdout when nil) and returns its root Logger.
func NewWithWriter(cfg Config, out io.Writer) (*Service, Logger) {
	if out == nil {
		out = Stdout()
	}
	s := &Service{console: consoleWriter(out)}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

// Apply swaps level and sinks. A log file that cannot be opened is reported
// on the console and skipped.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	var (
		sinks   []io.Writer
		openErr error
		path    string
	)
	if cfg.Console {
		sinks = append(sinks, s.console)
	}
	if cfg.File.Enabled {
		path = strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = defaultLogFile
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			openErr = err
		} else {
			s.file = f
			sinks = append(sinks, zerolog.SyncWriter(f))
		}
	}
	if len(sinks) == 0 {
		sinks = []io.Writer{s.console}
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(sinks...)).
		Level(parseLevel(cfg.Level)).
		With().Timestamp().Logger()
	s.root.Store(&zl)

	if openErr != nil {
		zl.Warn().Str("path", path).Err(openErr).Msg("log file unavailable; file sink disabled")
	}
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// consoleWriter renders human-readable lines. Colors are used only when w is
// a terminal.
func consoleWriter(w io.Writer) io.Writer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    !color,
		TimeFormat: timeFormat,
		FormatCaller: func(i any) string {
			s, _ := i.(string)
			return s
		},
	}
}

// Stdout is the default console destination.
func Stdout() io.Writer { return os.Stdout }
