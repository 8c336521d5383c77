package ui

import (
	"io"
	"os"

	"github.com/pterm/pterm"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogFileConfig struct {
	Path       string
	MaxSizeMb  int
	MaxBackups int
	MaxAgeDays int
}

// plainWriter strips terminal colors before forwarding output to a log file
type plainWriter struct {
	target io.Writer
}

func (w plainWriter) Write(p []byte) (int, error) {
	_, err := w.target.Write([]byte(pterm.RemoveColorFromString(string(p))))
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func SetDebugEnabled(enabled bool) {
	pterm.PrintDebugMessages = enabled
}

// EnableLogFile mirrors all terminal output into a size rotated log file.
// The returned closer flushes and closes the current log file.
func EnableLogFile(config LogFileConfig) io.Closer {
	logger := &lumberjack.Logger{
		Filename:   config.Path,
		MaxSize:    config.MaxSizeMb,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAgeDays,
	}
	pterm.SetDefaultOutput(io.MultiWriter(os.Stdout, plainWriter{target: logger}))
	return logger
}

func Printf(format string, a ...interface{}) {
	pterm.Printf(format, a...)
}

func Printfln(format string, a ...interface{}) {
	pterm.Printfln(format, a...)
}

func Debug(format string, a ...interface{}) {
	pterm.Debug.Printfln(format, a...)
}

func Info(format string, a ...interface{}) {
	pterm.Info.Printfln(format, a...)
}

func Success(format string, a ...interface{}) {
	pterm.Success.Printfln(format, a...)
}

func Warning(format string, a ...interface{}) {
	pterm.Warning.Printfln(format, a...)
}

func Error(format string, a ...interface{}) {
	pterm.Error.Printfln(format, a...)
}

func ErrorAndNotify(title string, format string, a ...interface{}) {
	Error(format, a...)
	NotifyError(title, pterm.Sprintf(format, a...))
}

func WarningAndNotify(title string, format string, a ...interface{}) {
	Warning(format, a...)
	NotifyWarn(title, pterm.Sprintf(format, a...))
}

func Fatal(format string, a ...interface{}) {
	pterm.Fatal.Printfln(format, a...)
}
