package log

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/mrnim94/file-rotatelogs"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

// InitLogger configures the shared logger: text output on stdout and a rotating
// JSON file under log_files/ named after APP_NAME.
func InitLogger(forceNewFile bool) *logrus.Logger {
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	appName := os.Getenv("APP_NAME")
	if appName == "" {
		appName = "app"
	}
	path := filepath.Join("log_files", appName)

	options := []rotatelogs.Option{
		rotatelogs.WithLinkName(path + ".log"),
		rotatelogs.WithMaxAge(7 * 24 * time.Hour),
		rotatelogs.WithRotationTime(24 * time.Hour),
	}
	if forceNewFile {
		options = append(options, rotatelogs.ForceNewFile())
	}

	writer, err := rotatelogs.New(path+".%Y%m%d.log", options...)
	if err != nil {
		logger.Errorf("Cannot open rotating log file, logging to stdout only: %v", err)
		return logger
	}

	logger.AddHook(lfshook.NewHook(lfshook.WriterMap{
		logrus.DebugLevel: writer,
		logrus.InfoLevel:  writer,
		logrus.WarnLevel:  writer,
		logrus.ErrorLevel: writer,
		logrus.FatalLevel: writer,
		logrus.PanicLevel: writer,
	}, &logrus.JSONFormatter{}))

	return logger
}

// GetLogLevel reads the level name from the given environment variable.
// Unknown or empty values fall back to info.
func GetLogLevel(env string) logrus.Level {
	switch strings.ToUpper(strings.TrimSpace(os.Getenv(env))) {
	case "TRACE":
		return logrus.TraceLevel
	case "DEBUG":
		return logrus.DebugLevel
	case "WARN", "WARNING":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	case "FATAL":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

func Logger() *logrus.Logger { return logger }

func WithFields(fields logrus.Fields) *logrus.Entry { return logger.WithFields(fields) }

func Debug(args ...interface{}) { logger.Debug(args...) }

func Debugf(format string, args ...interface{}) { logger.Debugf(format, args...) }

func Info(args ...interface{}) { logger.Info(args...) }

func Infof(format string, args ...interface{}) { logger.Infof(format, args...) }

func Warn(args ...interface{}) { logger.Warn(args...) }

func Warnf(format string, args ...interface{}) { logger.Warnf(format, args...) }

func Error(args ...interface{}) { logger.Error(args...) }

func Errorf(format string, args ...interface{}) { logger.Errorf(format, args...) }

func Fatal(args ...interface{}) { logger.Fatal(args...) }

func Fatalf(format string, args ...interface{}) { logger.Fatalf(format, args...) }
