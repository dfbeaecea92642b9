// Package logger 统一构造 logrus 日志实例
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// 日志字段名
const (
	FieldDomain   = "domain"
	FieldAlias    = "alias"
	FieldProvider = "provider"
	FieldTarget   = "target"
	FieldCertID   = "cert_id"
)

// Options 日志选项
type Options struct {
	Level   string // debug, info, warn, error
	Format  string // text, json
	Verbose bool
	Output  io.Writer
}

// New 按选项创建日志实例
func New(opts Options) *logrus.Logger {
	l := logrus.New()

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	l.SetOutput(out)

	if strings.EqualFold(opts.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	level := logrus.InfoLevel
	if opts.Level != "" {
		if parsed, err := logrus.ParseLevel(opts.Level); err == nil {
			level = parsed
		}
	}
	if opts.Verbose {
		level = logrus.DebugLevel
	}
	l.SetLevel(level)

	return l
}

// Discard 返回丢弃所有输出的日志实例，测试用
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// Component 返回带组件名的日志条目
func Component(l *logrus.Logger, name string) *logrus.Entry {
	return l.WithField("component", name)
}
