// Package logging configures logrus for the pipeline and redirects the
// go-mysql client library's own logger onto the same output, matching the
// fixMysqlLogging pattern the source connector uses so a single log stream
// carries both application and driver messages.
package logging

import (
	"io"
	"os"

	glog "github.com/siddontang/go-log/log"
	"github.com/sirupsen/logrus"
)

// Setup configures the package-wide logrus logger and returns it. level is
// one of logrus's parseable level strings ("debug", "info", "warn", ...).
func Setup(level string, out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if out == nil {
		out = os.Stderr
	}
	l.SetOutput(out)
	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	redirectMySQLLogger(l)
	return l
}

// redirectMySQLLogger points go-mysql's internal siddontang/go-log logger
// at the same writer logrus uses, so replication client warnings don't end
// up on a separate, unformatted stream.
func redirectMySQLLogger(l *logrus.Logger) {
	handler, err := glog.NewStreamHandler(l.Out)
	if err != nil {
		l.WithError(err).Warn("could not redirect mysql client logger, leaving default")
		return
	}
	glog.SetDefaultLogger(glog.New(handler, glog.Ltime|glog.Lfile))
}
