package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/errs/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// openLog logs info and above to stderr and everything as JSON to a
// timestamped file under <dataDir>/logs, pointed to by a latest symlink.
func openLog(dataDir string) (*zap.Logger, error) {
	logsDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, errs.Wrap(err)
	}

	// Name the log based on the current timestamp to millisecond precision
	logName := time.Now().UTC().Format("2006.01.02.15.04.05.000Z") + ".json"

	// Convert to an absolute path for the file URI passed to zap
	logsPath, err := filepath.Abs(filepath.Join(logsDir, logName))
	if err != nil {
		return nil, errs.Wrap(err)
	}

	stderrEncoder := zap.NewDevelopmentEncoderConfig()
	stderrEncoder.EncodeLevel = zapcore.CapitalColorLevelEncoder
	stderrLog, err := (zap.Config{
		Level:         zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding:      "console",
		EncoderConfig: stderrEncoder,
		OutputPaths:   []string{"stderr"},
	}).Build()
	if err != nil {
		return nil, errs.Wrap(err)
	}

	fileEncoder := zap.NewProductionEncoderConfig()
	fileEncoder.EncodeTime = zapcore.ISO8601TimeEncoder
	fileLog, err := (zap.Config{
		Level:         zap.NewAtomicLevelAt(zap.DebugLevel),
		Encoding:      "json",
		EncoderConfig: fileEncoder,
		OutputPaths:   []string{"file://" + logsPath},
	}).Build()
	if err != nil {
		return nil, errs.Wrap(err)
	}

	log := zap.New(zapcore.NewTee(stderrLog.Core(), fileLog.Core()))

	// Overwrite the latest symlink
	tmpLink := filepath.Join(logsDir, ".latest")
	_ = os.Remove(tmpLink)
	if err := os.Symlink(logName, tmpLink); err != nil {
		return nil, errs.Wrap(err)
	}
	if err := os.Rename(tmpLink, filepath.Join(logsDir, "latest")); err != nil {
		return nil, errs.Wrap(err)
	}

	return log, nil
}
