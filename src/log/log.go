package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bililive-go/rowmigrate/src/configs"
	"github.com/bililive-go/rowmigrate/src/consts"
)

// New 按配置设置全局 logrus Logger，返回值需要在退出时关闭
func New(cfg *configs.Config) (io.Closer, error) {
	if cfg == nil {
		cfg = configs.NewConfig()
	}

	writers := []io.Writer{os.Stderr}
	var closer io.Closer = nopCloser{}
	if cfg.Log.SaveEveryLog {
		if _, err := os.Stat(cfg.Log.OutPutFolder); err != nil {
			return nil, fmt.Errorf("failed to determine log output folder %s: %w", cfg.Log.OutPutFolder, err)
		}
		rot := newDailyRotatingWriter(cfg.Log.OutPutFolder, strings.ToLower(consts.AppName), cfg.Log.RotateDays)
		writers = append(writers, rot)
		closer = rot
	}

	logrus.SetOutput(io.MultiWriter(writers...))
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.SetReportCaller(true)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
		logrus.SetReportCaller(false)
	}
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// dailyRotatingWriter 按“天”切分日志文件，文件名形如：<base>-YYYY-MM-DD.log
// 可选保留最近 N 天（retentionDays<=0 时不清理）。
type dailyRotatingWriter struct {
	dir           string
	base          string
	retentionDays int
	now           func() time.Time

	mu     sync.Mutex
	curDay string
	file   *os.File
}

func newDailyRotatingWriter(dir, base string, retentionDays int) *dailyRotatingWriter {
	w := &dailyRotatingWriter{dir: dir, base: base, retentionDays: retentionDays, now: time.Now}
	_ = w.rotateIfNeededLocked(w.now())
	return w
}

func (w *dailyRotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.rotateIfNeededLocked(w.now()); err != nil {
		return 0, err
	}
	if w.file == nil {
		return 0, io.ErrClosedPipe
	}
	return w.file.Write(p)
}

func (w *dailyRotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *dailyRotatingWriter) rotateIfNeededLocked(now time.Time) error {
	day := now.Format("2006-01-02")
	if w.file != nil && day == w.curDay {
		return nil
	}
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	f, err := os.OpenFile(w.filenameForDay(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.curDay = day
	w.cleanupLocked(now)
	return nil
}

func (w *dailyRotatingWriter) filenameForDay(day string) string {
	return filepath.Join(w.dir, w.base+"-"+day+".log")
}

func (w *dailyRotatingWriter) cleanupLocked(now time.Time) {
	if w.retentionDays <= 0 {
		return
	}
	cutoff := now.AddDate(0, 0, -w.retentionDays)
	files, _ := filepath.Glob(filepath.Join(w.dir, w.base+"-*.log"))
	for _, f := range files {
		// 期望格式：<base>-YYYY-MM-DD.log
		dateStr := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(f), w.base+"-"), ".log")
		if t, err := time.Parse("2006-01-02", dateStr); err == nil && t.Before(cutoff) {
			_ = os.Remove(f)
		}
	}
}

// WithFields 是对全局 Logger 的便捷封装，返回带字段的 Entry。
func WithFields(fields logrus.Fields) *logrus.Entry {
	return logrus.StandardLogger().WithFields(fields)
}
