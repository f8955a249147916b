// Package sentry 提供 Sentry 错误监控的封装
// 用于收集后台任务的崩溃信息，上报前清理连接串与凭据
package sentry

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	uuid "github.com/satori/go.uuid"
)

var (
	initialized bool
	initMu      sync.RWMutex
)

// 敏感关键字列表
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "dsn", "api_key", "apikey",
}

var (
	sensitiveURLPattern = regexp.MustCompile(`([?&](?:token|key|secret|password|auth|_auth|_pragma_key))=[^&]*`)
	sensitivePairs      = buildPairPatterns()
)

func buildPairPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(sensitiveKeywords))
	for i, keyword := range sensitiveKeywords {
		patterns[i] = regexp.MustCompile(`(?i)(` + regexp.QuoteMeta(keyword) + `)\s*[=:]\s*[^\s,}"\[\]&]+`)
	}
	return patterns
}

// Init 初始化 Sentry SDK，dsn 为空时不启用
func Init(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
		BeforeSend:       beforeSendHook,
		SampleRate:       1.0,
	})
	if err != nil {
		return err
	}

	// 每个进程一个匿名实例标识，便于区分同一版本的多个部署
	instanceID := strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", "")
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("instance_id", instanceID)
	})

	initMu.Lock()
	initialized = true
	initMu.Unlock()
	return nil
}

// IsInitialized 返回 Sentry 是否已初始化
func IsInitialized() bool {
	initMu.RLock()
	defer initMu.RUnlock()
	return initialized
}

// Flush 刷新所有待发送事件（程序退出前调用）
func Flush(timeout time.Duration) {
	if !IsInitialized() {
		return
	}
	sentry.Flush(timeout)
}

// RecoverWithContext 用于 goroutine 的 panic 恢复，应在 goroutine 开始时 defer 调用
// 必须先调用 recover()，再检查 Sentry 状态
func RecoverWithContext(ctx context.Context) {
	err := recover()
	if err == nil {
		return
	}

	if IsInitialized() {
		hub := sentry.GetHubFromContext(ctx)
		if hub == nil {
			hub = sentry.CurrentHub()
		}
		hub.RecoverWithContext(ctx, err)
	}
	// 不重新 panic，让 goroutine 优雅退出
}

// Recover 用于 goroutine 的 panic 恢复（无 context 版本）
func Recover() {
	err := recover()
	if err == nil {
		return
	}

	if IsInitialized() {
		sentry.CurrentHub().Recover(err)
	}
}

// CaptureException 捕获异常
func CaptureException(err error) {
	if !IsInitialized() || err == nil {
		return
	}
	sentry.CaptureException(err)
}

// Go 启动一个新的 goroutine 并自动添加 panic 恢复
func Go(f func()) {
	go func() {
		defer Recover()
		f()
	}()
}

// GoWithContext 启动一个新的 goroutine 并自动添加 panic 恢复（带 Context）
func GoWithContext(ctx context.Context, f func(context.Context)) {
	go func() {
		defer RecoverWithContext(ctx)
		f(ctx)
	}()
}

// beforeSendHook 在发送事件前清理敏感数据
func beforeSendHook(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.Message = sanitizeString(event.Message)

	for i := range event.Exception {
		event.Exception[i].Value = sanitizeString(event.Exception[i].Value)
		if st := event.Exception[i].Stacktrace; st != nil {
			for j := range st.Frames {
				st.Frames[j].Vars = sanitizeMap(st.Frames[j].Vars)
			}
		}
	}

	event.Extra = sanitizeMap(event.Extra)
	for key, ctxData := range event.Contexts {
		event.Contexts[key] = sanitizeMap(ctxData)
	}

	if event.Request != nil {
		req := event.Request
		req.URL = sensitiveURLPattern.ReplaceAllString(req.URL, "$1=[REDACTED]")
		req.QueryString = sanitizeString(req.QueryString)
		req.Cookies = ""
		for header := range req.Headers {
			if strings.EqualFold(header, "authorization") || strings.EqualFold(header, "cookie") {
				req.Headers[header] = "[REDACTED]"
			}
		}
	}
	return event
}

// sanitizeString 清理字符串中的敏感数据
func sanitizeString(s string) string {
	if s == "" {
		return s
	}
	s = sensitiveURLPattern.ReplaceAllString(s, "$1=[REDACTED]")
	for _, pattern := range sensitivePairs {
		s = pattern.ReplaceAllString(s, "$1=[REDACTED]")
	}
	return s
}

func sanitizeMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}

	result := make(map[string]interface{}, len(m))
	for key, value := range m {
		switch v := value.(type) {
		case string:
			if isSensitiveKey(key) {
				result[key] = "[REDACTED]"
			} else {
				result[key] = sanitizeString(v)
			}
		case map[string]interface{}:
			result[key] = sanitizeMap(v)
		default:
			if isSensitiveKey(key) {
				result[key] = "[REDACTED]"
			} else {
				result[key] = value
			}
		}
	}
	return result
}

func isSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(keyLower, keyword) {
			return true
		}
	}
	return false
}
