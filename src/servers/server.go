//go:generate go run go.uber.org/mock/mockgen -package servers -destination mock_test.go github.com/bililive-go/rowmigrate/src/servers Upgrader,ItemSaver

package servers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/bililive-go/rowmigrate/src/configs"
	"github.com/bililive-go/rowmigrate/src/consts"
	"github.com/bililive-go/rowmigrate/src/pkg/inventory"
	"github.com/bililive-go/rowmigrate/src/pkg/migration"
	bilisentry "github.com/bililive-go/rowmigrate/src/pkg/sentry"
	"github.com/bililive-go/rowmigrate/src/pkg/store"
)

// Upgrader 执行升级迁移
type Upgrader interface {
	Upgrade(ctx context.Context, moduleFrom string) (*migration.UpgradeResult, error)
	Registry() *migration.Registry
}

// ItemSaver 批量写入物品
type ItemSaver interface {
	SaveBatch(ctx context.Context, items []store.Item, upsert bool) (*inventory.SaveResult, error)
}

type commonResp struct {
	ErrNo  int    `json:"err_no"`
	ErrMsg string `json:"err_msg"`
	Data   any    `json:"data"`
}

func writeJSON(writer http.ResponseWriter, obj any) {
	writeJsonWithStatusCode(writer, http.StatusOK, obj)
}

func writeJsonWithStatusCode(writer http.ResponseWriter, code int, obj any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(code)
	if err := json.NewEncoder(writer).Encode(obj); err != nil {
		logrus.WithError(err).Debug("failed to write response")
	}
}

func writeError(writer http.ResponseWriter, code int, msg string) {
	writeJsonWithStatusCode(writer, code, commonResp{
		ErrNo:  code,
		ErrMsg: msg,
	})
}

// Options 服务选项
type Options struct {
	// Gatherer metrics 的数据来源，为空时使用默认注册表
	Gatherer prometheus.Gatherer
	// MaxBodyBytes 请求体大小上限
	MaxBodyBytes int64
}

type Server struct {
	server *http.Server
	jobs   *JobManager
	items  ItemSaver
	opts   Options
}

// NewServer 创建管理接口服务，upgrader 或 items 为 nil 时不注册对应接口
func NewServer(ctx context.Context, cfg configs.RPC, upgrader Upgrader, items ItemSaver, opts Options) *Server {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 32 << 20
	}
	s := &Server{items: items, opts: opts}
	if upgrader != nil {
		s.jobs = NewJobManager(ctx, upgrader)
	}
	s.server = &http.Server{
		Addr:              cfg.Bind,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	return s
}

// Jobs 返回迁移任务管理器
func (s *Server) Jobs() *JobManager {
	return s.jobs
}

// Handler 构建路由
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(log)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/info", getInfo).Methods("GET")
	if s.jobs != nil {
		RegisterMigrationHandlers(api, s.jobs)
	}
	if s.items != nil {
		RegisterItemHandlers(api, s.items, s.opts.MaxBodyBytes)
	}
	router.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	return router
}

func getInfo(writer http.ResponseWriter, r *http.Request) {
	writeJSON(writer, consts.GetAppInfo())
}

// Start 在后台监听，监听失败通过返回的通道报告
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	bilisentry.Go(func() {
		logrus.WithField("bind", s.server.Addr).Info("Server start")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("Server stopped unexpectedly")
			errCh <- err
		}
		close(errCh)
	})
	return errCh
}

// Close 停止接受请求并等待进行中的请求结束
func (s *Server) Close(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	if s.jobs != nil {
		s.jobs.Wait()
	}
	logrus.Info("Server close")
	return err
}
