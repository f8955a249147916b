package servers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/gorilla/mux"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"

	"github.com/bililive-go/rowmigrate/src/pkg/migration"
	bilisentry "github.com/bililive-go/rowmigrate/src/pkg/sentry"
)

// ErrUpgradeRunning 已有升级任务在执行
var ErrUpgradeRunning = errors.New("an upgrade job is already running")

// ErrJobNotFound 任务不存在或已过期
var ErrJobNotFound = errors.New("upgrade job not found")

// maxFinishedJobs 保留的已结束任务数
const maxFinishedJobs = 64

// JobStatus 升级任务状态
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// MigrationProgress 单个迁移的进度
type MigrationProgress struct {
	Name             string           `json:"name"`
	Status           migration.Status `json:"status"`
	RecordsProcessed int64            `json:"records_processed"`
	Batches          int              `json:"batches,omitempty"`
	Error            string           `json:"error,omitempty"`
}

// UpgradeJob 升级任务快照
type UpgradeJob struct {
	ID         string              `json:"id"`
	ModuleFrom string              `json:"module_from"`
	Status     JobStatus           `json:"status"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
	BackupPath string              `json:"backup_path,omitempty"`
	Skipped    []string            `json:"skipped,omitempty"`
	Migrations []MigrationProgress `json:"migrations"`
	Error      string              `json:"error,omitempty"`
}

// JobManager 在后台执行升级任务，同一时刻只允许一个任务
type JobManager struct {
	ctx      context.Context
	upgrader Upgrader
	finished gcache.Cache
	wg       sync.WaitGroup

	mu      sync.Mutex
	current *UpgradeJob
}

// NewJobManager 创建任务管理器，ctx 取消时进行中的任务随之取消
func NewJobManager(ctx context.Context, upgrader Upgrader) *JobManager {
	return &JobManager{
		ctx:      ctx,
		upgrader: upgrader,
		finished: gcache.New(maxFinishedJobs).LRU().Build(),
	}
}

// Start 启动升级任务
func (m *JobManager) Start(moduleFrom string) (*UpgradeJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		return nil, ErrUpgradeRunning
	}

	job := &UpgradeJob{
		ID:         uuid.Must(uuid.NewV4()).String(),
		ModuleFrom: moduleFrom,
		Status:     JobRunning,
		StartedAt:  time.Now(),
	}
	m.current = job
	snapshot := m.snapshotLocked(job)

	m.wg.Add(1)
	bilisentry.GoWithContext(m.ctx, func(ctx context.Context) {
		defer m.wg.Done()
		// 升级 panic 时也要结束任务，否则后续请求会一直返回 409
		defer func() {
			if p := recover(); p != nil {
				err := fmt.Errorf("upgrade panicked: %v", p)
				bilisentry.CaptureException(err)
				m.finish(job, nil, err)
			}
		}()
		result, err := m.upgrader.Upgrade(ctx, moduleFrom)
		m.finish(job, result, err)
	})
	return snapshot, nil
}

func (m *JobManager) finish(job *UpgradeJob, result *migration.UpgradeResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	job.FinishedAt = &now
	job.Status = JobCompleted
	if err != nil {
		job.Status = JobFailed
		job.Error = err.Error()
	}
	if result != nil {
		job.BackupPath = result.BackupPath
		job.Skipped = result.Skipped
		job.Migrations = job.Migrations[:0]
		for _, j := range m.upgrader.Registry().List() {
			r, ok := result.Results[j.Name()]
			if !ok {
				continue
			}
			p := MigrationProgress{
				Name:             j.Name(),
				Status:           r.Status,
				RecordsProcessed: r.RecordsProcessed,
				Batches:          r.Batches,
			}
			if r.Err != nil {
				p.Error = r.Err.Error()
			}
			job.Migrations = append(job.Migrations, p)
		}
	}

	logrus.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"module_from": job.ModuleFrom,
		"status":      job.Status,
	}).Info("upgrade job finished")

	_ = m.finished.Set(job.ID, job)
	m.current = nil
}

// Get 返回任务快照，进行中的任务带有各迁移的实时进度
func (m *JobManager) Get(id string) (*UpgradeJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.ID == id {
		return m.snapshotLocked(m.current), nil
	}
	v, err := m.finished.Get(id)
	if err != nil {
		return nil, ErrJobNotFound
	}
	return m.snapshotLocked(v.(*UpgradeJob)), nil
}

// Wait 等待进行中的任务结束
func (m *JobManager) Wait() {
	m.wg.Wait()
}

func (m *JobManager) snapshotLocked(job *UpgradeJob) *UpgradeJob {
	cp := *job
	cp.Skipped = append([]string(nil), job.Skipped...)
	if job.Status != JobRunning {
		cp.Migrations = append([]MigrationProgress{}, job.Migrations...)
		return &cp
	}
	cp.Migrations = []MigrationProgress{}
	for _, j := range m.upgrader.Registry().Applicable(job.ModuleFrom) {
		status, processed := j.Progress()
		cp.Migrations = append(cp.Migrations, MigrationProgress{
			Name:             j.Name(),
			Status:           status,
			RecordsProcessed: processed,
		})
	}
	return &cp
}

type startUpgradeRequest struct {
	ModuleFrom string `json:"module_from"`
}

// RegisterMigrationHandlers 注册升级任务相关的 HTTP 处理器
// 注意：r 已经是 /api 前缀的子路由器
func RegisterMigrationHandlers(r *mux.Router, m *JobManager) {
	// 启动升级任务
	r.HandleFunc("/migrations", makeStartUpgradeHandler(m)).Methods("POST")

	// 查询任务状态
	r.HandleFunc("/migrations/{id}", makeGetUpgradeHandler(m)).Methods("GET")
}

func makeStartUpgradeHandler(m *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startUpgradeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if q := r.URL.Query().Get("module_from"); q != "" {
			req.ModuleFrom = q
		}

		job, err := m.Start(req.ModuleFrom)
		if errors.Is(err, ErrUpgradeRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Location", "/api/migrations/"+job.ID)
		writeJsonWithStatusCode(w, http.StatusAccepted, commonResp{Data: job})
	}
}

func makeGetUpgradeHandler(m *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		job, err := m.Get(id)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, commonResp{Data: job})
	}
}
