package migration

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrJobNotFound 迁移未注册
var ErrJobNotFound = errors.New("migration not registered")

// Job 可被升级器调度的迁移，*Runner[T] 实现了该接口
type Job interface {
	Name() string
	IntroducedIn() string
	ShouldRun(moduleFrom string) bool
	Run(ctx context.Context) (*RunResult, error)
	Progress() (Status, int64)
}

// Registry 迁移注册表，按注册顺序保存
type Registry struct {
	mu     sync.RWMutex
	jobs   []Job
	byName map[string]Job
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Job)}
}

// Register 注册迁移
func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("migration cannot be nil")
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("migration name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("migration %s already registered", name)
	}
	r.byName[name] = job
	r.jobs = append(r.jobs, job)
	return nil
}

// MustRegister 注册迁移，失败时panic
func (r *Registry) MustRegister(job Job) {
	if err := r.Register(job); err != nil {
		panic(fmt.Sprintf("failed to register migration: %v", err))
	}
}

// Get 按名称获取迁移
func (r *Registry) Get(name string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return job, nil
}

// List 列出所有迁移
func (r *Registry) List() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// Applicable 列出从 moduleFrom 升级时需要执行的迁移
func (r *Registry) Applicable(moduleFrom string) []Job {
	var jobs []Job
	for _, job := range r.List() {
		if job.ShouldRun(moduleFrom) {
			jobs = append(jobs, job)
		}
	}
	return jobs
}
