package configs

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量覆盖配置时使用的前缀
const EnvPrefix = "ROWMIGRATE_"

// RPC info.
type RPC struct {
	Enable bool   `yaml:"enable" json:"enable"`
	Bind   string `yaml:"bind" json:"bind"`
}

var defaultRPC = RPC{
	Enable: true,
	Bind:   ":8080",
}

func (r *RPC) verify() error {
	if r == nil {
		return nil
	}
	if !r.Enable {
		return nil
	}
	if _, err := net.ResolveTCPAddr("tcp", r.Bind); err != nil {
		return fmt.Errorf("无效的RPC绑定地址: %w", err)
	}
	return nil
}

// Database 物品数据库配置
type Database struct {
	Path         string        `yaml:"path" json:"path"`
	BusyTimeout  time.Duration `yaml:"busy_timeout" json:"busy_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns" json:"max_open_conns"`
}

// Migration 升级迁移配置
type Migration struct {
	// BatchSize 每批处理的记录数
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// Parallel 是否并行执行互不相关的迁移
	Parallel bool `yaml:"parallel" json:"parallel"`
	// Backup 升级前是否备份数据库
	Backup bool `yaml:"backup" json:"backup"`
	// MaxBackups 最多保留的备份数
	MaxBackups int `yaml:"max_backups" json:"max_backups"`
	// ModuleFrom 升级前的模块版本，为空表示全新安装
	ModuleFrom string `yaml:"module_from" json:"module_from"`
}

type Log struct {
	OutPutFolder string `yaml:"out_put_folder" json:"out_put_folder"`
	SaveEveryLog bool   `yaml:"save_every_log" json:"save_every_log"`
	// RotateDays 按天滚动日志时最多保留的天数（<=0 表示不清理）
	RotateDays int `yaml:"rotate_days" json:"rotate_days"`
}

// Sentry 错误上报配置
type Sentry struct {
	Enable      bool   `yaml:"enable" json:"enable"`
	DSN         string `yaml:"dsn" json:"dsn"`
	Environment string `yaml:"environment" json:"environment"`
}

type Config struct {
	File  string `yaml:"-" json:"-"`
	RPC   RPC    `yaml:"rpc" json:"rpc"`
	Debug bool   `yaml:"debug" json:"debug"`

	Database  Database  `yaml:"database" json:"database"`
	Migration Migration `yaml:"migration" json:"migration"`
	Log       Log       `yaml:"log" json:"log"`
	Sentry    Sentry    `yaml:"sentry" json:"sentry"`
}

// 使用 atomic.Value 存放当前配置指针，避免并发读写造成 data race
var config atomic.Value // stores *Config

func SetCurrentConfig(cfg *Config) {
	config.Store(cfg)
}

func GetCurrentConfig() *Config {
	v := config.Load()
	if v == nil {
		return nil
	}
	return v.(*Config)
}

// IsDebug 当前配置是否开启调试
func IsDebug() bool {
	cfg := GetCurrentConfig()
	return cfg != nil && cfg.Debug
}

var defaultConfig = Config{
	RPC:   defaultRPC,
	Debug: false,
	Database: Database{
		Path:         "./rowmigrate.db",
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 4,
	},
	Migration: Migration{
		BatchSize:  100,
		Parallel:   false,
		Backup:     true,
		MaxBackups: 5,
	},
	Log: Log{
		OutPutFolder: "./",
		SaveEveryLog: false,
		RotateDays:   7,
	},
	Sentry: Sentry{
		Environment: "production",
	},
}

func NewConfig() *Config {
	config := defaultConfig
	return &config
}

// Verify will return an error when this config has problem.
func (c *Config) Verify() error {
	if c == nil {
		return fmt.Errorf("配置不存在")
	}
	if err := c.RPC.verify(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("数据库路径不能为空")
	}
	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("数据库忙等待时间不能为负数")
	}
	if c.Migration.BatchSize <= 0 {
		return fmt.Errorf("迁移批次大小必须大于 0")
	}
	if c.Migration.MaxBackups < 0 {
		return fmt.Errorf("备份保留数量不能为负数")
	}
	if c.Log.SaveEveryLog {
		if _, err := os.Stat(c.Log.OutPutFolder); err != nil {
			return fmt.Errorf(`日志目录 "%s" 不存在`, c.Log.OutPutFolder)
		}
	}
	if c.Sentry.Enable && c.Sentry.DSN == "" {
		return fmt.Errorf("已启用 Sentry 但未配置 DSN")
	}
	return nil
}

func NewConfigWithBytes(b []byte) (*Config, error) {
	config := defaultConfig
	if err := yaml.Unmarshal(b, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

func NewConfigWithFile(file string) (*Config, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		// 进行权限诊断，提供更详细的错误信息
		diag := DiagnoseFilePermission(file)
		if diagInfo := diag.FormatError(); diagInfo != "" {
			return nil, fmt.Errorf("can`t open file: %s%s", file, diagInfo)
		}
		return nil, fmt.Errorf("can`t open file: %s", file)
	}
	config, err := NewConfigWithBytes(b)
	if err != nil {
		return nil, err
	}
	config.File = file
	return config, nil
}

// Load 读取配置文件（为空时使用默认配置），加载 .env 后应用环境变量覆盖
func Load(file string, envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	cfg := NewConfig()
	if file != "" {
		var err error
		if cfg, err = NewConfigWithFile(file); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv 加载 .env 文件，已存在的环境变量不会被覆盖
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv 使用 ROWMIGRATE_* 环境变量覆盖配置
func (c *Config) ApplyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	boolean("DEBUG", &c.Debug)
	boolean("RPC_ENABLE", &c.RPC.Enable)
	str("RPC_BIND", &c.RPC.Bind)
	str("DB_PATH", &c.Database.Path)
	duration("DB_BUSY_TIMEOUT", &c.Database.BusyTimeout)
	integer("DB_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	integer("BATCH_SIZE", &c.Migration.BatchSize)
	boolean("PARALLEL", &c.Migration.Parallel)
	boolean("BACKUP", &c.Migration.Backup)
	integer("MAX_BACKUPS", &c.Migration.MaxBackups)
	str("MODULE_FROM", &c.Migration.ModuleFrom)
	str("LOG_FOLDER", &c.Log.OutPutFolder)
	boolean("SENTRY_ENABLE", &c.Sentry.Enable)
	str("SENTRY_DSN", &c.Sentry.DSN)
	str("SENTRY_ENVIRONMENT", &c.Sentry.Environment)

	return multierr.Combine(errs...)
}

func (c *Config) Marshal() error {
	if c.File == "" {
		return errors.New("config path not set")
	}

	var node yaml.Node
	tempBytes, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(tempBytes, &node); err != nil {
		return err
	}

	DecorateConfigNode(&node)

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&node); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.File), 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.File, buf.Bytes(), 0644)
}
