package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/bililive-go/rowmigrate/src/configs"
	"github.com/bililive-go/rowmigrate/src/consts"
	"github.com/bililive-go/rowmigrate/src/pkg/inventory"
	"github.com/bililive-go/rowmigrate/src/pkg/migration"
	bilisentry "github.com/bililive-go/rowmigrate/src/pkg/sentry"
	"github.com/bililive-go/rowmigrate/src/servers"
)

var (
	conf       string
	moduleFrom string
	backupPath string
	initPath   string
)

func main() {
	// 程序退出时刷新 Sentry 事件队列
	defer bilisentry.Flush(2 * time.Second)
	// 捕获主 goroutine 的 panic
	defer bilisentry.Recover()

	app := kingpin.New("rowmigrate", "Online batch migrations and batch item writes.")
	app.Version(consts.AppVersion)
	app.Flag("config", "配置文件路径").Short('c').StringVar(&conf)

	app.Command("serve", "启动管理接口").Action(serve)

	upgradeCmd := app.Command("upgrade", "执行从指定版本升级时需要的迁移")
	upgradeCmd.Flag("from", "升级前的模块版本，默认读取配置 migration.module_from").StringVar(&moduleFrom)
	upgradeCmd.Action(upgrade)

	restoreCmd := app.Command("restore", "从备份恢复数据库（服务需先停止）")
	restoreCmd.Arg("backup", "备份文件路径，默认使用最新的备份").StringVar(&backupPath)
	restoreCmd.Action(restore)

	app.Command("backups", "列出数据库备份").Action(listBackups)

	initCmd := app.Command("init-config", "写出带注释的默认配置文件")
	initCmd.Arg("path", "配置文件路径").Default("config.yml").StringVar(&initPath)
	initCmd.Action(initConfig)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serve(c *kingpin.ParseContext) error {
	a, err := newApp(conf, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.config.RPC.Enable {
		return fmt.Errorf("rpc is disabled, nothing to serve")
	}

	items, err := inventory.NewService(a.store.DB())
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	server := servers.NewServer(ctx, a.config.RPC, a.upgrader, items, servers.Options{})
	errCh := server.Start()

	select {
	case <-ctx.Done():
		logrus.Info("Received shutdown signal, closing...")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	return server.Close(shutdownCtx)
}

func upgrade(c *kingpin.ParseContext) error {
	a, err := newApp(conf, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.Close()

	from := moduleFrom
	if from == "" {
		from = a.config.Migration.ModuleFrom
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := a.upgrader.Upgrade(ctx, from)
	if result != nil {
		printUpgradeResult(result)
	}
	return err
}

func printUpgradeResult(result *migration.UpgradeResult) {
	for _, name := range result.Skipped {
		fmt.Printf("%-32s skipped\n", name)
	}
	for name, r := range result.Results {
		line := fmt.Sprintf("%-32s %-10s records=%d batches=%d duration=%s",
			name, r.Status, r.RecordsProcessed, r.Batches, r.Duration().Round(time.Millisecond))
		if r.Err != nil {
			line += " error=" + r.Err.Error()
		}
		fmt.Println(line)
	}
	if result.BackupPath != "" {
		fmt.Printf("backup: %s\n", result.BackupPath)
	}
}

func restore(c *kingpin.ParseContext) error {
	cfg, closer, err := loadConfig(conf)
	if err != nil {
		return err
	}
	defer closer.Close()

	locks := migration.NewLockManager(cfg.Database.Path)
	if locks.IsLocked() {
		return fmt.Errorf("database is being upgraded, lock file %s exists", locks.LockPath())
	}

	backups := migration.NewBackupManager(cfg.Database.Path, cfg.Migration.MaxBackups)
	path := backupPath
	if path == "" {
		if path, err = backups.LatestBackup(); err != nil {
			return err
		}
		if path == "" {
			return fmt.Errorf("no backup found for %s", cfg.Database.Path)
		}
	}
	if err := backups.RestoreBackup(path); err != nil {
		return err
	}
	logrus.WithField("backup", path).Info("database restored")
	return nil
}

func listBackups(c *kingpin.ParseContext) error {
	cfg, closer, err := loadConfig(conf)
	if err != nil {
		return err
	}
	defer closer.Close()

	backups, err := migration.NewBackupManager(cfg.Database.Path, cfg.Migration.MaxBackups).ListBackups()
	if err != nil {
		return err
	}
	for _, b := range backups {
		info, err := os.Stat(b)
		if err != nil {
			continue
		}
		fmt.Printf("%s\t%d\t%s\n", b, info.Size(), info.ModTime().Format(time.RFC3339))
	}
	return nil
}

func initConfig(c *kingpin.ParseContext) error {
	if _, err := os.Stat(initPath); err == nil {
		return fmt.Errorf("config file %s already exists", initPath)
	}
	cfg := configs.NewConfig()
	cfg.File = initPath
	if err := cfg.Marshal(); err != nil {
		return err
	}
	fmt.Printf("config written to %s\n", initPath)
	return nil
}
