// Package migration 提供在线批量数据迁移
//
// 一次迁移由 Definition 描述：打开游标的 Open 与处理一批数据的 Update，均由调用方注入。
// Runner 在单个事务中驱动游标，经 batchstream.Accumulator 聚合为批次，逐批暂停游标、写入、恢复，
// 游标在每条退出路径上都会被关闭，成功提交，失败回滚。
//
// Gate 根据升级前的模块版本判断迁移是否适用：全新安装（空版本）不需要迁移，
// 只有早于引入版本的升级才需要。
//
// Registry 保存所有迁移，Upgrader 在升级时执行适用的迁移，并使用锁文件防止并发升级、
// 在升级前通过 VACUUM INTO 生成备份。
//
// 基本用法：
//
//	runner, err := migration.NewRunner(migration.DB{DB: db}, migration.Definition[Item]{
//	    Name:         "shelving_order",
//	    IntroducedIn: "20.2.0",
//	    Open:         openCursor,
//	    Update:       updateBatch,
//	})
//	registry := migration.NewRegistry()
//	registry.MustRegister(runner)
//	upgrader, err := migration.NewUpgrader(registry, db, migration.UpgraderConfig{DBPath: path, Backup: true})
//	result, err := upgrader.Upgrade(ctx, "mod-inventory-storage-19.1.0")
package migration
