package configs

import "gopkg.in/yaml.v3"

// DecorateConfigNode 将硬编码的中文注释注入到配置节点树中。
func DecorateConfigNode(node *yaml.Node) {
	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 {
		return
	}
	root := node.Content[0]
	if root.Kind != yaml.MappingNode {
		return
	}

	root.HeadComment = `# 这个配置文件内的注释是自动生成的，请不要手动修改。
# 需要修改注释时，请在 src/configs/config_comments.go 文件内修改。
# 所有配置项都可以用 ROWMIGRATE_* 环境变量覆盖，也可以写在 .env 文件中。`

	setFieldHeadComment(root, "rpc", "# 管理接口（迁移任务、批量写入、metrics）")

	setFieldHeadComment(root, "database", "# 物品数据库配置")
	if dbNode := findNode(root, "database"); dbNode != nil {
		setFieldLineComment(dbNode, "path", "# SQLite 数据库文件路径")
		setFieldLineComment(dbNode, "busy_timeout", "# 数据库被锁时的最长等待时间，例如 5s")
	}

	setFieldHeadComment(root, "migration", "# 升级迁移配置")
	if migrationNode := findNode(root, "migration"); migrationNode != nil {
		setFieldComment(migrationNode, "batch_size", "# 每批更新的记录数，整个迁移在一个事务内完成", "")
		setFieldComment(migrationNode, "parallel", "# 是否并行执行多个迁移（每个迁移各自一个事务）", "")
		setFieldComment(migrationNode, "backup",
			`# 升级前是否备份数据库
# 备份文件与数据库位于同一目录，可以用 restore 命令恢复`, "")
		setFieldComment(migrationNode, "max_backups", "# 最多保留的备份数，超出的旧备份会被删除", "")
		setFieldComment(migrationNode, "module_from",
			`# 升级前的模块版本，例如 mod-inventory-storage-19.1.0
# 留空表示全新安装，不执行任何迁移`, "")
	}

	// Sentry 配置注释
	setFieldHeadComment(root, "sentry", "# Sentry 错误监控配置（用于收集崩溃日志）")
	if sentryNode := findNode(root, "sentry"); sentryNode != nil {
		setFieldComment(sentryNode, "enable", "# 是否启用 Sentry 错误监控", "")
		setFieldComment(sentryNode, "dsn", "# Sentry DSN，留空则禁用。申请地址：https://sentry.io/", "")
		setFieldComment(sentryNode, "environment", "# 环境标识：production 或 development", "")
	}
}

func findNode(mapNode *yaml.Node, key string) *yaml.Node {
	for i := 0; i < len(mapNode.Content); i += 2 {
		if mapNode.Content[i].Value == key {
			return mapNode.Content[i+1]
		}
	}
	return nil
}

func setFieldComment(mapNode *yaml.Node, key, headComment, lineComment string) {
	for i := 0; i < len(mapNode.Content); i += 2 {
		k := mapNode.Content[i]
		if k.Value == key {
			if headComment != "" {
				k.HeadComment = headComment
			}
			if lineComment != "" {
				k.LineComment = lineComment
			}
			return
		}
	}
}

func setFieldLineComment(mapNode *yaml.Node, key, lineComment string) {
	for i := 0; i < len(mapNode.Content); i += 2 {
		k := mapNode.Content[i]
		if k.Value == key {
			k.LineComment = lineComment
			return
		}
	}
}

func setFieldHeadComment(mapNode *yaml.Node, key, headComment string) {
	for i := 0; i < len(mapNode.Content); i += 2 {
		k := mapNode.Content[i]
		if k.Value == key {
			k.HeadComment = headComment
			return
		}
	}
}
