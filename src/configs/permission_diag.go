//go:build !windows

package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// PermissionDiagnostics 包含权限诊断信息
type PermissionDiagnostics struct {
	FilePath    string
	FileExists  bool
	CanRead     bool
	CanWrite    bool
	DirWritable bool
	FileMode    os.FileMode
	OwnerUID    uint32
	CurrentUID  int
	IsDocker    bool
	Suggestions []string
}

func isInContainer() bool {
	if os.Getenv("IS_DOCKER") != "" {
		return true
	}
	_, err := os.Stat("/.dockerenv")
	return err == nil
}

// DiagnoseFilePermission 诊断配置文件或数据库文件的权限问题
func DiagnoseFilePermission(filePath string) *PermissionDiagnostics {
	diag := &PermissionDiagnostics{
		FilePath:   filePath,
		CurrentUID: os.Getuid(),
		IsDocker:   isInContainer(),
	}

	// SQLite 需要在同一目录下创建 -wal/-shm 文件以及备份
	diag.DirWritable = dirWritable(filepath.Dir(filePath))

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		diag.Suggestions = append(diag.Suggestions,
			fmt.Sprintf("文件 %s 不存在，请检查路径是否正确", filePath))
		if !diag.DirWritable {
			diag.Suggestions = append(diag.Suggestions,
				fmt.Sprintf("目录 %s 不可写，无法创建该文件", filepath.Dir(filePath)))
		}
		return diag
	}
	if err != nil {
		diag.Suggestions = append(diag.Suggestions,
			fmt.Sprintf("无法获取文件信息: %v", err))
		return diag
	}

	diag.FileExists = true
	diag.FileMode = fileInfo.Mode()
	if stat, ok := fileInfo.Sys().(*syscall.Stat_t); ok {
		diag.OwnerUID = stat.Uid
	}

	if f, err := os.OpenFile(filePath, os.O_RDONLY, 0); err == nil {
		diag.CanRead = true
		f.Close()
	}
	if f, err := os.OpenFile(filePath, os.O_WRONLY|os.O_APPEND, 0); err == nil {
		diag.CanWrite = true
		f.Close()
	}

	diag.generateSuggestions()
	return diag
}

func dirWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".perm-check-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	_ = os.Remove(name)
	return true
}

// generateSuggestions 根据诊断结果生成建议
func (d *PermissionDiagnostics) generateSuggestions() {
	if !d.CanRead {
		d.Suggestions = append(d.Suggestions,
			fmt.Sprintf("无法读取文件 %s，当前权限: %v，所有者 UID %d，当前进程 UID %d",
				d.FilePath, d.FileMode, d.OwnerUID, d.CurrentUID))
		if d.IsDocker && d.OwnerUID == 0 && d.CurrentUID != 0 {
			d.Suggestions = append(d.Suggestions,
				"文件属于 root 用户，但容器以非 root 用户运行，请调整挂载目录的所有者")
		}
	}
	if !d.CanWrite {
		d.Suggestions = append(d.Suggestions,
			fmt.Sprintf("无法写入文件 %s，当前权限: %v", d.FilePath, d.FileMode))
	}
	if !d.DirWritable {
		d.Suggestions = append(d.Suggestions,
			fmt.Sprintf("目录 %s 不可写，数据库日志文件和升级备份将无法创建", filepath.Dir(d.FilePath)))
	}
}

// FormatError 格式化权限诊断为用户友好的错误信息
func (d *PermissionDiagnostics) FormatError() string {
	if len(d.Suggestions) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n========== 权限诊断信息 ==========\n")
	for _, suggestion := range d.Suggestions {
		sb.WriteString(suggestion)
		sb.WriteString("\n")
	}
	sb.WriteString("===================================\n")
	return sb.String()
}
