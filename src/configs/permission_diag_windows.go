//go:build windows

package configs

// PermissionDiagnostics Windows 上不做 Unix 权限检查
type PermissionDiagnostics struct {
	FilePath    string
	Suggestions []string
}

func DiagnoseFilePermission(filePath string) *PermissionDiagnostics {
	return &PermissionDiagnostics{FilePath: filePath}
}

func (d *PermissionDiagnostics) FormatError() string {
	return ""
}
