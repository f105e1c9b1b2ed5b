package util

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// readFile 读取 file: 地址对应的本地播放列表或分段
func readFile(filePath string) ([]byte, error) {
	if runtime.GOOS == "windows" {
		// file:///C:/radio/index.m3u8 解析后路径为 /C:/radio/index.m3u8
		filePath = strings.TrimPrefix(filePath, "/")
	}
	return os.ReadFile(filepath.FromSlash(filePath))
}

// FileExists 路径存在且不是目录
func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	return err == nil && !info.IsDir()
}

// CreateDir 创建目录
func CreateDir(dirPath string) error {
	return os.MkdirAll(dirPath, 0o755)
}

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatFileSize 格式化字节数，1024进制
func FormatFileSize(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", max(bytes, 0))
	}
	size := float64(bytes)
	unit := 0
	for size >= 1024 && unit < len(sizeUnits)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", size, sizeUnits[unit])
}

// FindExecutable 按 当前目录、程序目录、PATH 的顺序查找 ffplay/ffmpeg，找不到返回空字符串
func FindExecutable(name string) string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		name += ".exe"
	}

	var dirs []string
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	for _, dir := range dirs {
		if candidate := filepath.Join(dir, name); FileExists(candidate) {
			return candidate
		}
	}

	if found, err := exec.LookPath(name); err == nil {
		return found
	}
	return ""
}
