package util

import (
	"fmt"
	"os/exec"
	"strings"
)

// ResolveBinary 优先使用指定路径，否则在当前目录和 PATH 中查找
func ResolveBinary(path, name string) (string, error) {
	if path != "" {
		if FileExists(path) {
			return path, nil
		}
		if found, err := exec.LookPath(path); err == nil {
			return found, nil
		}
		return "", fmt.Errorf("找不到 %s: %s", name, path)
	}
	if found := FindExecutable(name); found != "" {
		Logger.Debug("自动查找到 %s: %s", name, found)
		return found, nil
	}
	return "", fmt.Errorf("找不到 %s，请安装或通过参数指定路径", name)
}

// ExecuteCommandWithOutput 执行命令并返回输出
func ExecuteCommandWithOutput(binary string, args ...string) (string, error) {
	Logger.Debug("执行命令: %s %s", binary, strings.Join(args, " "))

	output, err := exec.Command(binary, args...).CombinedOutput()
	if err != nil {
		if len(output) > 0 {
			Logger.Debug("命令输出: %s", string(output))
		}
		return string(output), fmt.Errorf("命令执行失败: %w", err)
	}
	return string(output), nil
}

// BinaryVersion 读取 ffmpeg/ffplay -version 的第一行
func BinaryVersion(binary string) string {
	output, err := ExecuteCommandWithOutput(binary, "-version")
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(output, "\n")
	return strings.TrimSpace(line)
}
