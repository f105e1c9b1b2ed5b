package command

import (
	"fmt"
	"net/url"
	"strings"

	"NHK-Radio-GO/internal/entity"
	"NHK-Radio-GO/internal/radiru"
)

// MyOption play 命令的选项
type MyOption struct {
	// 地区代码，支持日文地名和旧的数字代码
	Area string `json:"area,omitempty"`

	// 频道
	Kind entity.ChannelKind `json:"kind"`

	// 直接播放的HLS地址，设置后忽略地区和频道
	URL string `json:"url,omitempty"`

	// 没有指定地区时显示选择界面
	Interactive bool `json:"interactive"`
}

// ParsePlayOption 解析 play 的位置参数和 --url
func ParsePlayOption(args []string, rawURL string) (*MyOption, error) {
	option := &MyOption{Kind: entity.ChannelR1}

	if rawURL != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("--url 不能和地区、频道同时使用")
		}
		u, err := url.Parse(rawURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "file") {
			return nil, fmt.Errorf("无效的URL: %s", rawURL)
		}
		option.URL = rawURL
		return option, nil
	}

	switch len(args) {
	case 0:
		option.Interactive = true
	case 1, 2:
		option.Area = radiru.NormalizeArea(args[0])
		if len(args) == 2 {
			kind, ok := entity.ParseChannelKind(args[1])
			if !ok {
				return nil, fmt.Errorf("无效的频道: %s，必须是 r1, r2 或 fm", args[1])
			}
			option.Kind = kind
		}
	default:
		return nil, fmt.Errorf("参数过多: %s", strings.Join(args, " "))
	}
	return option, nil
}
