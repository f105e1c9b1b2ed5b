package radiru

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"NHK-Radio-GO/internal/entity"
	"NHK-Radio-GO/internal/util"
)

// DefaultConfigURL らじる★らじる 的地区配置
const DefaultConfigURL = "https://www.nhk.or.jp/radio/config/config_web.xml"

// Fetcher 获取字节数据，*util.HTTPUtil 满足该接口
type Fetcher interface {
	GetBytes(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// Client NHK 电台配置和节目信息客户端
type Client struct {
	fetcher   Fetcher
	configURL string
	retry     util.RetryConfig
}

// NewClient 创建客户端，configURL 为空时使用默认地址
func NewClient(fetcher Fetcher, configURL string) *Client {
	if configURL == "" {
		configURL = DefaultConfigURL
	}
	return &Client{
		fetcher:   fetcher,
		configURL: configURL,
		retry:     util.DefaultRetryConfig,
	}
}

// FetchConfig 获取并解析 config_web.xml
func (c *Client) FetchConfig(ctx context.Context) (*entity.RadiruConfig, error) {
	data, err := c.get(ctx, c.configURL)
	if err != nil {
		return nil, fmt.Errorf("获取电台配置失败: %w", err)
	}
	var config entity.RadiruConfig
	if err := xml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析电台配置失败: %w", err)
	}
	if len(config.StreamURL.Data) == 0 {
		return nil, fmt.Errorf("电台配置中没有任何地区")
	}
	util.Logger.Debug("已获取电台配置: %d 个地区", len(config.StreamURL.Data))
	return &config, nil
}

// FetchProgram 获取节目信息
func (c *Client) FetchProgram(ctx context.Context, programURL string) (*entity.ProgramRoot, error) {
	data, err := c.get(ctx, programURL)
	if err != nil {
		return nil, fmt.Errorf("获取节目信息失败: %w", err)
	}
	var program entity.ProgramRoot
	if err := json.Unmarshal(data, &program); err != nil {
		return nil, fmt.Errorf("解析节目信息失败: %w, 响应: %s", err, util.TruncateString(string(data), 500))
	}
	return &program, nil
}

// FetchStationProgram 获取某个地区的节目信息
func (c *Client) FetchStationProgram(ctx context.Context, config *entity.RadiruConfig, station entity.StationData) (*entity.ProgramRoot, error) {
	return c.FetchProgram(ctx, ProgramURL(config, station))
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := util.DoRetry(ctx, func(ctx context.Context) error {
		body, err := c.fetcher.GetBytes(ctx, url, nil)
		if err != nil {
			return err
		}
		data = body
		return nil
	}, c.retry, nil)
	return data, err
}

// ProgramURL 由 url_program_noa 模板生成节目信息地址，模板是协议相对地址
func ProgramURL(config *entity.RadiruConfig, station entity.StationData) string {
	url := strings.TrimSpace(config.URLProgramNoa)
	if strings.HasPrefix(url, "//") {
		url = "https:" + url
	}
	return strings.ReplaceAll(url, "{area}", station.AreaKey)
}

var areaAliases = map[string]string{
	"東京":  "tokyo",
	"大阪":  "osaka",
	"名古屋": "nagoya",
	"札幌":  "sapporo",
	"仙台":  "sendai",
	"広島":  "hiroshima",
	"松山":  "matsuyama",
	"福岡":  "fukuoka",
	"130": "tokyo",
	"400": "osaka",
	"300": "nagoya",
	"010": "sapporo",
	"040": "sendai",
	"540": "hiroshima",
	"580": "matsuyama",
	"810": "fukuoka",
}

// NormalizeArea 把日文地名和旧的数字地区代码转换为地区代码
func NormalizeArea(area string) string {
	area = strings.ToLower(strings.TrimSpace(area))
	if alias, ok := areaAliases[area]; ok {
		return alias
	}
	return area
}

// ResolveStation 按地区（支持别名和 areakey）查找电台配置
func ResolveStation(config *entity.RadiruConfig, area string) (entity.StationData, error) {
	code := NormalizeArea(area)
	if station, ok := config.FindArea(code); ok {
		return station, nil
	}
	for _, data := range config.StreamURL.Data {
		if data.AreaKey == code || data.AreaJP == strings.TrimSpace(area) {
			return data, nil
		}
	}
	return entity.StationData{}, fmt.Errorf("未找到地区: %s", area)
}

// StreamURL 查找地区和频道对应的HLS地址
func StreamURL(config *entity.RadiruConfig, area string, kind entity.ChannelKind) (entity.StationData, string, error) {
	station, err := ResolveStation(config, area)
	if err != nil {
		return station, "", err
	}
	url := strings.TrimSpace(station.HLSURL(kind))
	if url == "" {
		return station, "", fmt.Errorf("%s 没有 %s 的直播地址", station.AreaJP, kind.DisplayName())
	}
	return station, url, nil
}
