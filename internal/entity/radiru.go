package entity

import "encoding/xml"

// RadiruConfig config_web.xml 的根节点
type RadiruConfig struct {
	XMLName          xml.Name      `xml:"radiru_config"`
	Info             string        `xml:"info"`
	StreamURL        StreamURLList `xml:"stream_url"`
	URLProgramNoa    string        `xml:"url_program_noa"`
	URLProgramDay    string        `xml:"url_program_day"`
	URLProgramDetail string        `xml:"url_program_detail"`
}

// StreamURLList 各地区的流地址
type StreamURLList struct {
	Data []StationData `xml:"data"`
}

// StationData 单个地区的配置
type StationData struct {
	AreaJP  string `xml:"areajp" json:"areajp"`
	Area    string `xml:"area" json:"area"`
	APIKey  string `xml:"apikey" json:"apikey"`
	AreaKey string `xml:"areakey" json:"areakey"`
	R1HLS   string `xml:"r1hls" json:"r1hls"`
	R2HLS   string `xml:"r2hls" json:"r2hls"`
	FMHLS   string `xml:"fmhls" json:"fmhls"`
}

// HLSURL 返回指定频道的HLS地址
func (s StationData) HLSURL(kind ChannelKind) string {
	switch kind {
	case ChannelR2:
		return s.R2HLS
	case ChannelFM:
		return s.FMHLS
	default:
		return s.R1HLS
	}
}

// FindArea 按地区代码查找
func (c *RadiruConfig) FindArea(area string) (StationData, bool) {
	for _, data := range c.StreamURL.Data {
		if data.Area == area {
			return data, true
		}
	}
	return StationData{}, false
}

// ProgramRoot 节目信息JSON，只保留需要的字段
type ProgramRoot struct {
	R1 ProgramChannel `json:"r1"`
	R2 ProgramChannel `json:"r2"`
	R3 ProgramChannel `json:"r3"`
}

// Channel 返回指定频道的节目信息
func (p *ProgramRoot) Channel(kind ChannelKind) ProgramChannel {
	switch kind {
	case ChannelR2:
		return p.R2
	case ChannelFM:
		return p.R3
	default:
		return p.R1
	}
}

// ProgramChannel 单个频道的前后节目
type ProgramChannel struct {
	Previous  *BroadcastEvent `json:"previous,omitempty"`
	Present   *BroadcastEvent `json:"present,omitempty"`
	Following *BroadcastEvent `json:"following,omitempty"`
}

// BroadcastEvent 节目
type BroadcastEvent struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	StartDate   string        `json:"startDate"`
	EndDate     string        `json:"endDate"`
	URL         string        `json:"url"`
	About       *ProgramAbout `json:"about,omitempty"`
}

// ProgramAbout 节目系列信息
type ProgramAbout struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Title 优先使用系列名称
func (b *BroadcastEvent) Title() string {
	if b.About != nil && b.About.Name != "" {
		return b.About.Name
	}
	return b.Name
}

// Summary 节目简介
func (b *BroadcastEvent) Summary() string {
	if b.About != nil && b.About.Description != "" {
		return b.About.Description
	}
	return b.Description
}
