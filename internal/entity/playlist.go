package entity

// Playlist 媒体播放列表快照
type Playlist struct {
	URL                   string          `json:"url"`
	Version               int             `json:"version,omitempty"`
	TargetDuration        float64         `json:"targetDuration"`
	MediaSequence         uint64          `json:"mediaSequence"`
	DiscontinuitySequence uint64          `json:"discontinuitySequence,omitempty"`
	PlaylistType          string          `json:"playlistType,omitempty"`
	IsEnded               bool            `json:"isEnded"`
	Segments              []*MediaSegment `json:"segments"`
}

// NewPlaylist 创建新的播放列表
func NewPlaylist() *Playlist {
	return &Playlist{
		Segments: make([]*MediaSegment, 0),
	}
}

// IsLive 没有ENDLIST即为直播
func (p *Playlist) IsLive() bool {
	return !p.IsEnded
}

// GetTotalDuration 获取总时长
func (p *Playlist) GetTotalDuration() float64 {
	var total float64
	for _, seg := range p.Segments {
		total += seg.Duration
	}
	return total
}

// GetSegmentsCount 获取总段数
func (p *Playlist) GetSegmentsCount() int {
	return len(p.Segments)
}

// FirstSequence 第一个分段的序号
func (p *Playlist) FirstSequence() (uint64, bool) {
	if len(p.Segments) == 0 {
		return 0, false
	}
	return p.Segments[0].SequenceNumber, true
}

// LastSequence 最后一个分段的序号
func (p *Playlist) LastSequence() (uint64, bool) {
	if len(p.Segments) == 0 {
		return 0, false
	}
	return p.Segments[len(p.Segments)-1].SequenceNumber, true
}

// HasEncryptedSegments 是否有加密段
func (p *Playlist) HasEncryptedSegments() bool {
	for _, segment := range p.Segments {
		if segment.IsEncrypted() {
			return true
		}
	}
	return false
}

// Equals 比较两个快照的全部字段
func (p *Playlist) Equals(other *Playlist) bool {
	if other == nil {
		return false
	}
	if p.URL != other.URL || p.Version != other.Version ||
		p.TargetDuration != other.TargetDuration ||
		p.MediaSequence != other.MediaSequence ||
		p.DiscontinuitySequence != other.DiscontinuitySequence ||
		p.PlaylistType != other.PlaylistType ||
		p.IsEnded != other.IsEnded ||
		len(p.Segments) != len(other.Segments) {
		return false
	}
	for i := range p.Segments {
		if !p.Segments[i].Equals(other.Segments[i]) {
			return false
		}
	}
	return true
}
