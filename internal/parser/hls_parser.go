package parser

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"NHK-Radio-GO/internal/entity"
)

// HLSTags HLS标签常量
const (
	TagEXTM3U              = "#EXTM3U"
	TagEXTINF              = "#EXTINF"
	TagEXTXVERSION         = "#EXT-X-VERSION"
	TagEXTXTARGETDUR       = "#EXT-X-TARGETDURATION"
	TagEXTXMEDIASEQ        = "#EXT-X-MEDIA-SEQUENCE"
	TagEXTXDISCONTINUITYSQ = "#EXT-X-DISCONTINUITY-SEQUENCE"
	TagEXTXDISCONTINUITY   = "#EXT-X-DISCONTINUITY"
	TagEXTXENDLIST         = "#EXT-X-ENDLIST"
	TagEXTXPLAYLIST        = "#EXT-X-PLAYLIST-TYPE"
	TagEXTXKEY             = "#EXT-X-KEY"
	TagEXTXSTREAM          = "#EXT-X-STREAM-INF"
	TagEXTXMEDIA           = "#EXT-X-MEDIA"
	TagEXTXBYTERANGE       = "#EXT-X-BYTERANGE"
	TagEXTXPROGRAMDATETIME = "#EXT-X-PROGRAM-DATE-TIME"
)

var attributeRegex = regexp.MustCompile(`([A-Z0-9-]+)=("[^"]*"|[^,]*)`)

// HLSParser HLS媒体播放列表解析器，无状态，可并发使用
type HLSParser struct{}

// NewHLSParser 创建HLS解析器
func NewHLSParser() *HLSParser {
	return &HLSParser{}
}

// parseState 单次解析的中间状态
type parseState struct {
	baseURL       string
	playlist      *entity.Playlist
	currentKey    *entity.EncryptInfo
	pending       *entity.MediaSegment
	pendingLine   int
	discontinuity bool
	dateTime      *time.Time
	byteRange     *entity.ByteRange
	mediaSeqSeen  bool

	// 每个资源上一段BYTERANGE的结尾，没有offset的段从这里继续
	rangeEnd map[string]int64
}

// IsMasterPlaylist 判断是否是主播放列表
func IsMasterPlaylist(content string) bool {
	for _, line := range splitLines(content) {
		if strings.HasPrefix(line, TagEXTXSTREAM) {
			return true
		}
		// 必须精确匹配 "#EXT-X-MEDIA:"，"#EXT-X-MEDIA-SEQUENCE" 也以 "#EXT-X-MEDIA" 开头
		if strings.HasPrefix(line, TagEXTXMEDIA+":") {
			return true
		}
	}
	return false
}

// ParseMediaPlaylist 解析媒体播放列表，相对地址基于 baseURL 解析
func (p *HLSParser) ParseMediaPlaylist(content, baseURL string) (*entity.Playlist, error) {
	lines := splitLines(content)

	// 检查是否是有效的M3U8文件
	first := 0
	for first < len(lines) && lines[first] == "" {
		first++
	}
	if first == len(lines) {
		return nil, &entity.MalformedPlaylistError{Line: 1, Reason: "empty playlist"}
	}
	if !strings.HasPrefix(strings.TrimPrefix(lines[first], "\ufeff"), TagEXTM3U) {
		return nil, &entity.MalformedPlaylistError{Line: first + 1, Reason: "missing #EXTM3U header"}
	}

	st := &parseState{
		baseURL:  baseURL,
		playlist: entity.NewPlaylist(),
		rangeEnd: make(map[string]int64),
	}
	st.playlist.URL = baseURL

	for i := first + 1; i < len(lines); i++ {
		if err := st.parseLine(lines[i], i+1); err != nil {
			return nil, err
		}
	}

	if st.pending != nil {
		return nil, &entity.MalformedPlaylistError{Line: st.pendingLine, Reason: "EXTINF without segment URI"}
	}

	return st.playlist, nil
}

func (st *parseState) parseLine(line string, lineNo int) error {
	switch {
	case line == "":
		return nil
	case strings.HasPrefix(line, TagEXTXSTREAM), strings.HasPrefix(line, TagEXTXMEDIA+":"):
		return &entity.MalformedPlaylistError{Line: lineNo, Reason: "master playlist tag in media playlist"}
	case strings.HasPrefix(line, TagEXTXVERSION+":"):
		v, err := strconv.Atoi(tagValue(line))
		if err != nil {
			return &entity.MalformedPlaylistError{Line: lineNo, Reason: "invalid EXT-X-VERSION"}
		}
		st.playlist.Version = v
	case strings.HasPrefix(line, TagEXTXTARGETDUR+":"):
		// 目标时长
		d, err := strconv.ParseFloat(tagValue(line), 64)
		if err != nil || d < 0 {
			return &entity.MalformedPlaylistError{Line: lineNo, Reason: "invalid EXT-X-TARGETDURATION"}
		}
		st.playlist.TargetDuration = d
	case strings.HasPrefix(line, TagEXTXMEDIASEQ+":"):
		// 媒体序列只能在第一个分段之前出现一次
		seq, err := strconv.ParseUint(tagValue(line), 10, 64)
		if err != nil {
			return &entity.MalformedPlaylistError{Line: lineNo, Reason: "invalid EXT-X-MEDIA-SEQUENCE"}
		}
		if len(st.playlist.Segments) > 0 || st.pending != nil {
			return &entity.MalformedPlaylistError{Line: lineNo, Reason: "EXT-X-MEDIA-SEQUENCE after first segment"}
		}
		if st.mediaSeqSeen && seq != st.playlist.MediaSequence {
			return &entity.MalformedPlaylistError{Line: lineNo, Reason: "conflicting EXT-X-MEDIA-SEQUENCE"}
		}
		st.mediaSeqSeen = true
		st.playlist.MediaSequence = seq
	case strings.HasPrefix(line, TagEXTXDISCONTINUITYSQ+":"):
		seq, err := strconv.ParseUint(tagValue(line), 10, 64)
		if err != nil {
			return &entity.MalformedPlaylistError{Line: lineNo, Reason: "invalid EXT-X-DISCONTINUITY-SEQUENCE"}
		}
		st.playlist.DiscontinuitySequence = seq
	case line == TagEXTXDISCONTINUITY:
		st.discontinuity = true
	case strings.HasPrefix(line, TagEXTXPLAYLIST+":"):
		st.playlist.PlaylistType = tagValue(line)
	case strings.HasPrefix(line, TagEXTXENDLIST):
		st.playlist.IsEnded = true
	case strings.HasPrefix(line, TagEXTXKEY+":"):
		key, err := st.parseKeyInfo(tagValue(line))
		if err != nil {
			return &entity.MalformedPlaylistError{Line: lineNo, Reason: err.Error()}
		}
		st.currentKey = key
	case strings.HasPrefix(line, TagEXTINF+":"):
		if st.pending != nil {
			return &entity.MalformedPlaylistError{Line: lineNo, Reason: "EXTINF without segment URI"}
		}
		seg, err := parseExtInf(tagValue(line))
		if err != nil {
			return &entity.MalformedPlaylistError{Line: lineNo, Reason: err.Error()}
		}
		st.pending = seg
		st.pendingLine = lineNo
	case strings.HasPrefix(line, TagEXTXBYTERANGE+":"):
		br, err := parseByteRange(tagValue(line))
		if err != nil {
			return &entity.MalformedPlaylistError{Line: lineNo, Reason: err.Error()}
		}
		st.byteRange = br
	case strings.HasPrefix(line, TagEXTXPROGRAMDATETIME+":"):
		// 时间格式不合法时忽略
		if t, err := time.Parse(time.RFC3339Nano, tagValue(line)); err == nil {
			st.dateTime = &t
		}
	case strings.HasPrefix(line, "#"):
		// 未知标签和注释
	default:
		return st.addSegment(line, lineNo)
	}
	return nil
}

// addSegment URI行，完成当前分段
func (st *parseState) addSegment(uri string, lineNo int) error {
	if st.pending == nil {
		return &entity.MalformedPlaylistError{Line: lineNo, Reason: "segment URI without EXTINF"}
	}

	seg := st.pending
	seg.SequenceNumber = st.playlist.MediaSequence + uint64(len(st.playlist.Segments))
	seg.RawURI = uri
	seg.URL = ResolveURL(st.baseURL, uri)
	if br := st.byteRange; br != nil {
		if br.Offset != nil {
			br.Start = *br.Offset
		} else {
			br.Start = st.rangeEnd[seg.URL]
		}
		st.rangeEnd[seg.URL] = br.Start + br.Length
		seg.ByteRange = br
	}
	seg.Discontinuity = st.discontinuity
	seg.DateTime = st.dateTime
	if st.currentKey != nil {
		seg.EncryptInfo = st.currentKey
		if len(st.currentKey.IV) > 0 {
			seg.IV = append([]byte(nil), st.currentKey.IV...)
		}
	}

	st.playlist.Segments = append(st.playlist.Segments, seg)
	st.pending = nil
	st.byteRange = nil
	st.discontinuity = false
	st.dateTime = nil
	return nil
}

// parseKeyInfo 解析加密密钥信息，METHOD=NONE 返回 nil
func (st *parseState) parseKeyInfo(attrStr string) (*entity.EncryptInfo, error) {
	attrs := parseAttributes(attrStr)

	method := entity.ParseEncryptMethod(attrs["METHOD"])
	switch method {
	case entity.EncryptMethodNone:
		return nil, nil
	case entity.EncryptMethodAES128:
	default:
		return nil, fmt.Errorf("unsupported encryption method %q", attrs["METHOD"])
	}

	info := entity.NewEncryptInfo()
	info.Method = method

	uri, ok := attrs["URI"]
	if !ok || uri == "" {
		return nil, fmt.Errorf("AES-128 key without URI")
	}
	info.RawURI = uri
	info.URI = ResolveURL(st.baseURL, uri)

	if iv, ok := attrs["IV"]; ok {
		ivBytes, err := parseIV(iv)
		if err != nil {
			return nil, err
		}
		info.IV = ivBytes
	}

	info.KeyFormat = attrs["KEYFORMAT"]
	info.KeyFormatV = attrs["KEYFORMATVERSIONS"]
	return info, nil
}

// parseIV 解析IV，移除0x前缀并转换为16字节
func parseIV(value string) ([]byte, error) {
	ivStr := value
	if strings.HasPrefix(ivStr, "0x") || strings.HasPrefix(ivStr, "0X") {
		ivStr = ivStr[2:]
	}
	ivBytes, err := hex.DecodeString(ivStr)
	if err != nil {
		return nil, fmt.Errorf("invalid IV %q", value)
	}
	if len(ivBytes) != 16 {
		return nil, fmt.Errorf("IV must be 16 bytes, got %d", len(ivBytes))
	}
	return ivBytes, nil
}

// parseExtInf 解析EXTINF标签: 时长[,标题]
func parseExtInf(content string) (*entity.MediaSegment, error) {
	durStr, title, _ := strings.Cut(content, ",")
	duration, err := strconv.ParseFloat(strings.TrimSpace(durStr), 64)
	if err != nil || duration < 0 {
		return nil, fmt.Errorf("invalid EXTINF duration %q", durStr)
	}
	seg := entity.NewMediaSegment()
	seg.Duration = duration
	seg.Title = strings.TrimSpace(title)
	return seg, nil
}

// parseByteRange 解析字节范围，格式: length[@offset]
func parseByteRange(rangeStr string) (*entity.ByteRange, error) {
	lengthStr, offsetStr, hasOffset := strings.Cut(rangeStr, "@")
	length, err := strconv.ParseInt(strings.TrimSpace(lengthStr), 10, 64)
	if err != nil || length < 0 {
		return nil, fmt.Errorf("invalid EXT-X-BYTERANGE %q", rangeStr)
	}
	br := &entity.ByteRange{Length: length}
	if hasOffset {
		offset, err := strconv.ParseInt(strings.TrimSpace(offsetStr), 10, 64)
		if err != nil || offset < 0 {
			return nil, fmt.Errorf("invalid EXT-X-BYTERANGE %q", rangeStr)
		}
		br.Offset = &offset
	}
	return br, nil
}

// parseAttributes 解析属性列表，去掉引号
func parseAttributes(attrStr string) map[string]string {
	attrs := make(map[string]string)
	for _, match := range attributeRegex.FindAllStringSubmatch(attrStr, -1) {
		attrs[match[1]] = strings.Trim(strings.TrimSpace(match[2]), `"`)
	}
	return attrs
}

func tagValue(line string) string {
	_, value, _ := strings.Cut(line, ":")
	return strings.TrimSpace(value)
}

func splitLines(content string) []string {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return lines
}

// ResolveURL 解析相对URL为绝对URL
// 支持绝对地址、"//host/path"、"/path" 以及相对路径
func ResolveURL(base, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "base64:") {
		return ref
	}

	baseURL, err := url.Parse(base)
	if err != nil || baseURL.Scheme == "" {
		if strings.HasPrefix(ref, "//") {
			return "https:" + ref
		}
		return ref
	}

	relativeURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}

	return baseURL.ResolveReference(relativeURL).String()
}
