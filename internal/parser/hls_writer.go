package parser

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"NHK-Radio-GO/internal/entity"
)

// EncodeMediaPlaylist 把播放列表重新序列化为M3U8文本
// 使用原始URI，相同 baseURL 下再次解析得到相同的播放列表
func EncodeMediaPlaylist(playlist *entity.Playlist) string {
	var sb strings.Builder

	sb.WriteString(TagEXTM3U + "\n")
	if playlist.Version > 0 {
		fmt.Fprintf(&sb, "%s:%d\n", TagEXTXVERSION, playlist.Version)
	}
	fmt.Fprintf(&sb, "%s:%s\n", TagEXTXTARGETDUR, formatFloat(playlist.TargetDuration))
	fmt.Fprintf(&sb, "%s:%d\n", TagEXTXMEDIASEQ, playlist.MediaSequence)
	if playlist.DiscontinuitySequence > 0 {
		fmt.Fprintf(&sb, "%s:%d\n", TagEXTXDISCONTINUITYSQ, playlist.DiscontinuitySequence)
	}
	if playlist.PlaylistType != "" {
		fmt.Fprintf(&sb, "%s:%s\n", TagEXTXPLAYLIST, playlist.PlaylistType)
	}

	var lastKey *entity.EncryptInfo
	for _, seg := range playlist.Segments {
		if !seg.EncryptInfo.Equal(lastKey) {
			sb.WriteString(encodeKey(seg.EncryptInfo))
			sb.WriteString("\n")
			lastKey = seg.EncryptInfo
		}
		if seg.Discontinuity {
			sb.WriteString(TagEXTXDISCONTINUITY + "\n")
		}
		if seg.DateTime != nil {
			fmt.Fprintf(&sb, "%s:%s\n", TagEXTXPROGRAMDATETIME, seg.DateTime.Format(time.RFC3339Nano))
		}
		fmt.Fprintf(&sb, "%s:%s,%s\n", TagEXTINF, formatFloat(seg.Duration), seg.Title)
		if seg.ByteRange != nil {
			if seg.ByteRange.Offset != nil {
				fmt.Fprintf(&sb, "%s:%d@%d\n", TagEXTXBYTERANGE, seg.ByteRange.Length, *seg.ByteRange.Offset)
			} else {
				fmt.Fprintf(&sb, "%s:%d\n", TagEXTXBYTERANGE, seg.ByteRange.Length)
			}
		}
		uri := seg.RawURI
		if uri == "" {
			uri = seg.URL
		}
		sb.WriteString(uri + "\n")
	}

	if playlist.IsEnded {
		sb.WriteString(TagEXTXENDLIST + "\n")
	}
	return sb.String()
}

// encodeKey 生成EXT-X-KEY标签，nil 表示 METHOD=NONE
func encodeKey(key *entity.EncryptInfo) string {
	if !key.IsEncrypted() {
		return TagEXTXKEY + ":METHOD=NONE"
	}
	uri := key.RawURI
	if uri == "" {
		uri = key.URI
	}
	attrs := []string{
		"METHOD=" + key.Method.String(),
		`URI="` + uri + `"`,
	}
	if len(key.IV) > 0 {
		attrs = append(attrs, "IV=0x"+strings.ToUpper(hex.EncodeToString(key.IV)))
	}
	if key.KeyFormat != "" {
		attrs = append(attrs, `KEYFORMAT="`+key.KeyFormat+`"`)
	}
	if key.KeyFormatV != "" {
		attrs = append(attrs, `KEYFORMATVERSIONS="`+key.KeyFormatV+`"`)
	}
	return TagEXTXKEY + ":" + strings.Join(attrs, ",")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
