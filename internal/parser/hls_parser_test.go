package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"NHK-Radio-GO/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "https://radio-stream.nhk.jp/hls/live/2023229/nhkradiruakr1/master48k.m3u8"

const livePlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:5
#EXT-X-MEDIA-SEQUENCE:100
#EXT-X-KEY:METHOD=AES-128,URI="key/1.key"
#EXTINF:5.005,
seg100.ts
#EXTINF:5.005,
seg101.ts
#EXT-X-KEY:METHOD=AES-128,URI="https://keys.example.com/2.key",IV=0x000102030405060708090A0B0C0D0E0F
#EXTINF:4.8,title
seg102.ts
`

func TestParseMediaPlaylist(t *testing.T) {
	pl, err := NewHLSParser().ParseMediaPlaylist(livePlaylist, baseURL)
	require.NoError(t, err)

	assert.Equal(t, 3, pl.Version)
	assert.Equal(t, float64(5), pl.TargetDuration)
	assert.Equal(t, uint64(100), pl.MediaSequence)
	assert.False(t, pl.IsEnded)
	assert.True(t, pl.IsLive())
	require.Len(t, pl.Segments, 3)

	for i, seg := range pl.Segments {
		assert.Equal(t, uint64(100+i), seg.SequenceNumber)
		assert.True(t, seg.IsEncrypted())
	}

	first := pl.Segments[0]
	assert.Equal(t, "https://radio-stream.nhk.jp/hls/live/2023229/nhkradiruakr1/seg100.ts", first.URL)
	assert.Equal(t, "https://radio-stream.nhk.jp/hls/live/2023229/nhkradiruakr1/key/1.key", first.EncryptInfo.URI)
	assert.Empty(t, first.IV)
	assert.Same(t, pl.Segments[0].EncryptInfo, pl.Segments[1].EncryptInfo)

	last := pl.Segments[2]
	assert.Equal(t, "title", last.Title)
	assert.Equal(t, "https://keys.example.com/2.key", last.EncryptInfo.URI)
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}, last.IV)
}

func TestParseMediaPlaylistKeyNoneClearsEncryption(t *testing.T) {
	content := `#EXTM3U
#EXT-X-TARGETDURATION:5
#EXT-X-KEY:METHOD=AES-128,URI="a.key"
#EXTINF:5,
a.ts
#EXT-X-KEY:METHOD=NONE
#EXTINF:5,
b.ts
#EXT-X-ENDLIST
`
	pl, err := NewHLSParser().ParseMediaPlaylist(content, baseURL)
	require.NoError(t, err)
	require.Len(t, pl.Segments, 2)
	assert.True(t, pl.Segments[0].IsEncrypted())
	assert.False(t, pl.Segments[1].IsEncrypted())
	assert.Equal(t, uint64(0), pl.Segments[0].SequenceNumber)
	assert.True(t, pl.IsEnded)
}

func TestParseMediaPlaylistTolerance(t *testing.T) {
	// CRLF、BOM、未知标签和注释都应被接受
	content := "\ufeff#EXTM3U\r\n#EXT-X-TARGETDURATION:6\r\n# comment\r\n#EXT-X-INDEPENDENT-SEGMENTS\r\n" +
		"#EXT-X-PROGRAM-DATE-TIME:2026-10-18T09:00:00.000+09:00\r\n#EXTINF:6.0\r\n/abs/seg.ts\r\n"
	pl, err := NewHLSParser().ParseMediaPlaylist(content, baseURL)
	require.NoError(t, err)
	require.Len(t, pl.Segments, 1)

	seg := pl.Segments[0]
	assert.Equal(t, "https://radio-stream.nhk.jp/abs/seg.ts", seg.URL)
	require.NotNil(t, seg.DateTime)
	assert.Equal(t, 2026, seg.DateTime.Year())
}

func TestParseMediaPlaylistByteRange(t *testing.T) {
	content := `#EXTM3U
#EXT-X-TARGETDURATION:5
#EXT-X-BYTERANGE:1000@0
#EXTINF:5,
all.ts
#EXT-X-BYTERANGE:500
#EXTINF:5,
all.ts
#EXT-X-BYTERANGE:200
#EXTINF:5,
other.ts
#EXT-X-BYTERANGE:300
#EXTINF:5,
all.ts
#EXT-X-BYTERANGE:100@4000
#EXTINF:5,
all.ts
#EXT-X-BYTERANGE:50
#EXTINF:5,
all.ts
`
	pl, err := NewHLSParser().ParseMediaPlaylist(content, baseURL)
	require.NoError(t, err)
	require.Len(t, pl.Segments, 6)

	first := pl.Segments[0].ByteRange
	require.NotNil(t, first)
	assert.Equal(t, int64(1000), first.Length)
	require.NotNil(t, first.Offset)
	assert.Equal(t, int64(0), *first.Offset)

	second := pl.Segments[1].ByteRange
	require.NotNil(t, second)
	assert.Nil(t, second.Offset)

	// 起始位置按资源分别累计，显式offset重新定位
	var starts []int64
	for _, seg := range pl.Segments {
		starts = append(starts, seg.ByteRange.Start)
	}
	assert.Equal(t, []int64{0, 1000, 0, 1500, 4000, 4100}, starts)
	assert.Equal(t, int64(1499), pl.Segments[1].GetStopRange())
	assert.Equal(t, int64(199), pl.Segments[2].GetStopRange())
}

func TestParseMediaPlaylistByteRangeWindowStart(t *testing.T) {
	// 窗口中第一段没有offset时从资源开头算，不受之前快照影响
	content := `#EXTM3U
#EXT-X-TARGETDURATION:5
#EXT-X-MEDIA-SEQUENCE:40
#EXT-X-BYTERANGE:10
#EXTINF:5,
all.ts
#EXT-X-BYTERANGE:10
#EXTINF:5,
all.ts
`
	pl, err := NewHLSParser().ParseMediaPlaylist(content, baseURL)
	require.NoError(t, err)
	require.Len(t, pl.Segments, 2)
	assert.Equal(t, int64(0), pl.Segments[0].ByteRange.Start)
	assert.Equal(t, int64(10), pl.Segments[1].ByteRange.Start)

	noRange := &entity.MediaSegment{}
	assert.Equal(t, int64(-1), noRange.GetStopRange())
}

func TestParseMediaPlaylistMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
	}{
		{"empty", "", 1},
		{"missing header", "#EXT-X-TARGETDURATION:5\n#EXTINF:5,\na.ts\n", 1},
		{"extinf without uri at end", "#EXTM3U\n#EXTINF:5,\n", 2},
		{"two extinf", "#EXTM3U\n#EXTINF:5,\n#EXTINF:5,\na.ts\n", 3},
		{"uri without extinf", "#EXTM3U\na.ts\n", 2},
		{"bad duration", "#EXTM3U\n#EXTINF:abc,\na.ts\n", 2},
		{"negative duration", "#EXTM3U\n#EXTINF:-1,\na.ts\n", 2},
		{"bad target duration", "#EXTM3U\n#EXT-X-TARGETDURATION:x\n", 2},
		{"bad media sequence", "#EXTM3U\n#EXT-X-MEDIA-SEQUENCE:-3\n", 2},
		{"media sequence after segment", "#EXTM3U\n#EXTINF:5,\na.ts\n#EXT-X-MEDIA-SEQUENCE:4\n", 4},
		{"unsupported method", "#EXTM3U\n#EXT-X-KEY:METHOD=SAMPLE-AES,URI=\"k\"\n", 2},
		{"key without uri", "#EXTM3U\n#EXT-X-KEY:METHOD=AES-128\n", 2},
		{"short iv", "#EXTM3U\n#EXT-X-KEY:METHOD=AES-128,URI=\"k\",IV=0x0102\n", 2},
		{"bad byterange", "#EXTM3U\n#EXT-X-BYTERANGE:x@1\n", 2},
		{"master tag", "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\nv.m3u8\n", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHLSParser().ParseMediaPlaylist(tt.content, baseURL)
			require.Error(t, err)
			assert.True(t, errors.Is(err, entity.ErrMalformedPlaylist))

			var malformed *entity.MalformedPlaylistError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, tt.line, malformed.Line)
		})
	}
}

func TestEncodeMediaPlaylistRoundTrip(t *testing.T) {
	contents := []string{
		livePlaylist,
		livePlaylist + "#EXT-X-ENDLIST\n",
		`#EXTM3U
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:7
#EXT-X-DISCONTINUITY-SEQUENCE:2
#EXT-X-PLAYLIST-TYPE:EVENT
#EXT-X-PROGRAM-DATE-TIME:2026-10-18T00:00:00Z
#EXTINF:6,
a.ts
#EXT-X-DISCONTINUITY
#EXT-X-KEY:METHOD=AES-128,URI="data:text/plain;base64,AAECAwQFBgcICQoLDA0ODw=="
#EXT-X-BYTERANGE:300@10
#EXTINF:5.5,b
b.ts
#EXT-X-BYTERANGE:120
#EXTINF:5.5,
b.ts
#EXT-X-KEY:METHOD=NONE
#EXTINF:6,
c.ts
`,
	}

	p := NewHLSParser()
	for i, content := range contents {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			pl, err := p.ParseMediaPlaylist(content, baseURL)
			require.NoError(t, err)

			encoded := EncodeMediaPlaylist(pl)
			again, err := p.ParseMediaPlaylist(encoded, baseURL)
			require.NoError(t, err, encoded)
			assert.True(t, pl.Equals(again), encoded)

			// 再编码一次结果应稳定
			assert.Equal(t, encoded, EncodeMediaPlaylist(again))
		})
	}
}

func TestIsMasterPlaylist(t *testing.T) {
	assert.True(t, IsMasterPlaylist("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=48000\nv.m3u8\n"))
	assert.True(t, IsMasterPlaylist("#EXTM3U\n#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID=\"a\",NAME=\"a\"\n"))
	assert.False(t, IsMasterPlaylist(livePlaylist))
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{baseURL, "seg.ts", "https://radio-stream.nhk.jp/hls/live/2023229/nhkradiruakr1/seg.ts"},
		{baseURL, "../x/seg.ts", "https://radio-stream.nhk.jp/hls/live/2023229/x/seg.ts"},
		{baseURL, "/seg.ts", "https://radio-stream.nhk.jp/seg.ts"},
		{baseURL, "//cdn.example.com/seg.ts", "https://cdn.example.com/seg.ts"},
		{baseURL, "http://other/seg.ts", "http://other/seg.ts"},
		{"", "//cdn.example.com/a", "https://cdn.example.com/a"},
		{"not a url", "seg.ts", "seg.ts"},
		{baseURL, "base64:AAAA", "base64:AAAA"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveURL(tt.base, tt.ref), tt.ref)
	}
}

// fakeFetcher 按URL返回固定内容，记录请求次数
type fakeFetcher struct {
	pages map[string]string
	calls map[string]int
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{pages: pages, calls: make(map[string]int)}
}

func (f *fakeFetcher) GetStringAndURL(_ context.Context, url string, _ map[string]string) (string, string, error) {
	f.calls[url]++
	content, ok := f.pages[url]
	if !ok {
		return "", "", fmt.Errorf("not found: %s", url)
	}
	return content, url, nil
}

const masterPlaylist = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=48000,CODECS="mp4a.40.2"
low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=96000,CODECS="mp4a.40.2"
high/index.m3u8
`

func TestStreamExtractorResolvesFirstVariantOnce(t *testing.T) {
	master := "https://example.com/live/master.m3u8"
	variant := "https://example.com/live/low/index.m3u8"
	fetcher := newFakeFetcher(map[string]string{
		master:  masterPlaylist,
		variant: livePlaylist,
	})

	extractor := NewStreamExtractor(fetcher, master, nil)
	assert.Equal(t, master, extractor.MediaURL())

	pl, err := extractor.FetchPlaylist(context.Background())
	require.NoError(t, err)
	assert.Len(t, pl.Segments, 3)
	assert.Equal(t, variant, extractor.MediaURL())
	assert.True(t, strings.HasPrefix(pl.Segments[0].URL, "https://example.com/live/low/"))

	_, err = extractor.FetchPlaylist(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls[master])
	assert.Equal(t, 2, fetcher.calls[variant])
}

func TestStreamExtractorRejectsNestedMaster(t *testing.T) {
	master := "https://example.com/live/master.m3u8"
	variant := "https://example.com/live/low/index.m3u8"
	fetcher := newFakeFetcher(map[string]string{
		master:  masterPlaylist,
		variant: masterPlaylist,
	})

	_, err := NewStreamExtractor(fetcher, master, nil).FetchPlaylist(context.Background())
	assert.ErrorIs(t, err, entity.ErrMalformedPlaylist)
}

func TestSelectVariant(t *testing.T) {
	got, err := SelectVariant(masterPlaylist, "https://example.com/live/master.m3u8")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/live/low/index.m3u8", got)

	_, err = SelectVariant(livePlaylist, baseURL)
	assert.ErrorIs(t, err, entity.ErrMalformedPlaylist)
}
