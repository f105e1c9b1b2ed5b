package downloader

import (
	"NHK-Radio-GO/internal/entity"
)

// TrackResult 一次刷新后窗口跟踪的结果
type TrackResult struct {
	Segments    []*entity.MediaSegment  // 按序号递增的新分段
	Skipped     *entity.SegmentsSkipped // 窗口前移导致错过的分段
	EndOfStream bool                    // 播放列表已结束，返回的分段之后没有更多内容
}

// TrackLiveWindow 比较新的播放列表快照和游标，返回尚未消费的分段和推进后的游标
// 序号不大于游标的分段直接丢弃；窗口跳过游标时报告跳过的区间并从新窗口开头继续
func TrackLiveWindow(cursor entity.LiveCursor, playlist *entity.Playlist) (TrackResult, entity.LiveCursor) {
	return trackLiveWindow(cursor, playlist, 0)
}

// trackLiveWindow liveEdge > 0 时，首次进入直播只取最后 liveEdge 个分段
func trackLiveWindow(cursor entity.LiveCursor, playlist *entity.Playlist, liveEdge int) (TrackResult, entity.LiveCursor) {
	result := TrackResult{EndOfStream: playlist.IsEnded}

	last, ok := playlist.LastSequence()
	if !ok || cursor.Consumed(last) {
		return result, cursor
	}

	if first, _ := playlist.FirstSequence(); cursor.Started() && first > cursor.Last()+1 {
		result.Skipped = &entity.SegmentsSkipped{
			From: cursor.Last() + 1,
			To:   first - 1,
		}
	}

	segments := playlist.Segments
	if !cursor.Started() && liveEdge > 0 && playlist.IsLive() && len(segments) > liveEdge {
		segments = segments[len(segments)-liveEdge:]
	}

	for _, seg := range segments {
		if cursor.Consumed(seg.SequenceNumber) {
			continue
		}
		result.Segments = append(result.Segments, seg)
	}

	return result, cursor.Advance(last)
}
