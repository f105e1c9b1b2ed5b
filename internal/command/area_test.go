package command

import (
	"testing"

	"NHK-Radio-GO/internal/entity"

	"github.com/stretchr/testify/assert"
)

func TestAreaAndStreamRows(t *testing.T) {
	rc := &entity.RadiruConfig{}
	rc.StreamURL.Data = []entity.StationData{
		{AreaJP: "東京", Area: "tokyo", AreaKey: "130", R1HLS: "https://example.com/r1.m3u8", FMHLS: "https://example.com/fm.m3u8"},
	}

	assert.Equal(t, [][]string{{"tokyo", "東京", "130"}}, AreaRows(rc))

	rows := StreamRows(rc)
	assert.Equal(t, [][]string{
		{"tokyo (東京)", "NHK R1", "https://example.com/r1.m3u8"},
		{"tokyo (東京)", "NHK FM", "https://example.com/fm.m3u8"},
	}, rows)
}
