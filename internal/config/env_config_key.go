package config

// EnvConfigKey 通过环境变量细节地控制某些逻辑，其余选项也都可以用 NHKRADIO_<FLAG> 设置
const (
	// EnvPrefix 所有环境变量的前缀
	EnvPrefix = "NHKRADIO"

	// EnvPlayerArgs 覆盖外部播放器的命令行参数，按空白分割
	EnvPlayerArgs = "NHKRADIO_PLAYER_ARGS"

	// EnvFFmpegArgs 覆盖 speaker 输出时 ffmpeg 解码的命令行参数，按空白分割
	EnvFFmpegArgs = "NHKRADIO_FFMPEG_ARGS"

	// EnvConfigURL 覆盖 config_web.xml 地址，便于测试
	EnvConfigURL = "NHKRADIO_CONFIG_URL"
)
