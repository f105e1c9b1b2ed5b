package command

import (
	"fmt"

	"NHK-Radio-GO/internal/config"
	"NHK-Radio-GO/internal/util"

	"github.com/spf13/cobra"
)

const VERSION_INFO = "NHK-Radio-GO (Beta version) 20261018"

// playerConfig 在 PersistentPreRunE 中加载
var playerConfig *config.PlayerConfig

var rootCmd = &cobra.Command{
	Use:   "nhk-radio",
	Short: "NHK らじる★らじる 命令行播放器",
	Long: `NHK らじる★らじる 的命令行播放器
实时获取加密的HLS直播流，解密后交给 ffplay、声卡或文件`,
	Version:       VERSION_INFO,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.NewViper(cmd.Flags())
		if err != nil {
			return err
		}
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		playerConfig = cfg

		util.InitConsole(cfg.NoColor)
		util.SetLogLevel(cfg.LogLevel)
		util.Logger.IsWriteFile = !cfg.NoLog
		if err := util.Logger.InitLogFile(); err != nil {
			util.Logger.Warn("初始化日志文件失败: %s", err.Error())
		}
		util.Logger.Extra("配置: %s", util.ConvertToJSON(cfg))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = util.Logger.Close()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// 不带子命令时和 play 相同
		return runPlay(cmd, args)
	},
}

func init() {
	config.BindFlags(rootCmd.PersistentFlags())
	addPlayFlags(rootCmd.Flags())

	rootCmd.AddCommand(playCmd, areaCmd, listCmd, programCmd)
}

// Execute 执行根命令
func Execute() error {
	return rootCmd.Execute()
}

// newHTTPUtil 按配置创建HTTP工具
func newHTTPUtil() *util.HTTPUtil {
	return util.NewHTTPUtil(playerConfig.HTTPOptions())
}

func requireConfig() (*config.PlayerConfig, error) {
	if playerConfig == nil {
		return nil, fmt.Errorf("配置尚未加载")
	}
	return playerConfig, nil
}
