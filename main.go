package main

import (
	"os"

	"NHK-Radio-GO/internal/command"
	"NHK-Radio-GO/internal/util"
)

func main() {
	if err := command.Execute(); err != nil {
		if command.IsCancelled(err) {
			os.Exit(130)
		}
		util.Logger.Error("程序执行失败: %s", err.Error())
		os.Exit(1)
	}
}
