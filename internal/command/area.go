package command

import (
	"fmt"

	"NHK-Radio-GO/internal/entity"
	"NHK-Radio-GO/internal/radiru"
	"NHK-Radio-GO/internal/util"

	"github.com/spf13/cobra"
)

var areaCmd = &cobra.Command{
	Use:   "area",
	Short: "列出可用的地区",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := fetchRadiruConfig(cmd)
		if err != nil {
			return err
		}
		util.Console.PrintTable([]string{"地区代码", "地区名", "areakey"}, AreaRows(rc))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "列出所有地区的直播地址",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := fetchRadiruConfig(cmd)
		if err != nil {
			return err
		}
		util.Console.PrintTable([]string{"地区", "频道", "HLS"}, StreamRows(rc))
		return nil
	},
}

var programCmd = &cobra.Command{
	Use:   "program <area>",
	Short: "显示地区当前播出的节目",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		client := radiru.NewClient(newHTTPUtil(), cfg.ConfigURL)
		rc, err := client.FetchConfig(cmd.Context())
		if err != nil {
			return err
		}
		station, err := radiru.ResolveStation(rc, args[0])
		if err != nil {
			return err
		}
		program, err := client.FetchStationProgram(cmd.Context(), rc, station)
		if err != nil {
			return err
		}
		printProgram(station, program)
		return nil
	},
}

func fetchRadiruConfig(cmd *cobra.Command) (*entity.RadiruConfig, error) {
	cfg, err := requireConfig()
	if err != nil {
		return nil, err
	}
	return radiru.NewClient(newHTTPUtil(), cfg.ConfigURL).FetchConfig(cmd.Context())
}

// AreaRows area 命令的表格行
func AreaRows(rc *entity.RadiruConfig) [][]string {
	rows := make([][]string, 0, len(rc.StreamURL.Data))
	for _, data := range rc.StreamURL.Data {
		rows = append(rows, []string{data.Area, data.AreaJP, data.AreaKey})
	}
	return rows
}

// StreamRows list 命令的表格行
func StreamRows(rc *entity.RadiruConfig) [][]string {
	var rows [][]string
	for _, data := range rc.StreamURL.Data {
		for _, kind := range entity.AllChannelKinds {
			url := data.HLSURL(kind)
			if url == "" {
				continue
			}
			rows = append(rows, []string{fmt.Sprintf("%s (%s)", data.Area, data.AreaJP), kind.DisplayName(), url})
		}
	}
	return rows
}

func printProgram(station entity.StationData, program *entity.ProgramRoot) {
	util.Console.Println(fmt.Sprintf("%s (%s)", station.AreaJP, station.Area), util.StyleHeader)
	for _, kind := range entity.AllChannelKinds {
		fmt.Println()
		util.Console.Println(fmt.Sprintf("=== %s ===", kind.DisplayName()), util.StyleWarn)

		present := program.Channel(kind).Present
		if present == nil {
			util.Console.Println("当前没有节目", util.StyleMuted)
			continue
		}
		fmt.Printf("节目: %s\n", present.Title())
		if present.StartDate != "" {
			fmt.Printf("时间: %s - %s\n", util.FormatJapaneseTime(present.StartDate), util.FormatJapaneseTime(present.EndDate))
		}
		if summary := present.Summary(); summary != "" {
			fmt.Printf("简介: %s\n", summary)
		}
		if next := program.Channel(kind).Following; next != nil {
			util.Console.Println(fmt.Sprintf("下一个: %s %s", util.FormatJapaneseTime(next.StartDate), next.Title()), util.StyleMuted)
		}
	}
}
