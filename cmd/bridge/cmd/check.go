// Package cmd implements CLI commands for the Komari bridge.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"komari-bridge/internal/cache"
	"komari-bridge/internal/client/komari"
	"komari-bridge/internal/config"
	"komari-bridge/internal/service"
)

// checkCmd represents the check command.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "检查上游连通性并打印一次合并结果",
	Long: `执行一次完整的拉取与合并流程用于验证配置：
1. 加载并验证配置文件
2. 从 Komari 拉取服务器名录与实时状态
3. 打印合并后的服务器概要`,
	Run: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// runCheck executes the check command logic.
func runCheck(cmd *cobra.Command, args []string) {
	configPath := GetConfigFile()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ 加载配置失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ 配置文件验证通过: %s\n", configPath)

	logger := setupLogger("error", "console")
	client := komari.NewClient(&cfg.Komari, &cfg.HTTP.Retry, logger)
	directory := cache.NewDirectory(client.GetNodes, cfg.Poll.DirectoryTTL, logger)
	normalizer := service.NewNormalizer(directory, logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Komari.Timeout+10*time.Second)
	defer cancel()

	if v, err := client.GetVersion(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ 无法连接 Komari: %v\n", err)
		os.Exit(1)
	} else {
		fmt.Printf("✅ Komari 连接成功 (版本: %s)\n", v.Version)
	}

	status, err := client.GetNodesLatestStatus(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ 拉取实时状态失败: %v\n", err)
		os.Exit(1)
	}

	servers := normalizer.Merge(ctx, status)

	now := time.Now()
	online := 0
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	for _, s := range servers {
		view := service.Project(now, s, nil)
		state := "离线"
		if view.Online {
			state = "在线"
			online++
		}
		fmt.Printf("   [%s] %-24s id=%-10d cpu=%5.1f%% mem=%5.1f%%\n",
			state, s.Name, s.ID, view.CPUPercent, view.MemPercent)
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("   服务器总数: %d\n", len(servers))
	fmt.Printf("   在线: %d\n", online)
	fmt.Printf("   离线: %d\n", len(servers)-online)
}
