package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/config"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/logger"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name 是服务的名称
	Name = "news_brief"
	// Version 是服务的版本号
	Version string

	flagConfig string

	id, _ = os.Hostname()
)

const defaultConfigPath = "configs/config.yaml"

var rootCmd = &cobra.Command{
	Use:           Name,
	Short:         "News retrieval and summarization pipeline",
	Long:          "news_brief searches recent news for a topic, removes duplicates, summarizes the result with a language model and optionally renders it to speech.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", defaultConfigPath, "config path, eg: -c config.yaml")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(briefCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", Name, Version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup 读取 .env 与配置文件并初始化日志
func setup(path string) (*config.Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		return nil, fmt.Errorf("无法初始化日志: %w", err)
	}
	return cfg, nil
}

// loadConfig 默认路径下没有配置文件时只使用环境变量
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.FromEnv()
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && path == defaultConfigPath {
		return config.FromEnv()
	}
	return config.LoadConfig(path)
}
