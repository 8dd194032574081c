package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/engine"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/logger"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/model"
)

var (
	flagMaxArticles int
	flagLanguage    string
	flagAudio       bool
	flagOutput      string
)

var briefCmd = &cobra.Command{
	Use:   "brief <topic>",
	Short: "Generate one news brief and print it as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runBrief,
}

func init() {
	briefCmd.Flags().IntVarP(&flagMaxArticles, "max-articles", "n", 0, "number of articles to keep (default from config)")
	briefCmd.Flags().StringVarP(&flagLanguage, "language", "l", "", "language tag for the summary, eg: en, zh-CN")
	briefCmd.Flags().BoolVar(&flagAudio, "audio", false, "render the summary to speech")
	briefCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "write the audio to this file (implies --audio)")
}

func runBrief(cmd *cobra.Command, args []string) error {
	cfg, err := setup(flagConfig)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := engine.NewEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Log.Warnf("关闭引擎失败: %v", err)
		}
	}()

	q := model.Query{
		Topic:       args[0],
		MaxArticles: flagMaxArticles,
		Language:    flagLanguage,
		Audio:       flagAudio || flagOutput != "",
	}
	res, runErr := eng.Run(ctx, q, engine.RunOptions{
		Progress: func(s engine.State) {
			logger.Log.Debugf("状态: %s", s)
		},
	})
	if runErr != nil {
		if err := writeJSON(cmd.OutOrStdout(), runErr); err != nil {
			return err
		}
		return runErr
	}

	if flagOutput != "" && res.Audio != nil {
		if err := os.WriteFile(flagOutput, res.Audio.Bytes, 0o644); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
		logger.Log.Infof("音频已保存到 %s", flagOutput)
	}
	return writeJSON(cmd.OutOrStdout(), res)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
