package main

import (
	"context"
	"os"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cobra"

	"github.com/iWorld-y/news_brief/app/news_brief/internal/server"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/engine"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := setup(flagConfig)
	if err != nil {
		return err
	}

	// 初始化日志记录器，包含时间戳、调用者信息、服务ID等上下文
	logger := log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)

	eng, err := engine.NewEngine(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.NewHelper(logger).Warnf("关闭引擎失败: %v", err)
		}
	}()
	hs := server.NewHTTPServer(cfg.Server, server.NewBriefService(eng, logger), logger)

	app := kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{
			"search": cfg.Search.Provider,
			"llm":    cfg.LLM.Provider,
			"speech": cfg.Speech.Provider,
		}),
		kratos.Logger(logger),
		kratos.Server(hs),
	)
	return app.Run()
}
