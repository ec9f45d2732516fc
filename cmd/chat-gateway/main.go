// cmd/chat-gateway — 浏览器聊天网关主入口。
//
// 连接研究 Agent 后端 (WebSocket), 把事件流对账成可渲染的消息序列,
// 通过本地 HTTP + SSE 提供给浏览器前端。
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/stepfun-ai/StepDeepResearch/internal/chatserver"
	"github.com/stepfun-ai/StepDeepResearch/internal/config"
	"github.com/stepfun-ai/StepDeepResearch/internal/database"
	"github.com/stepfun-ai/StepDeepResearch/internal/session"
	"github.com/stepfun-ai/StepDeepResearch/internal/store"
	"github.com/stepfun-ai/StepDeepResearch/pkg/logger"
	"github.com/stepfun-ai/StepDeepResearch/pkg/util"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	if cfg.LogDir != "" {
		if err := logger.InitWithFile(cfg.LogDir); err != nil {
			logger.Warn("file logging disabled", logger.FieldError, err)
		} else {
			defer logger.ShutdownFileHandler()
		}
	}

	// 事件审计存档可选: 未配置连接串则纯内存运行
	var sink session.Sink
	var transcripts *store.TranscriptStore
	if cfg.PostgresConnStr != "" {
		pool, err := database.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("database init failed", logger.FieldError, err)
		}
		defer pool.Close()

		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migration failed", logger.FieldError, err)
		}
		sink = store.NewEventLogStore(pool)
		transcripts = store.NewTranscriptStore(pool)
	} else {
		logger.Info("event audit disabled (no POSTGRES_CONNECTION_STRING)")
	}

	sess := session.New(cfg.BackendWSURL, sink)
	defer sess.Close()

	connectCtx, connectCancel := context.WithTimeout(ctx, time.Duration(cfg.ConnectTimeout)*time.Second)
	if err := sess.Connect(connectCtx); err != nil {
		// 后端暂不可用不致命: 浏览器侧可随时 POST /api/reconnect
		logger.Warn("backend not reachable at startup", logger.FieldError, err)
	}
	connectCancel()

	if cfg.AutoReconnect {
		startReconnectLoop(ctx, cfg, sess)
	}

	srv := chatserver.NewServer(sess, transcripts)
	logger.Info("chat gateway starting",
		logger.FieldListen, cfg.ListenAddr, logger.FieldURL, cfg.BackendWSURL)

	util.SafeGo(func() {
		if err := srv.Engine().Run(cfg.ListenAddr); err != nil {
			logger.Fatal("server failed", logger.FieldError, err)
		}
	})

	<-ctx.Done()
	logger.Info("shutting down")
}

// startReconnectLoop 周期检测连接状态, 断开时自动重连。
// ReconnectMaxTry = 0 表示不限次数; 连接成功后计数清零。
func startReconnectLoop(ctx context.Context, cfg *config.Config, sess *session.Session) {
	delay := time.Duration(cfg.ReconnectDelay) * time.Second
	util.SafeGo(func() {
		ticker := time.NewTicker(delay)
		defer ticker.Stop()

		tries := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if st, _ := sess.Status(); st != session.StatusDisconnected {
				tries = 0
				continue
			}
			if cfg.ReconnectMaxTry > 0 && tries >= cfg.ReconnectMaxTry {
				logger.Error("reconnect attempts exhausted", logger.FieldCount, tries)
				return
			}
			tries++
			logger.Info("reconnecting to backend", logger.FieldCount, tries)
			if err := sess.Reconnect(ctx); err != nil {
				logger.Warn("reconnect failed", logger.FieldError, err)
			} else {
				tries = 0
			}
		}
	})
}
