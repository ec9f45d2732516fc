// Package chatserver 提供面向浏览器的本地 HTTP 服务: 消息序列 / 工具调用 /
// 引文的只读快照, 上行动作 (发送 / 回执 / 重连), 以及 SSE 变更通知。
package chatserver

import (
	"github.com/gin-gonic/gin"

	"github.com/stepfun-ai/StepDeepResearch/internal/session"
	"github.com/stepfun-ai/StepDeepResearch/internal/store"
)

// Server 浏览器侧 HTTP 服务。
type Server struct {
	router      *gin.Engine
	sess        *session.Session
	bus         *EventBus
	transcripts *store.TranscriptStore // nil = 存档未启用
}

// NewServer 创建服务并把会话的状态变化接到 SSE 总线。
// transcripts 可为 nil (未配置数据库时存档端点返回 503)。
func NewServer(sess *session.Session, transcripts *store.TranscriptStore) *Server {
	r := gin.Default()
	s := &Server{router: r, sess: sess, bus: NewEventBus(), transcripts: transcripts}
	s.registerRoutes()
	sess.SetOnChange(func() {
		s.bus.Publish(Event{Type: "sequence", Data: gin.H{
			"version": sess.Reconciler().Version(),
		}})
	})
	return s
}

// Engine 返回 Gin 引擎。
func (s *Server) Engine() *gin.Engine { return s.router }

// Bus 返回事件总线。
func (s *Server) Bus() *EventBus { return s.bus }
