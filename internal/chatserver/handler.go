// handler.go — 浏览器 REST API handlers。
package chatserver

import (
	stderrors "errors"

	"github.com/gin-gonic/gin"

	"github.com/stepfun-ai/StepDeepResearch/internal/reconcile"
	"github.com/stepfun-ai/StepDeepResearch/pkg/errors"
)

// registerRoutes 注册 API 路由。
func (s *Server) registerRoutes() {
	api := s.router.Group("/api")

	api.GET("/messages", s.listMessages)
	api.GET("/toolcalls", s.listToolCalls)
	api.GET("/toolcalls/:id", s.getToolCall)
	api.GET("/citations", s.listCitations)
	api.GET("/status", s.getStatus)

	api.POST("/send", s.sendMessage)
	api.POST("/toolresult", s.submitToolResult)
	api.POST("/reconnect", s.reconnect)
	api.POST("/stop", s.stop)

	api.POST("/archive", s.archiveTranscript)
	api.GET("/archive", s.listArchivedTasks)
	api.GET("/archive/:task_id", s.getArchivedTranscript)

	api.GET("/events", s.sseHandler)

	s.router.Static("/static", "./static")
	s.router.GET("/", func(c *gin.Context) { c.File("./static/index.html") })
}

// ========================================
// 只读快照
// ========================================

func (s *Server) listMessages(c *gin.Context) {
	msgs := s.sess.Reconciler().Messages()

	// resolve=true 时把正文分段里的 \cite{...} 替换为 markdown 链接
	if c.Query("resolve") == "true" {
		cites := s.sess.Reconciler().Citations()
		for i := range msgs {
			for j := range msgs[i].Segments {
				if msgs[i].Segments[j].Kind == reconcile.SegmentText {
					msgs[i].Segments[j].Text = cites.ResolveText(msgs[i].Segments[j].Text)
				}
			}
		}
	}
	success(c, gin.H{
		"version":  s.sess.Reconciler().Version(),
		"messages": msgs,
	})
}

func (s *Server) listToolCalls(c *gin.Context) {
	success(c, s.sess.Reconciler().ToolCalls())
}

func (s *Server) getToolCall(c *gin.Context) {
	rec, ok := s.sess.Reconciler().ToolCall(c.Param("id"))
	if !ok {
		notFound(c, "tool call 不存在")
		return
	}
	success(c, rec)
}

func (s *Server) listCitations(c *gin.Context) {
	success(c, s.sess.Reconciler().Citations().All())
}

func (s *Server) getStatus(c *gin.Context) {
	st, lastErr := s.sess.Status()
	resp := gin.H{
		"status":  st,
		"task_id": s.sess.TaskID(),
		"version": s.sess.Reconciler().Version(),
	}
	if lastErr != nil {
		resp["last_error"] = lastErr.Error()
	}
	success(c, resp)
}

// ========================================
// 上行动作
// ========================================

func (s *Server) sendMessage(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}
	msgID, err := s.sess.SendUserMessage(req.Text)
	switch {
	case err == nil:
		success(c, gin.H{"message_id": msgID})
	case stderrors.Is(err, errors.ErrInvalidInput):
		badRequest(c, "invalid_request", err.Error())
	case stderrors.Is(err, errors.ErrNotConnected):
		// 本地已乐观追加, 告知前端消息未送达
		unavailable(c, "后端未连接, 消息已暂存本地")
	default:
		serverError(c, err)
	}
}

func (s *Server) submitToolResult(c *gin.Context) {
	var req struct {
		ToolCallID string `json:"tool_call_id"`
		Content    string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}
	err := s.sess.SubmitToolResult(req.ToolCallID, req.Content)
	switch {
	case err == nil:
		success(c, gin.H{"tool_call_id": req.ToolCallID})
	case stderrors.Is(err, errors.ErrNotFound):
		notFound(c, "client tool 请求不存在")
	case stderrors.Is(err, errors.ErrDuplicate):
		conflict(c, "该 tool call 已提交过结果")
	case stderrors.Is(err, errors.ErrNotConnected):
		unavailable(c, "后端未连接, 回执未送达")
	default:
		serverError(c, err)
	}
}

// ========================================
// 对话存档 (可选, 需数据库)
// ========================================

func (s *Server) archiveTranscript(c *gin.Context) {
	if s.transcripts == nil {
		unavailable(c, "存档未启用 (缺少数据库配置)")
		return
	}
	rec := s.sess.Reconciler()
	version := rec.Version()
	if err := s.transcripts.Save(c.Request.Context(), s.sess.TaskID(), int64(version), rec.Messages()); err != nil {
		serverError(c, err)
		return
	}
	success(c, gin.H{"task_id": s.sess.TaskID(), "version": version})
}

func (s *Server) listArchivedTasks(c *gin.Context) {
	if s.transcripts == nil {
		unavailable(c, "存档未启用 (缺少数据库配置)")
		return
	}
	tasks, err := s.transcripts.ListTasks(c.Request.Context(), 50)
	if err != nil {
		serverError(c, err)
		return
	}
	success(c, tasks)
}

func (s *Server) getArchivedTranscript(c *gin.Context) {
	if s.transcripts == nil {
		unavailable(c, "存档未启用 (缺少数据库配置)")
		return
	}
	tr, err := s.transcripts.Latest(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		serverError(c, err)
		return
	}
	if tr == nil {
		notFound(c, "该任务没有存档")
		return
	}
	success(c, tr)
}

func (s *Server) reconnect(c *gin.Context) {
	if err := s.sess.Reconnect(c.Request.Context()); err != nil {
		unavailable(c, err.Error())
		return
	}
	success(c, gin.H{"task_id": s.sess.TaskID()})
}

func (s *Server) stop(c *gin.Context) {
	if err := s.sess.SendStopSignal(); err != nil {
		unavailable(c, err.Error())
		return
	}
	success(c, gin.H{"stopped": true})
}
