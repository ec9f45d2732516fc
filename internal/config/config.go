// Package config 全局配置加载与管理。
//
// 所有字段通过 struct tag 声明环境变量映射:
//
//	`env:"VAR_NAME" default:"value" min:"0"`
//
// Load() 使用反射自动填充，无需手动逐行赋值。
package config

import (
	"github.com/stepfun-ai/StepDeepResearch/pkg/util"
)

// Config 应用全局配置，字段名与 .env 变量一一对应。
type Config struct {
	// 研究 Agent 后端
	BackendWSURL    string `env:"BACKEND_WS_URL" default:"ws://127.0.0.1:8765/ws"`
	ConnectTimeout  int    `env:"BACKEND_CONNECT_TIMEOUT_SEC" default:"10" min:"1"`
	AutoReconnect   bool   `env:"BACKEND_AUTO_RECONNECT" default:"true"`
	ReconnectDelay  int    `env:"BACKEND_RECONNECT_DELAY_SEC" default:"3" min:"1"`
	ReconnectMaxTry int    `env:"BACKEND_RECONNECT_MAX_TRY" default:"0" min:"0"` // 0 = 不限次数

	// 浏览器侧 HTTP 服务
	ListenAddr string `env:"LISTEN_ADDR" default:"127.0.0.1:8080"`

	// PostgreSQL (事件流审计存档; 连接串为空则不落库)
	PostgresConnStr     string `env:"POSTGRES_CONNECTION_STRING"`
	PostgresSchema      string `env:"POSTGRES_SCHEMA" default:"public"`
	PostgresPoolMinSize int    `env:"POSTGRES_POOL_MIN_SIZE" default:"1" min:"1"`
	PostgresPoolMaxSize int    `env:"POSTGRES_POOL_MAX_SIZE" default:"10" min:"1"`

	// 日志
	LogLevel string `env:"LOG_LEVEL" default:"INFO"`
	LogDir   string `env:"LOG_DIR"` // 为空则只输出到 stderr
}

// Load 从环境变量加载配置 (通过反射读取 struct tag)。
func Load() *Config {
	var cfg Config
	util.LoadFromEnv(&cfg)
	return &cfg
}
