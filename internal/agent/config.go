package agent

import "time"

type Config struct {
	HTTPAddr       string        `envconfig:"PVS_AGENT_HTTP_ADDR" default:"0.0.0.0:8443"`
	MetricsAddr    string        `envconfig:"PVS_AGENT_METRICS_ADDR" default:"0.0.0.0:9093"`
	LogLevel       string        `envconfig:"PVS_AGENT_LOG_LEVEL" default:"info"`
	ProjectRoot    string        `envconfig:"PVS_AGENT_PROJECT_ROOT" default:"/app"`
	InstallCmd     []string      `envconfig:"PVS_AGENT_INSTALL_CMD" default:"npm,install"`
	DevServerCmd   []string      `envconfig:"PVS_AGENT_DEV_CMD" default:"npm,run,dev"`
	InstallTimeout time.Duration `envconfig:"PVS_AGENT_INSTALL_TIMEOUT" default:"180s"`
}
