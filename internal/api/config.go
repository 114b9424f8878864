package api

import "time"

type Config struct {
	HTTPAddr        string        `envconfig:"PVS_HTTP_ADDR" default:"0.0.0.0:8080"`
	DBDSN           string        `envconfig:"PVS_DB_DSN" required:"true"`
	ProvisionerURL  string        `envconfig:"PVS_PROVISIONER_URL" required:"true"`
	MetricsAddr     string        `envconfig:"PVS_METRICS_ADDR" default:"0.0.0.0:9090"`
	LogLevel        string        `envconfig:"PVS_LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"PVS_SHUTDOWN_TIMEOUT" default:"30s"`
}
