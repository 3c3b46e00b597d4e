package main

import (
	"maps"

	cli "github.com/urfave/cli/v3"
)

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
		&cli.StringFlag{
			Name:    "plugins-path",
			Usage:   "Path to the directory containing node plugins",
			Value:   "./plugins",
			Sources: cli.EnvVars("PLUGINS_PATH"),
		},
		&cli.StringFlag{
			Name:    "comfyui-api-url",
			Usage:   "Default ComfyUI server URL for nodes without api_url",
			Sources: cli.EnvVars("COMFYUI_API_URL"),
		},
		&cli.StringFlag{
			Name:    "comfyui-api-key",
			Usage:   "Default ComfyUI API key for nodes without api_key",
			Sources: cli.EnvVars("COMFYUI_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "x-access-token",
			Usage:   "Default X OAuth2 access token for nodes without access_token",
			Sources: cli.EnvVars("X_ACCESS_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers, used with --event-bus kafka",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export OpenTelemetry traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_TRACING_ENABLED"),
		},
	}
}

// credentialDefaults fills the credentials a node config leaves out from the
// process flags.
type credentialDefaults struct {
	comfyURL string
	comfyKey string
	xToken   string
}

func newCredentialDefaults(command *cli.Command) credentialDefaults {
	return credentialDefaults{
		comfyURL: command.String("comfyui-api-url"),
		comfyKey: command.String("comfyui-api-key"),
		xToken:   command.String("x-access-token"),
	}
}

func (d credentialDefaults) apply(nodeType string, config map[string]any) map[string]any {
	out := make(map[string]any, len(config)+2)
	maps.Copy(out, config)

	setDefault := func(key, value string) {
		if value == "" {
			return
		}

		if v, ok := out[key].(string); !ok || v == "" {
			out[key] = value
		}
	}

	if nodeType == "x_media_upload" {
		setDefault("access_token", d.xToken)

		return out
	}

	setDefault("api_url", d.comfyURL)
	setDefault("api_key", d.comfyKey)

	return out
}
