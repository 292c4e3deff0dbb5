package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			DataDir:  "~/.figlens",
			LogLevel: "info",
		},
		Bridge: BridgeConfig{
			Host:                 "127.0.0.1",
			Port:                 8765,
			ExportTimeoutSeconds: 10,
			HeartbeatSeconds:     30,
		},
		Panel: PanelConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8766,
		},
		Figma: FigmaConfig{
			APIBase:               "https://api.figma.com",
			RequestTimeoutSeconds: 15,
			RateLimitPerMinute:    30,
		},
		Markup: MarkupConfig{
			CenterTolerance: 5,
		},
		Notify: NotifyConfig{
			Slack:    SlackConfig{Enabled: false},
			Telegram: TelegramConfig{Enabled: false},
			Discord:  DiscordConfig{Enabled: false},
		},
		Preview: PreviewConfig{
			Enabled: false,
			Width:   1280,
			Height:  800,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
