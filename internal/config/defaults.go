package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:    "info",
			PaceDelayMs: 400,
		},
		Media: MediaConfig{
			ImageBase:      "http://127.0.0.1:8000",
			VideoBase:      "http://127.0.0.1:8001",
			TimeoutSeconds: 120,
		},
		Generation: GenerationConfig{
			NumSteps:   30,
			Guidance:   7.5,
			NumFrames:  16,
			VideoSteps: 25,
			FPS:        8,
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				ParseMode: "Markdown",
			},
			CLI: CLIConfig{
				Enabled: true,
			},
		},
		Perspectives: PerspectivesConfig{
			PackDir: "~/.hatbot/perspectives",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9091",
		},
	}
}
