package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			WebhookPath: "/webhook",
		},
		Lock: LockConfig{
			Backend:             "memory",
			TTLSeconds:          60,
			SweepCron:           "*/5 * * * *",
			SQLitePath:          "~/.tako/locks.db",
			DynamoTable:         "tako_locks",
			FirestoreCollection: "tako_locks",
		},
		AWS: AWSConfig{
			Region: "us-east-2",
		},
		Generation: GenerationConfig{
			Backend:        "mock",
			TimeoutSeconds: 60,
			MaxRetries:     0,
			Flow: FlowConfig{
				InputNode:  "FlowInputNode",
				OutputName: "document",
			},
			GenAI: GenAIConfig{
				Model:    "gemini-2.5-flash",
				Location: "us-central1",
			},
			OpenAI: OpenAIConfig{
				APIBase: "https://api.openai.com/v1",
				Model:   "gpt-4o-mini",
			},
			Mock: MockConfig{
				Rules: []MockRule{
					{Contains: "Reescreva o rascunho", Output: "Recebemos sua mensagem e alguém da equipe vai analisar o seu caso."},
				},
				Default: `{"intencao":"fallback","tom":"neutro","riscos":{},"draft_answer":"Recebemos sua mensagem e vamos analisar.","confidence_score":0.5}`,
			},
		},
		Delivery: DeliveryConfig{
			Backend:        "log",
			TimeoutSeconds: 30,
			ZAPI: ZAPIConfig{
				BaseURL: "https://api.z-api.io",
			},
			WhatsApp: WhatsAppConfig{
				APIBase: "https://graph.facebook.com/v21.0",
			},
		},
		Outcomes: OutcomesConfig{
			Enabled: false,
			DBPath:  "~/.tako/outcomes.db",
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4318",
			ServiceName: "tako",
			SampleRatio: 1,
		},
		Messages: MessagesConfig{
			NonText: "Por enquanto eu só consigo entender mensagens de texto. Pode escrever sua dúvida?",
		},
	}
}
