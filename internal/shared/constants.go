package shared

import "time"

// Provider timeout budgets per capability
const (
	ImageGenerationTimeout   = 120 * time.Second
	SpeechSynthesisTimeout   = 60 * time.Second
	BackgroundRemovalTimeout = 60 * time.Second
	ChatCompletionTimeout    = 120 * time.Second
)

// Retry policy
const (
	MaxProviderRetries = 2
	ProviderRetryDelay = 2 * time.Second
)

// Input limits
const (
	MaxSpeechTextLength = 500
	MaxUploadBytes      = 5 * 1024 * 1024
	ChatTitleMaxLength  = 50
)

// Server / cache configuration
const (
	DefaultShutdownTimeout = 10 * time.Second
	UserInfoCacheTTL       = 1 * time.Minute
	ChatHistoryLimit       = 10
	TaskCost               = 1
)
