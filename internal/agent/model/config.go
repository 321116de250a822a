package model

// ================ Config ================
type DecomposeModelConfig struct {
	Model          string  `envconfig:"DECOMPOSE_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens      int     `envconfig:"DECOMPOSE_MAX_TOKENS" default:"512"`
	Temperature    float32 `envconfig:"DECOMPOSE_TEMPERATURE" default:"0.3"`
	ThinkingBudget int32   `envconfig:"DECOMPOSE_THINKING_BUDGET" default:"0"`
}

type ResponseModelConfig struct {
	Model          string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens      int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2000"`
	Temperature    float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.4"`
	ThinkingBudget int32   `envconfig:"RESPONSE_THINKING_BUDGET" default:"1024"`
}

type EmbeddingConfig struct {
	Model      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-004"`
	Dimensions int32  `envconfig:"EMBEDDING_DIMENSIONS" default:"768"`
}

type RetrievalConfig struct {
	DefaultResults int `envconfig:"RETRIEVAL_DEFAULT_RESULTS" default:"3"`
	MaxResults     int `envconfig:"RETRIEVAL_MAX_RESULTS" default:"20"`
}

type FarmConfig struct {
	ID        string  `envconfig:"FARM_ID" default:"default_farm"`
	Latitude  float64 `envconfig:"FARM_LATITUDE" default:"40.7128"`
	Longitude float64 `envconfig:"FARM_LONGITUDE" default:"-74.0060"`
	CropType  string  `envconfig:"FARM_CROP_TYPE" default:"Wheat"`
}

type CoordinatorConfig struct {
	TriggerKind SourceKind `envconfig:"COORDINATOR_TRIGGER_KIND" default:"weather"`
	ResetPolicy string     `envconfig:"COORDINATOR_RESET_POLICY" default:"committed"`
	QueueSize   int        `envconfig:"COORDINATOR_QUEUE_SIZE" default:"16"`
	// PersistTimeout bounds each upsert, e.g. "10s".
	PersistTimeout string `envconfig:"COORDINATOR_PERSIST_TIMEOUT" default:"10s"`
}

type BureauConfig struct {
	// Interval re-sends the agent requests periodically; empty or "0" sends once on startup.
	Interval string `envconfig:"BUREAU_INTERVAL" default:"0"`
}

type ServerConfig struct {
	Port         int    `envconfig:"PORT" default:"8080"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"farmsense-rag"`
	ReadTimeout  string `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	MaxBodyBytes int64  `envconfig:"SERVER_MAX_BODY_BYTES" default:"1048576"`
}
