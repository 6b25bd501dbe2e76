package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIKeyPath = "/run/secrets/api_keys/openrouter"
	APIKeyPathEnvVar  = "OPENROUTER_API_KEY_FILE"

	EngineTesseract  = "tesseract"
	EngineOpenRouter = "openrouter"
)

// LoadOptions override individual sources, mainly for tests and CLI flags.
type LoadOptions struct {
	StorageDirOverride string
	APIKeyPathOverride string
	EngineOverride     string
}

type Config struct {
	// StorageDir is the artifact store root.
	StorageDir string
	// AutoRecognize enqueues every new capture for recognition.
	AutoRecognize bool
	// Engine selects the OCR engine: tesseract or openrouter.
	Engine string
	// Languages are recognition hints (tesseract language codes).
	Languages []string
	// OCRDeadlineSec bounds a single recognition run.
	OCRDeadlineSec int
	Model          string
	APIKey         string
	APIKeyPath     string
	// TesseractPath overrides the tesseract binary location.
	TesseractPath     string
	EnableFileLogging bool
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Configuration sources in priority order:
	// 1) .env in the executable directory
	// 2) a config file pointed to by SNAPDECK_ENV
	// 3) process environment
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	var languages []string
	for _, lang := range strings.Split(getEnvWithDefault("OCR_LANGS", "eng"), ",") {
		if trimmed := strings.TrimSpace(lang); trimmed != "" {
			languages = append(languages, trimmed)
		}
	}

	ocrDeadlineSec := 20
	if v := os.Getenv("OCR_DEADLINE_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ocrDeadlineSec = n
		}
	}

	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)

	cfg := &Config{
		StorageDir:        resolveStorageDir(opts),
		AutoRecognize:     strings.ToLower(getEnvWithDefault("AUTO_RECOGNIZE", "true")) == "true",
		Engine:            resolveEngine(opts),
		Languages:         languages,
		OCRDeadlineSec:    ocrDeadlineSec,
		Model:             os.Getenv("MODEL"),
		APIKey:            resolveAPIKey(apiKeyPath),
		APIKeyPath:        apiKeyPath,
		TesseractPath:     os.Getenv("TESSERACT_PATH"),
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
	}

	return cfg, nil
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}

	execDir := filepath.Dir(execPath)
	exeEnv := filepath.Join(execDir, ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}

	if alt := os.Getenv("SNAPDECK_ENV"); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

func resolveStorageDir(opts LoadOptions) string {
	if override := strings.TrimSpace(opts.StorageDirOverride); override != "" {
		return override
	}
	if dir := strings.TrimSpace(os.Getenv("SNAPDECK_DIR")); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "snapdeck-data"
	}
	return filepath.Join(home, "Library", "Application Support", "snapdeck")
}

func resolveEngine(opts LoadOptions) string {
	pick := func(value string) string {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case EngineOpenRouter:
			return EngineOpenRouter
		default:
			return EngineTesseract
		}
	}
	if override := strings.TrimSpace(opts.EngineOverride); override != "" {
		return pick(override)
	}
	return pick(os.Getenv("OCR_ENGINE"))
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := DefaultAPIKeyPath

	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

func resolveAPIKey(keyPath string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}

	return os.Getenv("OPENROUTER_API_KEY")
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
