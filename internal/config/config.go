package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

const (
	defaultPort           = "8080"
	defaultModel          = "deepseek-chat"
	defaultBaseURL        = "https://api.deepseek.com"
	defaultRegion         = "cn-beijing"
	defaultRevealInterval = 50 * time.Millisecond
	defaultRevealCursor   = "▌"
)

// Config 聚合聊天室的全部配置：监听地址、模型、打字机效果和小猫人设。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Reveal  RevealConfig
	Persona PersonaConfig
}

// Load 从环境变量加载配置，任何非法取值都会返回带变量名的错误。
func Load() (*Config, error) {
	var (
		cfg Config
		err error
	)
	if cfg.Server, err = loadServerConfig(); err != nil {
		return nil, err
	}
	if cfg.AI, err = loadAIConfig(); err != nil {
		return nil, err
	}
	if cfg.Reveal, err = loadRevealConfig(); err != nil {
		return nil, err
	}
	if cfg.Persona, err = loadPersonaConfig(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ServerConfig 描述 HTTP 监听地址。
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	addr, err := parseListenAddr(envString("PORT", defaultPort))
	if err != nil {
		return ServerConfig{}, invalid("PORT", os.Getenv("PORT"), err)
	}
	return ServerConfig{Addr: addr}, nil
}

// parseListenAddr 接受 "8080"、":8080" 或 "127.0.0.1:8080"。
func parseListenAddr(port string) (string, error) {
	if strings.ContainsAny(port, " \t") {
		return "", errors.New("must not contain whitespace")
	}
	if strings.Contains(port, ":") {
		return port, nil
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return "", fmt.Errorf("not a port number: %w", err)
	}
	return ":" + port, nil
}

// AIConfig 描述对话模型的连接参数。
type AIConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string

	Temperature *float32
	TopP        *float32
	MaxTokens   *int

	// StreamResponse 使用模型的增量输出代替定速揭示。
	StreamResponse bool
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个 ark 模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("模型凭证或模型配置缺失，至少提供 LLM_API_KEY + LLM_MODEL 或 AK/SK 组合")
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		TopP:        c.TopP,
	})
}

func loadAIConfig() (AIConfig, error) {
	cfg := AIConfig{
		APIKey:    envString("LLM_API_KEY", ""),
		AccessKey: envString("LLM_ACCESS_KEY", ""),
		SecretKey: envString("LLM_SECRET_KEY", ""),
		Model:     envString("LLM_MODEL", defaultModel),
		BaseURL:   envString("LLM_BASE_URL", defaultBaseURL),
		Region:    envString("LLM_REGION", defaultRegion),
	}

	var err error
	if cfg.Temperature, err = envFloat32("LLM_TEMPERATURE"); err != nil {
		return AIConfig{}, err
	}
	if cfg.TopP, err = envFloat32("LLM_TOP_P"); err != nil {
		return AIConfig{}, err
	}
	if cfg.MaxTokens, err = envInt("LLM_MAX_TOKENS"); err != nil {
		return AIConfig{}, err
	}
	if cfg.StreamResponse, err = envBool("LLM_STREAM", false); err != nil {
		return AIConfig{}, err
	}
	return cfg, nil
}

// RevealConfig 描述打字机效果。
type RevealConfig struct {
	Interval time.Duration
	Cursor   string
}

func loadRevealConfig() (RevealConfig, error) {
	interval, err := envMillis("REVEAL_INTERVAL_MS", defaultRevealInterval)
	if err != nil {
		return RevealConfig{}, err
	}

	// 光标允许包含空白，也允许显式设为空。
	cursor, ok := os.LookupEnv("REVEAL_CURSOR")
	if !ok {
		cursor = defaultRevealCursor
	}

	return RevealConfig{Interval: interval, Cursor: cursor}, nil
}

// PersonaConfig 描述小猫人设的来源。
type PersonaConfig struct {
	Name string
	// File 是可选的 TOML 人设文件。
	File string
}

func loadPersonaConfig() (PersonaConfig, error) {
	cfg := PersonaConfig{
		Name: envString("PERSONA_NAME", ""),
		File: envString("PERSONA_FILE", ""),
	}
	if cfg.File == "" {
		return cfg, nil
	}

	info, err := os.Stat(cfg.File)
	if err != nil {
		return PersonaConfig{}, invalid("PERSONA_FILE", cfg.File, err)
	}
	if info.IsDir() {
		return PersonaConfig{}, invalid("PERSONA_FILE", cfg.File, errors.New("is a directory"))
	}
	return cfg, nil
}

func invalid(key, raw string, err error) error {
	return fmt.Errorf("invalid %s value %q: %w", key, raw, err)
}

// envString 返回去除首尾空白后的值，未设置或为空时返回 fallback。
func envString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envBool(key string, fallback bool) (bool, error) {
	raw := envString(key, "")
	if raw == "" {
		return fallback, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalid(key, raw, err)
	}
	return val, nil
}

func envFloat32(key string) (*float32, error) {
	raw := envString(key, "")
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return nil, invalid(key, raw, err)
	}
	f := float32(val)
	return &f, nil
}

func envInt(key string) (*int, error) {
	raw := envString(key, "")
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, invalid(key, raw, err)
	}
	return &val, nil
}

// envMillis 解析非负的毫秒数。
func envMillis(key string, fallback time.Duration) (time.Duration, error) {
	ms, err := envInt(key)
	if err != nil || ms == nil {
		return fallback, err
	}
	if *ms < 0 {
		return 0, invalid(key, strconv.Itoa(*ms), errors.New("must not be negative"))
	}
	return time.Duration(*ms) * time.Millisecond, nil
}
