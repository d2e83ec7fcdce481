// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Router        RouterConfig        `mapstructure:"router"`
	VideoGen      VideoGenConfig      `mapstructure:"videogen"`
	WebSearch     WebSearchConfig     `mapstructure:"websearch"`
	Billing       BillingConfig       `mapstructure:"billing"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// RouterConfig 存储模型路由 API 相关的配置。
// 各模态的候选模型列表按顺序排列，调度时依序回退。
type RouterConfig struct {
	APIKey                string   `mapstructure:"api_key"`
	BaseURL               string   `mapstructure:"base_url"`
	ChatModels            []string `mapstructure:"chat_models"`
	CodeModels            []string `mapstructure:"code_models"`
	ImageModel            string   `mapstructure:"image_model"`
	AnalyzerModel         string   `mapstructure:"analyzer_model"`
	MaxTokens             int      `mapstructure:"max_tokens"`
	Temperature           float64  `mapstructure:"temperature"`
	RequestTimeoutSeconds int      `mapstructure:"request_timeout_seconds"`
}

// VideoGenConfig 存储视频生成服务相关的配置。
type VideoGenConfig struct {
	APIKey              string            `mapstructure:"api_key"`
	BaseURL             string            `mapstructure:"base_url"`
	Models              map[string]string `mapstructure:"models"` // 模态 -> 后端模型标识
	AspectRatio         string            `mapstructure:"aspect_ratio"`
	PollIntervalSeconds int               `mapstructure:"poll_interval_seconds"`
	PollTimeoutSeconds  int               `mapstructure:"poll_timeout_seconds"`
}

// WebSearchConfig 存储联网搜索（SearxNG）与天气直达相关的配置。
type WebSearchConfig struct {
	SearxBase  string              `mapstructure:"searx_base"`
	MaxResults int                 `mapstructure:"max_results"`
	WeatherAPI string              `mapstructure:"weather_api"`
	Locations  map[string]GeoPoint `mapstructure:"locations"`
}

// GeoPoint 表示天气直达支持的一个地点坐标。
type GeoPoint struct {
	Lat float64 `mapstructure:"lat"`
	Lon float64 `mapstructure:"lon"`
}

// BillingConfig 存储订阅分层相关的配置。
type BillingConfig struct {
	FreeProductID string `mapstructure:"free_product_id"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
}
