package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀, 如 CALC_RPC_LISTEN_ADDR
const EnvPrefix = "CALC"

var Config *AppConfig

type AppConfig struct {
	AppVersion         string `json:"app_version" yaml:"app_version" mapstructure:"app_version"`
	LogConfig          `json:",inline" yaml:",inline" mapstructure:",squash"`
	RpcConfig          `json:",inline" yaml:",inline" mapstructure:",squash"`
	AuthConfig         `json:",inline" yaml:",inline" mapstructure:",squash"`
	CorsAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" mapstructure:"cors_allowed_origins"` //空表示任意来源
	MetricsEnabled     bool     `json:"metrics_enabled" yaml:"metrics_enabled" mapstructure:"metrics_enabled"`
}

type RpcConfig struct {
	RpcListenAddr string `json:"rpc_listen_addr" yaml:"rpc_listen_addr" mapstructure:"rpc_listen_addr"`    //本节点服务监听的地址
	RpcMaxMsgSize int    `json:"rpc_max_msg_size" yaml:"rpc_max_msg_size" mapstructure:"rpc_max_msg_size"` //单个消息最大字节数
	RpcWebEnabled bool   `json:"rpc_web_enabled" yaml:"rpc_web_enabled" mapstructure:"rpc_web_enabled"`    //Calculator 是否开放 grpc-web
}

type LogConfig struct {
	LogPath    string `json:"log_path" yaml:"log_path" mapstructure:"log_path"`
	LogName    string `json:"log_name" yaml:"log_name" mapstructure:"log_name"`
	LogLevel   string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogStdOut  bool   `json:"log_std_out" yaml:"log_std_out" mapstructure:"log_std_out"`
	LogBackend string `json:"log_backend" yaml:"log_backend" mapstructure:"log_backend"` // std | file | zap
}

type AuthConfig struct {
	AuthMode      string `json:"auth_mode" yaml:"auth_mode" mapstructure:"auth_mode"` // static | jwt
	AuthToken     string `json:"-" yaml:"-" mapstructure:"auth_token"`
	AuthJwtSecret string `json:"-" yaml:"-" mapstructure:"auth_jwt_secret"`
}

const (
	LogBackendStd  = "std"
	LogBackendFile = "file"
	LogBackendZap  = "zap"

	AuthModeStatic = "static"
	AuthModeJwt    = "jwt"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_version", "dev")
	v.SetDefault("log_path", "./logs")
	v.SetDefault("log_name", "calcsrv")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_std_out", true)
	v.SetDefault("log_backend", LogBackendStd)
	v.SetDefault("rpc_listen_addr", "[::1]:50051")
	v.SetDefault("rpc_max_msg_size", 10*1024*1024)
	v.SetDefault("rpc_web_enabled", true)
	v.SetDefault("auth_mode", AuthModeStatic)
	v.SetDefault("auth_token", "Bearer token")
	v.SetDefault("auth_jwt_secret", "")
	v.SetDefault("cors_allowed_origins", []string{})
	v.SetDefault("metrics_enabled", false)
}

// LoadConfig configFile 可以为空; 文件格式按扩展名识别 (json/yaml/toml), 环境变量优先级最高
func LoadConfig(configFile string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	conf := new(AppConfig)
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	Config = conf
	return conf, nil
}

func (conf *AppConfig) Validate() error {
	switch conf.LogBackend {
	case LogBackendStd, LogBackendFile, LogBackendZap:
	default:
		return fmt.Errorf("unknown log_backend %q", conf.LogBackend)
	}
	switch conf.AuthMode {
	case AuthModeStatic:
		if conf.AuthToken == "" {
			return errors.New("auth_token is empty")
		}
	case AuthModeJwt:
		if conf.AuthJwtSecret == "" {
			return errors.New("auth_jwt_secret is required when auth_mode is jwt")
		}
	default:
		return fmt.Errorf("unknown auth_mode %q", conf.AuthMode)
	}
	if conf.RpcListenAddr == "" {
		return errors.New("rpc_listen_addr is empty")
	}
	return nil
}

func (conf *AppConfig) JsonFormat() string {
	if conf == nil {
		return "{}"
	}
	data, err := json.MarshalIndent(conf, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

func (conf *AppConfig) YamlFormat() string {
	if conf == nil {
		return "{}"
	}
	data, err := yaml.Marshal(conf)
	if err != nil {
		return ""
	}
	return string(data)
}
