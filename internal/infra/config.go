package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/xela07ax/mapasculturais/internal/domain"
)

// Config корневая структура конфигурации инсталляции.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Storage      StorageConfig      `mapstructure:"storage"`
	App          AppConfig          `mapstructure:"app"`
	Registration RegistrationConfig `mapstructure:"registration"`
	Audit        AuditConfig        `mapstructure:"audit"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	GRPCPort     int           `mapstructure:"grpc_port"` // gRPC health для проб
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (Pub/Sub событий статусов).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig содержит пути к RSA ключам и настройки JWT.
type AuthConfig struct {
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
	LoginRPS       float64       `mapstructure:"login_rps"`   // попыток входа в секунду с одного IP
	LoginBurst     int           `mapstructure:"login_burst"` // запас попыток сверх LoginRPS
	PublicKey      []byte
	PrivateKey     []byte
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// StorageConfig файловое хранилище вложений
type StorageConfig struct {
	BasePath string `mapstructure:"base_path"`
	BaseURL  string `mapstructure:"base_url"`
}

// AppConfig общие настройки веб-приложения
type AppConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	DefaultLocale   string        `mapstructure:"default_locale"`
	ProjectCacheTTL time.Duration `mapstructure:"project_cache_ttl"` // кэш проектов в памяти
}

// RegistrationConfig правила заявок, общие для всей инсталляции.
type RegistrationConfig struct {
	// PropertiesToExport поля агентов, которые копируются в заявку при отправке
	PropertiesToExport []string `mapstructure:"properties_to_export"`

	// AgentRelations роли агентов; первой всегда идет роль владельца
	AgentRelations []domain.AgentRelationDefinition `mapstructure:"agent_relations"`
}

// AuditConfig буфер асинхронной записи аудита переходов
type AuditConfig struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
// path может быть пустым, тогда файл ищется в . и ./configs
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// 2. Переменные окружения: SERVER_PORT=9000 перекроет server.port
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Дефолты
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет, работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.Registration.validate(); err != nil {
		return nil, err
	}

	// 6. Ключи из ENV (Docker/K8s) или из файла
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")
	cfg.Auth.PrivateKey = loadKeyResource(cfg.Auth.PrivateKeyPath, "AUTH_PRIVATE_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.grpc_port", 8001)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.login_rps", 1.0)
	v.SetDefault("auth.login_burst", 5)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("storage.base_path", "./files")
	v.SetDefault("storage.base_url", "/files")
	v.SetDefault("app.base_url", "http://localhost:8000")
	v.SetDefault("app.default_locale", "pt-BR")
	v.SetDefault("app.project_cache_ttl", 30*time.Second)
	v.SetDefault("registration.properties_to_export", DefaultPropertiesToExport)
	v.SetDefault("registration.agent_relations", defaultAgentRelations())
	v.SetDefault("audit.buffer_size", 1000)
	v.SetDefault("audit.batch_size", 100)
	v.SetDefault("audit.flush_interval", 1*time.Second)
}

// DefaultPropertiesToExport набор полей агента, сохраняемых при отправке заявки
var DefaultPropertiesToExport = []string{
	"name",
	"shortDescription",
	"documento",
	"raca",
	"dataDeNascimento",
	"genero",
	"emailPublico",
	"emailPrivado",
	"telefone1",
	"telefone2",
	"endereco",
	"site",
}

func defaultAgentRelations() []map[string]any {
	return []map[string]any{
		{
			"group_name":          domain.OwnerGroup,
			"metadata_name":       "useAgentRelationOwner",
			"label":               "Agente responsável pela inscrição",
			"description":         "Agente individual (pessoa física) com os campos CPF, Raça/Cor, Data de Nascimento/Fundação, Gênero, Email Privado e Telefone 1 obrigatoriamente preenchidos",
			"agent_type":          int(domain.AgentTypeIndividual),
			"required_properties": []string{"documento", "raca", "dataDeNascimento", "genero", "emailPrivado", "telefone1"},
		},
		{
			"group_name":          "instituicao",
			"metadata_name":       "useAgentRelationInstituicao",
			"label":               "Instituição responsável",
			"description":         "Agente coletivo (pessoa jurídica) com os campos CNPJ, Data de Nascimento/Fundação, Email Privado e Telefone 1 obrigatoriamente preenchidos",
			"agent_type":          int(domain.AgentTypeCollective),
			"required_properties": []string{"documento", "dataDeNascimento", "emailPrivado", "telefone1"},
		},
		{
			"group_name":          "coletivo",
			"metadata_name":       "useAgentRelationColetivo",
			"label":               "Coletivo",
			"description":         "Agente coletivo sem CNPJ, com os campos Data de Nascimento/Fundação e Email Privado obrigatoriamente preenchidos",
			"agent_type":          int(domain.AgentTypeCollective),
			"required_properties": []string{"dataDeNascimento", "emailPrivado"},
		},
	}
}

func (c RegistrationConfig) validate() error {
	if len(c.AgentRelations) == 0 || !c.AgentRelations[0].IsOwner() {
		return fmt.Errorf("config: registration.agent_relations must start with the %q definition", domain.OwnerGroup)
	}
	seen := make(map[string]struct{}, len(c.AgentRelations))
	for _, d := range c.AgentRelations {
		if _, dup := seen[d.GroupName]; dup {
			return fmt.Errorf("config: duplicated agent relation group %q", d.GroupName)
		}
		seen[d.GroupName] = struct{}{}
	}
	return nil
}

// loadKeyResource ключ из ENV (PEM) имеет приоритет над файлом
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
