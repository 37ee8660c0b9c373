// Package config описывает настройки конвейера «запрос → команда → шина».
// Значения берутся из YAML-файла и переопределяются переменными окружения
// REQ2CMD_*.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// ExtractorSerializer — экстрактор на основе коллектора параметров.
	ExtractorSerializer = "serializer"
	// ExtractorCodec — экстрактор, передающий тело кодеку.
	ExtractorCodec = "codec"
	// DefaultBusName — имя шины команд по умолчанию.
	DefaultBusName = "default"
	// DefaultMaxBodyBytes — ограничение тела запроса по умолчанию.
	DefaultMaxBodyBytes = 10 << 20
)

// Config — корневая конфигурация.
type Config struct {
	Extractor    ExtractorConfig    `yaml:"extractor"`
	CommandBus   CommandBusConfig   `yaml:"command_bus"`
	ParamMappers ParamMappersConfig `yaml:"param_mappers"`
	Listeners    ListenersConfig    `yaml:"listeners"`
	HTTP         HTTPConfig         `yaml:"http"`
}

// ExtractorConfig выбирает стратегию извлечения команды.
type ExtractorConfig struct {
	ServiceID          string `yaml:"service_id"           env:"REQ2CMD_EXTRACTOR"`
	UseCmdDenormalizer bool   `yaml:"use_cmd_denormalizer" env:"REQ2CMD_USE_CMD_DENORMALIZER"`
	// DisallowUnknownFields включает строгий разбор тела для кодека.
	DisallowUnknownFields bool `yaml:"disallow_unknown_fields" env:"REQ2CMD_DISALLOW_UNKNOWN_FIELDS"`
}

// CommandBusConfig выбирает шину из реестра.
type CommandBusConfig struct {
	Name      string `yaml:"name"       env:"REQ2CMD_COMMAND_BUS"`
	Workers   int    `yaml:"workers"    env:"REQ2CMD_COMMAND_BUS_WORKERS"`
	QueueSize int    `yaml:"queue_size" env:"REQ2CMD_COMMAND_BUS_QUEUE_SIZE"`
}

// ParamMappersConfig переопределяет приоритеты мапперов и задает
// отображение заголовков на параметры.
type ParamMappersConfig struct {
	Priorities map[string]int    `yaml:"priorities" env:"REQ2CMD_PARAM_MAPPER_PRIORITIES"`
	Headers    map[string]string `yaml:"headers"    env:"REQ2CMD_PARAM_MAPPER_HEADERS"`
}

// ListenersConfig настраивает слушателей ядра.
type ListenersConfig struct {
	Extractor ListenerConfig `yaml:"extractor"`
}

// ListenerConfig включает слушателя и задает его приоритет.
type ListenerConfig struct {
	Enabled  bool `yaml:"enabled"  env:"REQ2CMD_EXTRACTOR_LISTENER_ENABLED"`
	Priority int  `yaml:"priority" env:"REQ2CMD_EXTRACTOR_LISTENER_PRIORITY"`
}

// HTTPConfig — параметры HTTP-слоя.
type HTTPConfig struct {
	Addr          string `yaml:"addr"           env:"REQ2CMD_HTTP_ADDR"`
	MaxBodyBytes  int64  `yaml:"max_body_bytes" env:"REQ2CMD_HTTP_MAX_BODY_BYTES"`
	SuccessStatus int    `yaml:"success_status" env:"REQ2CMD_HTTP_SUCCESS_STATUS"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() Config {
	return Config{
		Extractor: ExtractorConfig{
			ServiceID:          ExtractorSerializer,
			UseCmdDenormalizer: true,
		},
		CommandBus: CommandBusConfig{
			Name: DefaultBusName,
		},
		Listeners: ListenersConfig{
			Extractor: ListenerConfig{Enabled: true},
		},
		HTTP: HTTPConfig{
			Addr:          ":8080",
			MaxBodyBytes:  DefaultMaxBodyBytes,
			SuccessStatus: http.StatusOK,
		},
	}
}

// Load читает конфигурацию: значения по умолчанию, затем файл path (если
// указан), затем переменные окружения. Результат проверяется Validate.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("не удалось прочитать файл конфигурации: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("не удалось разобрать переменные окружения: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse разбирает YAML поверх значений по умолчанию без учета окружения.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := decodeYAML(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("не удалось разобрать YAML конфигурации: %w", err)
	}
	return nil
}

// Validate проверяет согласованность значений.
func (c Config) Validate() error {
	var errList []error

	switch c.Extractor.ServiceID {
	case ExtractorSerializer, ExtractorCodec:
	default:
		errList = append(errList, fmt.Errorf("extractor.service_id: неизвестный экстрактор '%s'", c.Extractor.ServiceID))
	}
	if c.CommandBus.Name == "" {
		errList = append(errList, errors.New("command_bus.name: имя шины не задано"))
	}
	if c.CommandBus.Workers < 0 || c.CommandBus.QueueSize < 0 {
		errList = append(errList, errors.New("command_bus: размер пула и очереди не могут быть отрицательными"))
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errList = append(errList, errors.New("http.max_body_bytes: значение должно быть положительным"))
	}
	if c.HTTP.SuccessStatus < 200 || c.HTTP.SuccessStatus > 299 {
		errList = append(errList, fmt.Errorf("http.success_status: %d не является успешным статусом", c.HTTP.SuccessStatus))
	}

	return errors.Join(errList...)
}
