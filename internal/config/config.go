package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/furiosa-ai/furiosa-device-api/pkg/device"
)

const (
	configType            = "yaml"
	envPrefix             = "FURIOSA"
	GlobalConfigMountPath = "/etc/furiosa/device-api.yaml"

	defaultDeviceConfigEnv = "FURIOSA_DEVICES"
	defaultListenAddress   = ":9394"
	defaultCollectTimeout  = 5 * time.Second
	defaultResyncInterval  = 10 * time.Second
)

type ExporterConfig struct {
	ListenAddress  string        `yaml:"listenAddress" validate:"required,hostname_port"`
	CollectTimeout time.Duration `yaml:"collectTimeout" validate:"gt=0"`
}

type WatchConfig struct {
	ResyncInterval time.Duration `yaml:"resyncInterval" validate:"gt=0"`
}

type Config struct {
	DevfsRoot           string         `yaml:"devfsRoot" validate:"required"`
	SysfsRoot           string         `yaml:"sysfsRoot" validate:"required"`
	DeviceConfigEnv     string         `yaml:"deviceConfigEnv" validate:"required"`
	DefaultDeviceConfig string         `yaml:"defaultDeviceConfig" validate:"required"`
	Exporter            ExporterConfig `yaml:"exporter"`
	Watch               WatchConfig    `yaml:"watch"`
	DebugMode           bool           `yaml:"debugMode"`
}

// ChangeEvent reports a write to a watched configuration file, or a failure of the watch itself.
type ChangeEvent struct {
	Filename string
	Detail   string
	IsError  bool
}

func (c *Config) IsDebugMode() bool {
	return c.DebugMode
}

// ListerOptions points a device lister at the configured roots.
func (c *Config) ListerOptions() []device.Option {
	return []device.Option{
		device.WithDevfsRoot(c.DevfsRoot),
		device.WithSysfsRoot(c.SysfsRoot),
	}
}

// DeviceConfig resolves the allocation request: the DeviceConfigEnv variable when
// present, then the configured default.
func (c *Config) DeviceConfig(logger zerolog.Logger) (device.DeviceConfig, error) {
	fallback := c.DefaultDeviceConfig
	return device.DeviceConfigFromEnv(c.DeviceConfigEnv).
		WithLogger(logger).
		OrTry(&fallback).
		OrDefault().
		Build()
}

// GetConfig reads configFilePath over the defaults. A missing or empty path yields the defaults.
func GetConfig(configFilePath string) (*Config, error) {
	confAsMap := defaultConfigMap()

	if ensureConfigExist(configFilePath) {
		fileConf, err := readInConfigAsMap(configFilePath)
		if err != nil {
			return nil, err
		}
		mergeMaps(confAsMap, fileConf)
	}

	conf, err := convertToConfig(confAsMap)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(conf); err != nil {
		return nil, err
	}
	return conf, nil
}

// GetConfigWithWatcher is GetConfig followed by a watch on configFilePath, when
// it exists, that lasts until ctx is done.
func GetConfigWithWatcher(ctx context.Context, configFilePath string, confUpdateChan chan<- *ChangeEvent) (*Config, error) {
	conf, err := GetConfig(configFilePath)
	if err != nil {
		return nil, err
	}

	if !ensureConfigExist(configFilePath) {
		return conf, nil
	}

	if err := startFileWatch(ctx, confUpdateChan, configFilePath); err != nil {
		return nil, err
	}
	return conf, nil
}

func readInConfigAsMap(configFilePath string) (map[string]interface{}, error) {
	contents, err := os.ReadFile(configFilePath)
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{}
	if err := yaml.Unmarshal(contents, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// convertToConfig feeds the merged map to viper as defaults, so FURIOSA_* variables
// (FURIOSA_EXPORTER_LISTENADDRESS, ...) still override the file.
func convertToConfig(confAsMap map[string]interface{}) (*Config, error) {
	v := viper.New()
	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, "", confAsMap)

	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, err
	}
	return conf, nil
}

func setDefaults(v *viper.Viper, prefix string, confAsMap map[string]interface{}) {
	for key, val := range confAsMap {
		if nested, ok := val.(map[string]interface{}); ok {
			setDefaults(v, prefix+key+".", nested)
			continue
		}
		v.SetDefault(prefix+key, val)
	}
}

func validateConfig(conf *Config) error {
	validate := validator.New()
	validate.RegisterStructValidation(func(sl validator.StructLevel) {
		conf := sl.Current().Interface().(Config)

		if !filepath.IsAbs(conf.DevfsRoot) {
			sl.ReportError(conf.DevfsRoot, "DevfsRoot", "devfsRoot", "abspath", "")
		}
		if !filepath.IsAbs(conf.SysfsRoot) {
			sl.ReportError(conf.SysfsRoot, "SysfsRoot", "sysfsRoot", "abspath", "")
		}
		if _, err := device.ParseDeviceConfig(conf.DefaultDeviceConfig); err != nil {
			sl.ReportError(conf.DefaultDeviceConfig, "DefaultDeviceConfig", "defaultDeviceConfig", "deviceconfig", "")
		}
	}, Config{})

	return validate.Struct(conf)
}

func startFileWatch(ctx context.Context, confUpdateChan chan<- *ChangeEvent, filePath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(filepath.Dir(filePath)); err != nil {
		_ = watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != filePath || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				notify(ctx, confUpdateChan, &ChangeEvent{Filename: filePath, Detail: event.Op.String()})
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				notify(ctx, confUpdateChan, &ChangeEvent{Filename: filePath, Detail: watchErr.Error(), IsError: true})
			}
		}
	}()
	return nil
}

func notify(ctx context.Context, confUpdateChan chan<- *ChangeEvent, event *ChangeEvent) {
	select {
	case confUpdateChan <- event:
	case <-ctx.Done():
	}
}

func mergeMaps(dst, src map[string]interface{}) {
	for k, v := range src {
		if v == nil {
			continue
		}
		if reflect.TypeOf(v).Kind() == reflect.Map {
			// if dst[k] does not exist, or is not a map, override it with a new map
			existing, isMap := dst[k].(map[string]interface{})
			if !isMap {
				existing = make(map[string]interface{})
				dst[k] = existing
			}
			nested, ok := v.(map[string]interface{})
			if !ok {
				continue
			}
			mergeMaps(existing, nested)
		} else {
			dst[k] = v
		}
	}
}

func defaultConfigMap() map[string]interface{} {
	return map[string]interface{}{
		"devfsRoot":           device.DefaultDevfsRoot,
		"sysfsRoot":           device.DefaultSysfsRoot,
		"deviceConfigEnv":     defaultDeviceConfigEnv,
		"defaultDeviceConfig": device.DefaultDeviceConfig().String(),
		"exporter": map[string]interface{}{
			"listenAddress":  defaultListenAddress,
			"collectTimeout": defaultCollectTimeout.String(),
		},
		"watch": map[string]interface{}{
			"resyncInterval": defaultResyncInterval.String(),
		},
		"debugMode": false,
	}
}

func ensureConfigExist(configFilePath string) bool {
	if configFilePath == "" {
		return false
	}

	if info, err := os.Stat(configFilePath); err != nil || info.IsDir() {
		return false
	}

	return true
}

// Describe renders validation failures one field per line.
func Describe(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}

	lines := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		lines = append(lines, fmt.Sprintf("%s: failed on %q", fieldErr.Namespace(), fieldErr.Tag()))
	}
	return strings.Join(lines, "\n")
}
