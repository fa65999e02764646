// Package commands implements the papi CLI commands.
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/paperledge/papi/pkg/papi"
	"github.com/paperledge/papi/pkg/plclient"
)

// Output formats.
const (
	OutputFormatJSON = "json"
	OutputFormatYAML = "yaml"

	yamlIndent = 2
)

// Common static errors used throughout the commands package.
var (
	ErrAPIEndpointRequired = errors.New("API endpoint is required (use --api or PAPI_API)")
	ErrNotAuthenticated    = errors.New("not authenticated (run 'papi login' or set PAPI_TOKEN)")
	ErrInvoiceIDRequired   = errors.New("invoice ID is required")
	ErrContactIDRequired   = errors.New("contact ID is required")
	ErrJobIDRequired       = errors.New("job ID is required")
)

// newClient builds an API client from flags, environment, and the saved
// config file.
func newClient() (papi.Client, error) {
	endpoint := viper.GetString("api")
	if endpoint == "" {
		return nil, ErrAPIEndpointRequired
	}

	config := &papi.Config{
		APIEndpoint:  endpoint,
		AccessToken:  viper.GetString("token"),
		RefreshToken: viper.GetString("refresh_token"),
		ClientID:     viper.GetString("client_id"),
		ClientSecret: viper.GetString("client_secret"),
		Username:     viper.GetString("username"),
		Password:     viper.GetString("password"),
	}

	if config.AccessToken == "" && config.RefreshToken == "" && config.Username == "" {
		return nil, ErrNotAuthenticated
	}

	if viper.GetBool("verbose") {
		config.Debug = true
		config.Logger = newCLILogger()
	}

	// A NATS URL opts the CLI into the KV-backed store so concurrent
	// invocations share one token lifecycle.
	if natsURL := viper.GetString("nats_url"); natsURL != "" {
		store, err := papi.NewNATSKVStore(&papi.NATSKVConfig{
			URLs:   []string{natsURL},
			Bucket: viper.GetString("nats_bucket"),
		})
		if err != nil {
			return nil, fmt.Errorf("connecting credential store: %w", err)
		}

		config.CredentialStore = store
	}

	return plclient.New(config)
}

// StandardJSONRenderer creates a standard JSON encoder.
func StandardJSONRenderer[T any](data T) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding data to JSON: %w", err)
	}

	return nil
}

// StandardYAMLRenderer creates a standard YAML encoder.
func StandardYAMLRenderer[T any](data T) error {
	encoder := yaml.NewEncoder(os.Stdout)
	encoder.SetIndent(yamlIndent)

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding data to YAML: %w", err)
	}

	return nil
}

// cliLogger adapts zerolog to the papi.Logger interface.
type cliLogger struct {
	logger zerolog.Logger
}

func newCLILogger() papi.Logger {
	return &cliLogger{
		logger: zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger(),
	}
}

func (l *cliLogger) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug().Fields(fields).Msg(msg)
}

func (l *cliLogger) Info(msg string, fields map[string]interface{}) {
	l.logger.Info().Fields(fields).Msg(msg)
}

func (l *cliLogger) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn().Fields(fields).Msg(msg)
}

func (l *cliLogger) Error(msg string, fields map[string]interface{}) {
	l.logger.Error().Fields(fields).Msg(msg)
}

// decodedResource is a resource object with its attributes decoded for
// rendering.
type decodedResource[T any] struct {
	ID         string `json:"id"         yaml:"id"`
	Type       string `json:"type"       yaml:"type"`
	Attributes T      `json:"attributes" yaml:"attributes"`
}

func decodeForOutput[T any](obj papi.ResourceObject) (decodedResource[T], error) {
	attrs, err := papi.DecodeResource[T](obj)
	if err != nil {
		return decodedResource[T]{}, err
	}

	return decodedResource[T]{ID: obj.ID, Type: obj.Type, Attributes: attrs}, nil
}
