// Package config loads tool configuration with Viper.
//
// A YAML/JSON file is read first, then every environment variable is bound
// under its nested key variants (STORAGE_DRIVER sets storage.driver), then
// an optional .env file is loaded on top. Structs that implement Defaulter
// and Validatable are finalised before LoadConfig returns.
//
//	var cfg Config
//	err := config.LoadConfig("persistctl", &cfg, config.WithConfigFile(path))
package config
