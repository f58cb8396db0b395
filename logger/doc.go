// Package logger provides structured logging using zerolog.
//
// It supports JSON and console output, log level configuration, and
// component-scoped loggers with structured fields. Library types in this
// module (mapper, gateway, storage backends) accept a *Logger and otherwise
// take their component logger from Get. Component loggers derive from the
// global logger, which is silent until Init or InitWithWriter installs one.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	logger.InitWithWriter(os.Stderr, &cfg.Logging, "persistctl")
//	log := logger.Get(logger.ComponentMapper)
//	log.Debug("save batch persisted", logger.Fields(logger.FieldBatchSize, 3))
package logger
