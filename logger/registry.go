package logger

import (
	"io"
	"sync"
	"sync/atomic"
)

// Component names the persist packages log under.
const (
	ComponentMapper  = "mapper"
	ComponentGateway = "gateway"
	ComponentStorage = "storage"
	ComponentRedis   = "redis"
)

// Components is what RegisterDefaults registers when called without names.
var Components = []string{ComponentMapper, ComponentGateway, ComponentStorage, ComponentRedis}

var global atomic.Pointer[Logger]

// components maps a component name to the logger built for it.
var components = struct {
	sync.RWMutex
	m map[string]*Logger
}{m: make(map[string]*Logger)}

// InitWithWriter installs a logger writing to w as the global logger and
// re-registers the component loggers from it. The new logger is returned.
func InitWithWriter(w io.Writer, cfg *Config, serviceName string) *Logger {
	l := NewWithWriter(w, cfg, serviceName)
	SetGlobalLogger(l)
	RegisterDefaults()
	return l
}

// SetGlobalLogger sets the global logger instance. Loggers registered
// earlier keep pointing at the previous one until RegisterDefaults runs.
func SetGlobalLogger(l *Logger) { global.Store(l) }

// GetGlobalLogger returns the global logger. Until one is installed it is
// a Nop logger.
func GetGlobalLogger() *Logger {
	if l := global.Load(); l != nil {
		return l
	}
	return Nop()
}

// Register stores l as the logger for a component.
func Register(name string, l *Logger) {
	components.Lock()
	defer components.Unlock()
	components.m[name] = l
}

// Get returns the logger for a component. Library constructors call it when
// no logger is injected. An unregistered name gets the global logger tagged
// with the component.
func Get(name string) *Logger {
	components.RLock()
	l, ok := components.m[name]
	components.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

// RegisterDefaults registers a component logger derived from the global
// logger for each name, or for Components when none are given.
func RegisterDefaults(names ...string) {
	if len(names) == 0 {
		names = Components
	}
	base := GetGlobalLogger()
	components.Lock()
	defer components.Unlock()
	for _, name := range names {
		components.m[name] = base.WithComponent(name)
	}
}

// Package-level convenience functions delegate to the global logger.

func Debug(msg string, fields ...map[string]interface{}) {
	GetGlobalLogger().Debug(msg, fields...)
}

func Info(msg string, fields ...map[string]interface{}) {
	GetGlobalLogger().Info(msg, fields...)
}

func Warn(msg string, fields ...map[string]interface{}) {
	GetGlobalLogger().Warn(msg, fields...)
}

func Error(msg string, fields ...map[string]interface{}) {
	GetGlobalLogger().Error(msg, fields...)
}

// WithComponent returns a component-tagged logger from the global logger.
func WithComponent(name string) *Logger {
	return GetGlobalLogger().WithComponent(name)
}
