// Package confloader provides configuration loading for LapStream.
//
// It uses Koanf for flexible configuration loading from multiple
// sources with priority: Env > File > Default. A companion fsnotify
// watcher supports live reload of the configuration file.
package confloader
