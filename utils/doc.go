// Package utils builds named logrus loggers with log4j-style text or JSON
// output and keeps a registry so their levels can be changed at runtime.
package utils
