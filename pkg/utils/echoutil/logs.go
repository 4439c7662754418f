package echoutil

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

var levels = map[string]log.Lvl{
	"debug": log.DEBUG,
	"info":  log.INFO,
	"warn":  log.WARN,
	"":      log.WARN,
	"error": log.ERROR,
	"off":   log.OFF,
}

// ParseLevel reads a log level, one of debug|info|warn|error|off. Empty is warn.
func ParseLevel(name string) (log.Lvl, error) {
	lvl, ok := levels[strings.ToLower(name)]
	if !ok {
		return log.WARN, fmt.Errorf("unknown loglevel: %s", name)
	}
	return lvl, nil
}

// SetLevel sets log level of the server.
//
// Unknown levels fall back to warn.
func SetLevel(e *echo.Echo, name string) {
	lvl, err := ParseLevel(name)
	e.Logger.SetLevel(lvl)
	if err != nil {
		e.Logger.Warnf("%s. fall-backed to warn", err)
	}
}

// LogRequests is a middleware logging each request and its response.
//
// Requests to quiet paths are logged at debug level.
func LogRequests(quiet ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			logf := c.Logger().Infof
			if slices.Contains(quiet, req.URL.Path) {
				logf = c.Logger().Debugf
			}

			begin := time.Now()
			logf("< request %s %s from %s", req.Method, req.URL, c.RealIP())
			err := next(c)
			logf(
				"> response status = %d (for %s %s) in %v / error = %v",
				c.Response().Status, req.Method, req.URL, time.Since(begin), err,
			)
			return err
		}
	}
}
