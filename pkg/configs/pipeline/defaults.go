package pipeline

import (
	_ "embed"
	"fmt"
)

//go:embed default_config.txt
var defaultConfig []byte

// DefaultFilename is the name of a config file which commands look for.
const DefaultFilename = "default_config.txt"

// Default returns a config filled with default values of every section.
func Default() *Config {
	c, err := Read(defaultConfig)
	if err != nil {
		panic(fmt.Sprintf("embedded default config is broken: %s", err))
	}
	return c
}
