// Package logger makes loggers of commands.
//
// Logs go to stderr with the name of the command, leaving stdout to the output of the command.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

// New returns a logger writing to w with the prefix "[name] ".
func New(w io.Writer, name string) *log.Logger {
	return log.New(w, fmt.Sprintf("[%s] ", name), log.LstdFlags)
}

// Default is a logger of the command name on stderr.
func Default(name string) *log.Logger {
	return New(os.Stderr, name)
}

// Null discards logs.
func Null() *log.Logger {
	return log.New(io.Discard, "", 0)
}
