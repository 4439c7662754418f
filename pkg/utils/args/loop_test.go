package args_test

import (
	"flag"
	"testing"

	"github.com/meerkat-pipeline/mkpipe/pkg/utils/args"
)

func TestLoop(t *testing.T) {
	t.Run("a number is a loop", func(t *testing.T) {
		loop, err := args.ParseLoop("2")
		if err != nil {
			t.Fatal(err)
		}
		if loop.Value() != 2 || loop.IsCurrent() || !loop.IsSet() {
			t.Errorf("unexpected loop: %v", &loop)
		}
		if loop.String() != "2" {
			t.Errorf("String() = %s", &loop)
		}
	})

	t.Run("current is the recorded loop", func(t *testing.T) {
		loop, err := args.ParseLoop("current")
		if err != nil {
			t.Fatal(err)
		}
		if !loop.IsCurrent() {
			t.Errorf("it is not current: %v", &loop)
		}
		if loop.String() != "current" {
			t.Errorf("String() = %s", &loop)
		}
	})

	for _, s := range []string{"-1", "one", ""} {
		t.Run("it rejects "+s, func(t *testing.T) {
			if _, err := args.ParseLoop(s); err == nil {
				t.Error("expected error does not happen")
			}
		})
	}

	t.Run("zero value is unset", func(t *testing.T) {
		var loop args.Loop
		if loop.IsSet() {
			t.Error("zero value is set")
		}
		if loop.String() != "" {
			t.Errorf("String() = %s", &loop)
		}
	})

	t.Run("it works as a flag", func(t *testing.T) {
		testee := &args.Loop{}
		f := flag.NewFlagSet("test", flag.ContinueOnError)
		f.Var(testee, "loop", "")
		if err := f.Parse([]string{"-loop", "1"}); err != nil {
			t.Fatal(err)
		}
		if !testee.IsSet() || testee.Value() != 1 {
			t.Errorf("unexpected value: %v", testee)
		}
	})

	t.Run("a bad flag is not set", func(t *testing.T) {
		testee := &args.Loop{}
		f := flag.NewFlagSet("test", flag.ContinueOnError)
		f.SetOutput(nopWriter{})
		f.Var(testee, "loop", "")
		if err := f.Parse([]string{"-loop", "x"}); err == nil {
			t.Fatal("expected error does not happen")
		}
		if testee.IsSet() {
			t.Errorf("unexpected value: %v", testee)
		}
	})
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
