package get_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/config/get"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/internal/commandline"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/internal/testenv"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/logger"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/youta-t/flarc"
)

func TestTask(t *testing.T) {
	type when struct {
		key   string
		flags get.Flags
	}
	type then struct {
		stdout string
		err    error
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			env, _ := testenv.New(t, nil)
			stdout := new(strings.Builder)
			err := get.Task(
				context.Background(),
				logger.Null(),
				env,
				commandline.MockCommandline[get.Flags]{
					Fullname_: "mkpipe config get",
					Stdout_:   stdout,
					Stderr_:   new(strings.Builder),
					Flags_:    when.flags,
					Args_:     map[string][]string{get.ARG_KEY: {when.key}},
				},
				[]any{},
			)
			if then.err != nil {
				if !errors.Is(err, then.err) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if stdout.String() != then.stdout {
				t.Errorf("stdout = %q, want %q", stdout.String(), then.stdout)
			}
		}
	}

	t.Run("a string is printed as a literal", theory(
		when{key: "crosscal.refant"},
		then{stdout: "'m059'\n"},
	))
	t.Run("a string is printed without quotes with --raw", theory(
		when{key: "crosscal.refant", flags: get.Flags{Raw: true}},
		then{stdout: "m059\n"},
	))
	t.Run("a list is printed as a literal", theory(
		when{key: "selfcal.threshold"},
		then{stdout: "['0.5mJy', 10, 10]\n"},
	))
	t.Run("a list is printed comma separated with --raw", theory(
		when{key: "crosscal.badfreqranges", flags: get.Flags{Raw: true}},
		then{stdout: "933~960MHz,1163~1299MHz,1524~1630MHz\n"},
	))
	t.Run("a missing key is an error", theory(
		when{key: "crosscal.nothing"},
		then{err: pconfig.ErrKeyNotFound},
	))
	t.Run("a key without a section is a usage error", theory(
		when{key: "refant"},
		then{err: flarc.ErrUsage},
	))
}

func TestRaw(t *testing.T) {
	for literal, expected := range map[string]string{
		"'a b'":              "a b",
		"42":                 "42",
		"True":               "True",
		"[('x.py', True)]":   "x.py,True",
		"[]":                 "",
		"['DEEP2', 'DEEP3']": "DEEP2,DEEP3",
	} {
		if actual := get.Raw(pconfig.MustParse(literal)); actual != expected {
			t.Errorf("Raw(%s) = %q, want %q", literal, actual, expected)
		}
	}
}
