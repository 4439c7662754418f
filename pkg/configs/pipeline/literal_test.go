package pipeline_test

import (
	"errors"
	"testing"

	"github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
)

func TestParse(t *testing.T) {
	type when struct {
		text string
	}
	type then struct {
		value pipeline.Value
		err   error
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			actual, err := pipeline.Parse(when.text)
			if then.err != nil {
				if !errors.Is(err, then.err) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !actual.Equal(then.value) {
				t.Errorf(
					"unexpected value:\n===actual===\n%s\n===expected===\n%s",
					actual.Literal(), then.value.Literal(),
				)
			}
		}
	}

	t.Run("single quoted string", theory(
		when{text: `'*:880~1680MHz'`},
		then{value: pipeline.String("*:880~1680MHz")},
	))
	t.Run("double quoted string with escapes", theory(
		when{text: `"it\'s \"quoted\"\n"`},
		then{value: pipeline.String("it's \"quoted\"\n")},
	))
	t.Run("bare text is a string", theory(
		when{text: `Stevens-Reynolds 2016`},
		then{value: pipeline.String("Stevens-Reynolds 2016")},
	))
	t.Run("empty text is an empty string", theory(
		when{text: "   "},
		then{value: pipeline.String("")},
	))
	t.Run("integer", theory(
		when{text: "-12"},
		then{value: pipeline.Int(-12)},
	))
	t.Run("float", theory(
		when{text: "-0.5"},
		then{value: pipeline.Float(-0.5)},
	))
	t.Run("float in exponent form", theory(
		when{text: "1e-3"},
		then{value: pipeline.Float(0.001)},
	))
	t.Run("booleans and None", theory(
		when{text: "[True, False, None]"},
		then{value: pipeline.List(pipeline.Bool(true), pipeline.Bool(false), pipeline.None())},
	))
	t.Run("number with unit is a string", theory(
		when{text: "1.5arcsec"},
		then{value: pipeline.String("1.5arcsec")},
	))
	t.Run("list of tuples", theory(
		when{text: `[('validate_input.py', False, ''), ('flag_round_1.py', True, '/path/casa.sif'),]`},
		then{value: pipeline.List(
			pipeline.Tuple(pipeline.String("validate_input.py"), pipeline.Bool(false), pipeline.String("")),
			pipeline.Tuple(pipeline.String("flag_round_1.py"), pipeline.Bool(true), pipeline.String("/path/casa.sif")),
		)},
	))
	t.Run("multi-line list", theory(
		when{text: "['0.5mJy',\n  10,\n  10]"},
		then{value: pipeline.List(pipeline.String("0.5mJy"), pipeline.Int(10), pipeline.Int(10))},
	))
	t.Run("single element tuple", theory(
		when{text: "('a',)"},
		then{value: pipeline.Tuple(pipeline.String("a"))},
	))
	t.Run("empty list", theory(
		when{text: "[]"},
		then{value: pipeline.List()},
	))
	t.Run("unclosed list is an error", theory(
		when{text: "[1, 2"},
		then{err: pipeline.ErrSyntax},
	))
	t.Run("unclosed string is an error", theory(
		when{text: "'abc"},
		then{err: pipeline.ErrSyntax},
	))
	t.Run("list followed by garbage is an error", theory(
		when{text: "[1] 2"},
		then{err: pipeline.ErrSyntax},
	))
}

func TestLiteral_RoundTrip(t *testing.T) {
	for name, v := range map[string]pipeline.Value{
		"string with quotes": pipeline.String(`it's a "test"` + "\n\ttab\\"),
		"integral float":     pipeline.Float(2),
		"tiny float":         pipeline.Float(1.5e-9),
		"nested": pipeline.List(
			pipeline.Tuple(pipeline.String("a"), pipeline.Int(1)),
			pipeline.List(),
			pipeline.Tuple(pipeline.None()),
		),
	} {
		t.Run(name, func(t *testing.T) {
			actual, err := pipeline.Parse(v.Literal())
			if err != nil {
				t.Fatal(err)
			}
			if !actual.Equal(v) {
				t.Errorf("round trip changes value: %s -> %s", v.Literal(), actual.Literal())
			}
		})
	}
}

func TestValue_Literal(t *testing.T) {
	for expected, v := range map[string]pipeline.Value{
		`'abc'`:                pipeline.String("abc"),
		`2.0`:                  pipeline.Float(2),
		`True`:                 pipeline.Bool(true),
		`None`:                 pipeline.None(),
		`['a', 'b']`:           pipeline.StringList("a", "b"),
		`('x',)`:               pipeline.Tuple(pipeline.String("x")),
		`[('a.py', True, '')]`: pipeline.List(pipeline.Tuple(pipeline.String("a.py"), pipeline.Bool(true), pipeline.String(""))),
	} {
		if actual := v.Literal(); actual != expected {
			t.Errorf("(actual, expected) = (%s, %s)", actual, expected)
		}
	}
}
