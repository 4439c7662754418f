// Package pipeline reads and writes the pipeline config file.
//
// The config file is the only state shared between batch jobs.
// Each job loads it, reads what it needs and writes back what later jobs need
// (reference antenna, field ids, self-calibration loop counter and so on).
package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/ini.v1"
)

var (
	ErrConfigNotFound = errors.New("pipeline config is not found")
	ErrKeyNotFound    = errors.New("config key is not found")
	ErrTypeMismatch   = errors.New("config value has unexpected type")
)

const (
	SectionData     = "data"
	SectionFields   = "fields"
	SectionSlurm    = "slurm"
	SectionCrosscal = "crosscal"
	SectionRun      = "run"
	SectionSelfcal  = "selfcal"
	SectionImage    = "image"
)

func loadOptions() ini.LoadOptions {
	return ini.LoadOptions{
		// values are literals. They may contain '#' or ';' and quotes are a part of them.
		IgnoreInlineComment:        true,
		IgnoreContinuation:         true,
		PreserveSurroundedQuote:    true,
		AllowPythonMultilineValues: true,
		InsensitiveKeys:            true,
		KeyValueDelimiters:         "=",
		KeyValueDelimiterOnWrite:   "=",
	}
}

// Config is a pipeline config file on memory.
type Config struct {
	file *ini.File
}

// New returns an empty Config.
func New() *Config {
	return &Config{file: ini.Empty(loadOptions())}
}

// Load reads the config file at path.
func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}
	return Read(buf)
}

// Read parses the content of a config file.
func Read(content []byte) (*Config, error) {
	f, err := ini.LoadSources(loadOptions(), content)
	if err != nil {
		return nil, err
	}
	c := &Config{file: f}
	// check everything is parsable now, not when a job reads it.
	for _, sec := range c.Sections() {
		for _, key := range c.Keys(sec) {
			if _, err := c.Get(sec, key); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// Sections returns names of non-empty sections in file order.
func (c *Config) Sections() []string {
	names := []string{}
	for _, sec := range c.file.Sections() {
		if sec.Name() == ini.DefaultSection && len(sec.Keys()) == 0 {
			continue
		}
		names = append(names, sec.Name())
	}
	return names
}

// HasSection reports whether the section exists.
func (c *Config) HasSection(section string) bool {
	_, err := c.file.GetSection(section)
	return err == nil
}

// Keys returns key names of the section in file order.
func (c *Config) Keys(section string) []string {
	sec, err := c.file.GetSection(section)
	if err != nil {
		return nil
	}
	return sec.KeyStrings()
}

// Has reports whether the key exists in the section.
func (c *Config) Has(section, key string) bool {
	sec, err := c.file.GetSection(section)
	if err != nil {
		return false
	}
	return sec.HasKey(key)
}

// Get returns the value of section.key .
func (c *Config) Get(section, key string) (Value, error) {
	sec, err := c.file.GetSection(section)
	if err != nil {
		return Value{}, fmt.Errorf("%w: [%s] %s", ErrKeyNotFound, section, key)
	}
	k, err := sec.GetKey(key)
	if err != nil {
		return Value{}, fmt.Errorf("%w: [%s] %s", ErrKeyNotFound, section, key)
	}
	v, err := Parse(k.Value())
	if err != nil {
		return Value{}, fmt.Errorf("[%s] %s: %w", section, key, err)
	}
	return v, nil
}

// GetOr returns the value of section.key, or def if it is missing.
func (c *Config) GetOr(section, key string, def Value) (Value, error) {
	v, err := c.Get(section, key)
	if errors.Is(err, ErrKeyNotFound) {
		return def, nil
	}
	return v, err
}

func mismatch(section, key string, want string, got Value) error {
	return fmt.Errorf(
		"%w: [%s] %s should be %s, but %s (%s)",
		ErrTypeMismatch, section, key, want, got.Kind(), got.Literal(),
	)
}

// String returns a string value. None is read as "".
func (c *Config) String(section, key string) (string, error) {
	v, err := c.Get(section, key)
	if err != nil {
		return "", err
	}
	if v.Kind() == KindNone {
		return "", nil
	}
	s, ok := v.AsString()
	if !ok {
		return "", mismatch(section, key, "string", v)
	}
	return s, nil
}

func (c *Config) Int(section, key string) (int, error) {
	v, err := c.Get(section, key)
	if err != nil {
		return 0, err
	}
	i, ok := v.AsInt()
	if !ok {
		return 0, mismatch(section, key, "int", v)
	}
	return int(i), nil
}

func (c *Config) Float(section, key string) (float64, error) {
	v, err := c.Get(section, key)
	if err != nil {
		return 0, err
	}
	f, ok := v.AsFloat()
	if !ok {
		return 0, mismatch(section, key, "number", v)
	}
	return f, nil
}

func (c *Config) Bool(section, key string) (bool, error) {
	v, err := c.Get(section, key)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, mismatch(section, key, "bool", v)
	}
	return b, nil
}

// Strings returns a list of strings.
//
// A single non-empty string is taken as a list of one element,
// and an empty string or None as an empty list.
func (c *Config) Strings(section, key string) ([]string, error) {
	v, err := c.Get(section, key)
	if err != nil {
		return nil, err
	}
	return ToStrings(v, section, key)
}

// ToStrings converts v into a list of strings. section and key are for error messages.
func ToStrings(v Value, section, key string) ([]string, error) {
	switch v.Kind() {
	case KindNone:
		return []string{}, nil
	case KindString:
		s, _ := v.AsString()
		if s == "" {
			return []string{}, nil
		}
		return []string{s}, nil
	case KindList, KindTuple:
		ret := make([]string, 0, len(v.Items()))
		for _, it := range v.Items() {
			s, ok := it.AsString()
			if !ok {
				return nil, mismatch(section, key, "list of string", v)
			}
			ret = append(ret, s)
		}
		return ret, nil
	}
	return nil, mismatch(section, key, "list of string", v)
}

// Set puts the value to section.key . The section is created if needed.
func (c *Config) Set(section, key string, value Value) {
	c.file.Section(section).Key(key).SetValue(value.Literal())
}

// Overwrite sets many keys of a section at once.
func (c *Config) Overwrite(section string, values map[string]Value) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		c.Set(section, k, values[k])
	}
}

// Remove deletes section.key . It is noop when the key is missing.
func (c *Config) Remove(section, key string) {
	sec, err := c.file.GetSection(section)
	if err != nil {
		return
	}
	sec.DeleteKey(key)
}

// RemoveSection deletes a whole section.
func (c *Config) RemoveSection(section string) {
	c.file.DeleteSection(section)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	buf := new(bytes.Buffer)
	if _, err := c.WriteTo(buf); err != nil {
		panic(fmt.Sprintf("config can not be serialized: %s", err))
	}
	f, err := ini.LoadSources(loadOptions(), buf.Bytes())
	if err != nil {
		panic(fmt.Sprintf("serialized config can not be read: %s", err))
	}
	return &Config{file: f}
}

// ToMap converts the config into plain go values, for json.
func (c *Config) ToMap() map[string]map[string]any {
	ret := map[string]map[string]any{}
	for _, sec := range c.Sections() {
		m := map[string]any{}
		for _, key := range c.Keys(sec) {
			v, err := c.Get(sec, key)
			if err != nil {
				m[key] = c.file.Section(sec).Key(key).Value()
				continue
			}
			m[key] = v.Interface()
		}
		ret[sec] = m
	}
	return ret
}

func (c *Config) WriteTo(w io.Writer) (int64, error) {
	return c.file.WriteTo(w)
}

// Save writes the config to path.
//
// The file is replaced with rename, so readers see the old or new content, never a part of it.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpname := tmp.Name()
	saved := false
	defer func() {
		if !saved {
			os.Remove(tmpname)
		}
	}()

	if _, err := c.WriteTo(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	mode := os.FileMode(0644)
	if s, err := os.Stat(path); err == nil {
		mode = s.Mode().Perm()
	}
	if err := os.Chmod(tmpname, mode); err != nil {
		return err
	}
	if err := os.Rename(tmpname, path); err != nil {
		return err
	}
	saved = true
	return nil
}

// SplitKey splits "section.key" into its parts.
func SplitKey(path string) (string, string, error) {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			sec, key := path[:i], path[i+1:]
			if sec == "" || key == "" {
				break
			}
			return sec, key, nil
		}
	}
	return "", "", fmt.Errorf("%w: %q is not in the form of SECTION.KEY", ErrKeyNotFound, path)
}
