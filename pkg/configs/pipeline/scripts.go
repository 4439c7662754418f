package pipeline

import "fmt"

// ScriptSpec is an entry of the script lists in [slurm]: (script, mpi, container).
type ScriptSpec struct {
	Script string
	MPI    bool

	// container image for this script. Empty means [slurm] container.
	Container string
}

func (s ScriptSpec) Value() Value {
	return Tuple(String(s.Script), Bool(s.MPI), String(s.Container))
}

// Scripts reads a list of ScriptSpec.
//
// Each element is a tuple or a list of (script, mpi, container).
// The container may be omitted, and a bare string is a serial script.
func (c *Config) Scripts(section, key string) ([]ScriptSpec, error) {
	v, err := c.Get(section, key)
	if err != nil {
		return nil, err
	}
	if v.Kind() == KindNone {
		return []ScriptSpec{}, nil
	}
	if s, ok := v.AsString(); ok && s == "" {
		return []ScriptSpec{}, nil
	}
	if !v.IsSequence() {
		return nil, mismatch(section, key, "list of (script, mpi, container)", v)
	}

	ret := make([]ScriptSpec, 0, len(v.Items()))
	for i, item := range v.Items() {
		if s, ok := item.AsString(); ok {
			ret = append(ret, ScriptSpec{Script: s})
			continue
		}
		elems := item.Items()
		if len(elems) < 2 || 3 < len(elems) {
			return nil, fmt.Errorf(
				"%w: [%s] %s #%d should be (script, mpi, container), but %s",
				ErrTypeMismatch, section, key, i, item.Literal(),
			)
		}
		script, ok := elems[0].AsString()
		if !ok || script == "" {
			return nil, fmt.Errorf("%w: [%s] %s #%d: script name is not a string", ErrTypeMismatch, section, key, i)
		}
		mpi, ok := elems[1].AsBool()
		if !ok {
			return nil, fmt.Errorf("%w: [%s] %s #%d: mpi is not a bool", ErrTypeMismatch, section, key, i)
		}
		spec := ScriptSpec{Script: script, MPI: mpi}
		if len(elems) == 3 && elems[2].Kind() != KindNone {
			if spec.Container, ok = elems[2].AsString(); !ok {
				return nil, fmt.Errorf(
					"%w: [%s] %s #%d: container is not a string", ErrTypeMismatch, section, key, i,
				)
			}
		}
		ret = append(ret, spec)
	}
	return ret, nil
}

// SetScripts writes a list of ScriptSpec.
func (c *Config) SetScripts(section, key string, scripts []ScriptSpec) {
	items := make([]Value, 0, len(scripts))
	for _, s := range scripts {
		items = append(items, s.Value())
	}
	c.Set(section, key, List(items...))
}
