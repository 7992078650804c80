package features

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Vocabulary lists the categorical values in code order: the value at index
// i encodes as i. A vocabulary loaded from disk is frozen; values outside it
// encode as nil.
type Vocabulary struct {
	Weather  []string `yaml:"weather"`
	RoadType []string `yaml:"road_type"`
}

// LoadVocabulary reads a frozen vocabulary from a YAML file.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "features: read vocabulary %s", path)
	}
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, eris.Wrapf(err, "features: parse vocabulary %s", path)
	}
	return &v, nil
}

// Save writes the vocabulary as YAML so a later run can freeze it.
func (v *Vocabulary) Save(path string) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "features: marshal vocabulary")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "features: create vocabulary dir")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "features: write vocabulary %s", path)
	}
	return nil
}

// Encoder assigns dense integer codes to categorical values.
type Encoder struct {
	codes  map[string]int
	values []string
	frozen bool
}

// NewEncoder returns an encoder that grows in first-seen order.
func NewEncoder() *Encoder {
	return &Encoder{codes: make(map[string]int)}
}

// FrozenEncoder returns an encoder fixed to values.
func FrozenEncoder(values []string) *Encoder {
	e := NewEncoder()
	for _, v := range values {
		if _, ok := e.codes[v]; !ok {
			e.codes[v] = len(e.values)
			e.values = append(e.values, v)
		}
	}
	e.frozen = true
	return e
}

// Encode returns the code for v. A nil value, or an unseen value on a frozen
// encoder, returns nil.
func (e *Encoder) Encode(v *string) *int {
	if v == nil {
		return nil
	}
	code, ok := e.codes[*v]
	if !ok {
		if e.frozen {
			return nil
		}
		code = len(e.values)
		e.codes[*v] = code
		e.values = append(e.values, *v)
	}
	return &code
}

// Code looks up a value without growing the encoder.
func (e *Encoder) Code(v string) (int, bool) {
	code, ok := e.codes[v]
	return code, ok
}

// Values returns the known values in code order.
func (e *Encoder) Values() []string {
	return append([]string(nil), e.values...)
}

// Frozen reports whether the encoder rejects new values.
func (e *Encoder) Frozen() bool { return e.frozen }
