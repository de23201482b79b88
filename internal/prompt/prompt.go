// Package prompt holds the persona templates that become the model's system instruction.
package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// Placeholder is replaced by the memory context string.
	Placeholder = "{{MEMORY_CONTEXT}}"

	DefaultName         = "tabula-rasa"
	DefaultTemperature  = 0.7
	DefaultErrorMessage = "ERRO CRÍTICO: Falha na conexão com o núcleo neural."
	DefaultNoReply      = "Sem resposta do servidor."
	DefaultEmptyMemory  = "Nenhuma memória encontrada. A mente está vazia."
)

var ErrUnknownPersona = errors.New("prompt: unknown persona")

//go:embed personas.yaml
var builtinYAML []byte

// Persona is a named system-instruction template and the user-visible strings that go with it.
type Persona struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Temperature  *float64 `yaml:"temperature"`
	EmptyMemory  string   `yaml:"empty_memory"`
	ErrorMessage string   `yaml:"error_message"`
	NoReply      string   `yaml:"no_reply"`
	Template     string   `yaml:"template"`
}

// Temp returns the sampling temperature, defaulting to 0.7.
func (p Persona) Temp() float64 {
	if p.Temperature == nil {
		return DefaultTemperature
	}
	return *p.Temperature
}

// SystemInstruction substitutes the memory context into the template.
func (p Persona) SystemInstruction(memoryContext string) string {
	return strings.Replace(p.Template, Placeholder, memoryContext, 1)
}

func (p *Persona) applyDefaults() {
	if p.EmptyMemory == "" {
		p.EmptyMemory = DefaultEmptyMemory
	}
	if p.ErrorMessage == "" {
		p.ErrorMessage = DefaultErrorMessage
	}
	if p.NoReply == "" {
		p.NoReply = DefaultNoReply
	}
}

// Catalog is a set of personas keyed by name.
type Catalog struct {
	Personas []Persona `yaml:"personas"`
	byName   map[string]Persona
}

// Parse decodes and validates a persona YAML document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode personas: %w", err)
	}
	if len(c.Personas) == 0 {
		return nil, errors.New("decode personas: no personas defined")
	}
	c.byName = make(map[string]Persona, len(c.Personas))
	for i := range c.Personas {
		p := &c.Personas[i]
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, fmt.Errorf("persona #%d: missing name", i)
		}
		if _, dup := c.byName[p.Name]; dup {
			return nil, fmt.Errorf("persona %q: duplicate name", p.Name)
		}
		if !strings.Contains(p.Template, Placeholder) {
			return nil, fmt.Errorf("persona %q: template lacks %s", p.Name, Placeholder)
		}
		p.applyDefaults()
		c.byName[p.Name] = *p
	}
	return &c, nil
}

// Builtin returns the embedded personas.
func Builtin() *Catalog {
	c, err := Parse(builtinYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFile parses personas from path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Get returns the named persona.
func (c *Catalog) Get(name string) (Persona, error) {
	p, ok := c.byName[name]
	if !ok {
		return Persona{}, fmt.Errorf("%w %q (have: %s)", ErrUnknownPersona, name, strings.Join(c.Names(), ", "))
	}
	return p, nil
}

// Names lists persona names alphabetically.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.byName))
	for n := range c.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Resolve picks a persona from file (or the built-ins when file is empty) by name.
func Resolve(file, name string) (Persona, error) {
	cat := Builtin()
	if file != "" {
		var err error
		if cat, err = LoadFile(file); err != nil {
			return Persona{}, fmt.Errorf("load persona file: %w", err)
		}
	}
	if name == "" {
		name = DefaultName
	}
	return cat.Get(name)
}
