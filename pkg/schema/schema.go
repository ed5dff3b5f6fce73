// Package schema names the data keys of events. A property gives a key a
// name, a data type that values must parse as, and a transient flag marking
// values that describe only the event they are set on.
package schema

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/skydb/pkg/event"
)

// DataType is the type a property's values must parse as
type DataType string

const (
	String  DataType = "string"
	Factor  DataType = "factor"
	Integer DataType = "integer"
	Float   DataType = "float"
	Boolean DataType = "boolean"
)

// ParseDataType parses a data type name. An empty name means String.
func ParseDataType(s string) (DataType, error) {
	switch dt := DataType(strings.ToLower(strings.TrimSpace(s))); dt {
	case "":
		return String, nil
	case String, Factor, Integer, Float, Boolean:
		return dt, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDataType, s)
	}
}

var (
	ErrPropertyExists   = errors.New("property already exists")
	ErrPropertyNotFound = errors.New("property not found")
	ErrInvalidName      = errors.New("invalid property name")
	ErrInvalidDataType  = errors.New("invalid data type")
	ErrInvalidValue     = errors.New("value does not match property type")
	ErrKeyspaceFull     = errors.New("no free property keys")
)

// Property binds a name and type to an event data key
type Property struct {
	ID        event.Key `yaml:"id"`
	Name      string    `yaml:"name"`
	Transient bool      `yaml:"transient"`
	DataType  DataType  `yaml:"data_type"`
}

// Validate checks that value parses as the property's data type
func (p *Property) Validate(value string) error {
	var err error
	switch p.DataType {
	case Integer:
		_, err = strconv.ParseInt(value, 10, 64)
	case Float:
		_, err = strconv.ParseFloat(value, 64)
	case Boolean:
		_, err = strconv.ParseBool(value)
	}
	if err != nil {
		return fmt.Errorf("%w: %s is %s, got %q", ErrInvalidValue, p.Name, p.DataType, value)
	}
	return nil
}

// Schema is the set of properties of one data directory, kept in a YAML file
type Schema struct {
	path       string
	properties map[string]*Property
	byID       map[event.Key]*Property
	mutex      sync.RWMutex
}

type schemaFile struct {
	Properties []*Property `yaml:"properties"`
}

// Load reads the schema at path. A missing file yields an empty schema that
// Save will create.
func Load(path string) (*Schema, error) {
	s := &Schema{
		path:       path,
		properties: make(map[string]*Property),
		byID:       make(map[event.Key]*Property),
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}

	for _, p := range file.Properties {
		if err := s.add(p); err != nil {
			return nil, fmt.Errorf("schema %s: %w", path, err)
		}
	}
	return s, nil
}

// Save writes the schema back to its file
func (s *Schema) Save() error {
	s.mutex.RLock()
	file := schemaFile{Properties: s.sorted()}
	s.mutex.RUnlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("failed to create schema directory: %w", err)
	}
	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write schema file: %w", err)
	}
	return nil
}

// CreateProperty adds a property under the lowest free key, starting at 1
func (s *Schema) CreateProperty(name string, transient bool, dataType DataType) (*Property, error) {
	if _, err := ParseDataType(string(dataType)); err != nil {
		return nil, err
	}
	if dataType == "" {
		dataType = String
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	id, ok := s.freeKey()
	if !ok {
		return nil, ErrKeyspaceFull
	}
	p := &Property{ID: id, Name: name, Transient: transient, DataType: dataType}
	if err := s.add(p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProperty removes a property. Events keep their values under its key.
func (s *Schema) DeleteProperty(name string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p, ok := s.properties[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPropertyNotFound, name)
	}
	delete(s.properties, name)
	delete(s.byID, p.ID)
	return nil
}

// Property looks a property up by name
func (s *Schema) Property(name string) (*Property, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	p, ok := s.properties[name]
	return p, ok
}

// PropertyByID looks a property up by its data key
func (s *Schema) PropertyByID(id event.Key) (*Property, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	p, ok := s.byID[id]
	return p, ok
}

// Properties returns every property ordered by key
func (s *Schema) Properties() []*Property {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.sorted()
}

// SetData validates value against the named property and stores it on e
func (s *Schema) SetData(e *event.Event, name, value string) error {
	p, ok := s.Property(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPropertyNotFound, name)
	}
	if err := p.Validate(value); err != nil {
		return err
	}
	e.SetData(p.ID, value)
	return nil
}

// Format renders e like Event.String, with property names in place of the
// keys the schema knows
func (s *Schema) Format(e *event.Event) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ts=%d object=%d action=%d", e.Timestamp, e.ObjectID, e.ActionID)
	entries := e.Entries()
	if len(entries) == 0 {
		return sb.String()
	}

	sb.WriteString(" data={")
	for i, entry := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		if p, ok := s.PropertyByID(entry.Key); ok {
			fmt.Fprintf(&sb, "%s:%q", p.Name, entry.Value)
		} else {
			fmt.Fprintf(&sb, "%d:%q", entry.Key, entry.Value)
		}
	}
	sb.WriteString("}")
	return sb.String()
}

// add registers p, which the caller has filled in completely
func (s *Schema) add(p *Property) error {
	if err := validName(p.Name); err != nil {
		return err
	}
	dt, err := ParseDataType(string(p.DataType))
	if err != nil {
		return err
	}
	p.DataType = dt
	if p.ID == 0 {
		return fmt.Errorf("property %s: key 0 is reserved", p.Name)
	}
	if _, exists := s.properties[p.Name]; exists {
		return fmt.Errorf("%w: %s", ErrPropertyExists, p.Name)
	}
	if other, exists := s.byID[p.ID]; exists {
		return fmt.Errorf("property %s: key %d already used by %s", p.Name, p.ID, other.Name)
	}
	s.properties[p.Name] = p
	s.byID[p.ID] = p
	return nil
}

func (s *Schema) freeKey() (event.Key, bool) {
	for id := 1; id <= math.MaxUint16; id++ {
		if _, used := s.byID[event.Key(id)]; !used {
			return event.Key(id), true
		}
	}
	return 0, false
}

func (s *Schema) sorted() []*Property {
	props := make([]*Property, 0, len(s.byID))
	for _, p := range s.byID {
		props = append(props, p)
	}
	sort.Slice(props, func(i, j int) bool { return props[i].ID < props[j].ID })
	return props
}

// validName rejects names that could be mistaken for a raw numeric key or
// that cannot appear on the left of name=value
func validName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, "= \t\n") {
		return fmt.Errorf("%w: %q contains '=' or whitespace", ErrInvalidName, name)
	}
	if _, err := strconv.ParseUint(name, 10, 64); err == nil {
		return fmt.Errorf("%w: %q is numeric", ErrInvalidName, name)
	}
	return nil
}
