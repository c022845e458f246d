package language

import (
	"fmt"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultName is the entry selected when a picker is created.
const DefaultName = "English"

type Entry struct {
	Name string // display name, unique within the table
	Tag  string // BCP-47 locale tag handed to the recognizer
}

// Entries is the fixed picker table. Order is display order.
var Entries = []Entry{
	{"Bengali", "bn-IN"},
	{"English", "en"},
	{"Gujarati", "gu-IN"},
	{"Hindi", "hi-IN"},
	{"Kannada", "kn-IN"},
	{"Malayalam", "ml-IN"},
	{"Marathi", "mr-IN"},
	{"Punjabi", "pa-IN"},
	{"Tamil", "ta-IN"},
	{"Telugu", "te-IN"},
	{"Urdu", "ur-IN"},
}

// Validate checks that names are unique and every tag parses.
func Validate(entries []Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("language table is empty")
	}
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if seen[e.Name] {
			return fmt.Errorf("duplicate language %q at index %d", e.Name, i)
		}
		seen[e.Name] = true
		if _, err := xlang.Parse(e.Tag); err != nil {
			return fmt.Errorf("language %q: bad tag %q: %w", e.Name, e.Tag, err)
		}
	}
	return nil
}

// Native returns the language's name in its own script ("हिन्दी" for hi-IN),
// or "" if the tag has no self-name.
func Native(e Entry) string {
	tag, err := xlang.Parse(e.Tag)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return display.Self.Name(base)
}

// Picker tracks the active selection over a static table.
type Picker struct {
	entries  []Entry
	selected int
}

// NewPicker selects the English entry if present, otherwise the first one.
func NewPicker(entries []Entry) *Picker {
	p := &Picker{entries: entries}
	if i := p.Index(DefaultName); i >= 0 {
		p.selected = i
	}
	return p
}

// Select makes entry i active and returns its locale tag. i must be a valid
// index into the table.
func (p *Picker) Select(i int) string {
	e := p.entries[i]
	p.selected = i
	return e.Tag
}

// SelectName selects by display name; false if the name is not in the table.
func (p *Picker) SelectName(name string) bool {
	i := p.Index(name)
	if i < 0 {
		return false
	}
	p.selected = i
	return true
}

func (p *Picker) Index(name string) int {
	for i, e := range p.entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}

func (p *Picker) Selected() Entry    { return p.entries[p.selected] }
func (p *Picker) SelectedIndex() int { return p.selected }
func (p *Picker) Len() int           { return len(p.entries) }
func (p *Picker) Entry(i int) Entry  { return p.entries[i] }

func (p *Picker) Names() []string {
	names := make([]string, len(p.entries))
	for i, e := range p.entries {
		names[i] = e.Name
	}
	return names
}
