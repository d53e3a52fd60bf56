// Package protocol describes the requests and events that the
// compositor understands. The description is embedded as XML in the
// same format used by Wayland protocol specification files.
package protocol

import (
	_ "embed"
	"encoding/xml"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"
)

//go:embed wlcomp.xml
var coreXML string

// Core returns the description of the compositor's own protocol.
var Core = sync.OnceValue(func() *Protocol {
	p, err := Load(strings.NewReader(coreXML))
	if err != nil {
		panic(fmt.Errorf("load embedded protocol: %w", err))
	}
	return p
})

// Load reads a protocol description from r.
func Load(r io.Reader) (*Protocol, error) {
	var p Protocol
	err := xml.NewDecoder(r).Decode(&p)
	if err != nil {
		return nil, fmt.Errorf("decode protocol XML: %w", err)
	}
	return &p, nil
}

type Protocol struct {
	Name      string `xml:"name,attr"`
	Copyright string `xml:"copyright"`

	Interfaces []Interface `xml:"interface"`
}

// Interface returns the interface with the given name.
func (p *Protocol) Interface(name string) (*Interface, bool) {
	i := slices.IndexFunc(p.Interfaces, func(i Interface) bool { return i.Name == name })
	if i < 0 {
		return nil, false
	}
	return &p.Interfaces[i], true
}

type Interface struct {
	Name        string      `xml:"name,attr"`
	Version     int         `xml:"version,attr"`
	Description Description `xml:"description"`

	Requests []Op   `xml:"request"`
	Events   []Op   `xml:"event"`
	Enums    []Enum `xml:"enum"`
}

// Request returns the request with opcode op.
func (i *Interface) Request(op uint16) (Op, bool) {
	if int(op) >= len(i.Requests) {
		return Op{}, false
	}
	return i.Requests[op], true
}

// Event returns the event with opcode op.
func (i *Interface) Event(op uint16) (Op, bool) {
	if int(op) >= len(i.Events) {
		return Op{}, false
	}
	return i.Events[op], true
}

// Enum returns the enum with the given name.
func (i *Interface) Enum(name string) (Enum, bool) {
	e := slices.IndexFunc(i.Enums, func(e Enum) bool { return e.Name == name })
	if e < 0 {
		return Enum{}, false
	}
	return i.Enums[e], true
}

type Description struct {
	Summary string `xml:"summary,attr"`
	Full    string `xml:",chardata"`
}

type Op struct {
	Name        string      `xml:"name,attr"`
	Type        string      `xml:"type,attr"`
	Description Description `xml:"description"`

	Args []Arg `xml:"arg"`
}

// Destructor reports whether the object is destroyed by this op.
func (op Op) Destructor() bool {
	return op.Type == "destructor"
}

type Arg struct {
	Name    string `xml:"name,attr"`
	Summary string `xml:"summary,attr"`

	Type      string `xml:"type,attr"`
	Interface string `xml:"interface,attr"`
	AllowNull bool   `xml:"allow-null,attr"`
	Version   int    `xml:"version,attr"`
}

type Enum struct {
	Name        string      `xml:"name,attr"`
	Description Description `xml:"description"`

	Entries []Entry `xml:"entry"`
}

// Value returns the value of the entry with the given name.
func (e Enum) Value(name string) (int, error) {
	i := slices.IndexFunc(e.Entries, func(entry Entry) bool { return entry.Name == name })
	if i < 0 {
		return 0, fmt.Errorf("no entry %q in enum %v", name, e.Name)
	}
	return e.Entries[i].Int()
}

type Entry struct {
	Name    string `xml:"name,attr"`
	Summary string `xml:"summary,attr"`
	Value   string `xml:"value,attr"`
}

func (e Entry) Int() (int, error) {
	v, err := strconv.ParseInt(e.Value, 0, 0)
	return int(v), err
}
