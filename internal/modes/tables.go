// Package modes holds the fixed translations between the unit's operation, fan and
// swing codes and their human labels.
package modes

import (
	"errors"
	"fmt"
	"strconv"
)

var ErrUnknownMode = errors.New("unknown mode")

// Operation labels.
const (
	Off     = "Off"
	Auto    = "Auto"
	Dry     = "Dry"
	Cooling = "Cooling"
	Heating = "Heating"
	Fan     = "Fan"
)

// OffCode is the operation code that is written as pow=0 rather than as a mode.
const OffCode = "0"

// Table is a fixed bidirectional mapping between device codes and labels.
type Table struct {
	name    string
	numeric bool
	labels  []string
	byCode  map[string]string
	byLabel map[string]string
}

type entry struct {
	code  string
	label string
}

func newTable(name string, numeric bool, entries ...entry) *Table {
	t := &Table{
		name:    name,
		numeric: numeric,
		byCode:  make(map[string]string, len(entries)),
		byLabel: make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		if _, dup := t.byLabel[e.label]; dup {
			panic(fmt.Sprintf("modes: duplicate %s label %q", name, e.label))
		}
		t.byCode[e.code] = e.label
		t.byLabel[e.label] = e.code
		t.labels = append(t.labels, e.label)
	}
	return t
}

// Operation lists labels in the order they are offered to users; code 5 is reserved.
var Operation = newTable("operation", true,
	entry{"1", Auto},
	entry{"3", Cooling},
	entry{"4", Heating},
	entry{"6", Fan},
	entry{"2", Dry},
	entry{"0", Off},
)

var FanRate = newTable("fan rate", false,
	entry{"A", "Automatic"},
	entry{"B", "Indoor unit quiet"},
	entry{"3", "1"},
	entry{"4", "2"},
	entry{"5", "3"},
	entry{"6", "4"},
	entry{"7", "5"},
)

var Swing = newTable("swing", true,
	entry{"0", "Off"},
	entry{"1", "Up-down swing"},
	entry{"2", "Left-right swing"},
	entry{"3", "3D swing"},
)

func (t *Table) Name() string { return t.name }

// Label resolves a device code. Integer tables accept any decimal spelling of the code.
func (t *Table) Label(code string) (string, error) {
	if label, ok := t.byCode[t.normalize(code)]; ok {
		return label, nil
	}
	return "", fmt.Errorf("%w: %s code %q", ErrUnknownMode, t.name, code)
}

func (t *Table) Code(label string) (string, error) {
	if code, ok := t.byLabel[label]; ok {
		return code, nil
	}
	return "", fmt.Errorf("%w: %s %q", ErrUnknownMode, t.name, label)
}

// Labels returns a copy of the table's labels in display order.
func (t *Table) Labels() []string {
	out := make([]string, len(t.labels))
	copy(out, t.labels)
	return out
}

func (t *Table) normalize(code string) string {
	if !t.numeric {
		return code
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return code
	}
	return strconv.Itoa(n)
}
