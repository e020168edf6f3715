package segment

import "github.com/google/uuid"

// Attribute is a labelled value attached to a segment.
type Attribute struct {
	ID    string
	Label string
	Value string
}

func NewAttribute(label, value string) Attribute {
	return Attribute{ID: uuid.NewString(), Label: label, Value: value}
}

// Attributes maps a label to the values attached under it, in insertion
// order. The zero value is ready to use. Not safe for concurrent mutation.
type Attributes struct {
	byLabel map[string][]Attribute
	labels  []string
}

func (a *Attributes) Add(attr Attribute) {
	if a.byLabel == nil {
		a.byLabel = make(map[string][]Attribute)
	}
	if _, ok := a.byLabel[attr.Label]; !ok {
		a.labels = append(a.labels, attr.Label)
	}
	a.byLabel[attr.Label] = append(a.byLabel[attr.Label], attr)
}

// Get returns a copy of the attributes stored under label.
func (a *Attributes) Get(label string) []Attribute {
	attrs := a.byLabel[label]
	if len(attrs) == 0 {
		return nil
	}
	return append([]Attribute(nil), attrs...)
}

// Labels returns the labels in first-seen order.
func (a *Attributes) Labels() []string {
	return append([]string(nil), a.labels...)
}

func (a *Attributes) Len() int {
	n := 0
	for _, attrs := range a.byLabel {
		n += len(attrs)
	}
	return n
}
