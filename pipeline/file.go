package pipeline

import (
	"sync"

	"github.com/google/uuid"
)

// Message is a non-fatal note attached to a file by a stage.
type Message struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// File is the context object carried alongside a tree through a processor.
// Stages may read and write Value and attach data or messages; the same
// File is shared with downstream processors in bridge setups.
type File struct {
	ID    string
	Path  string
	Value []byte

	mu       sync.Mutex
	data     map[string]any
	messages []Message
}

// NewFile creates a File with a fresh ID.
func NewFile(path string, value []byte) *File {
	return &File{
		ID:    uuid.NewString(),
		Path:  path,
		Value: value,
	}
}

// SetData stores a value under key.
func (f *File) SetData(key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.data == nil {
		f.data = make(map[string]any)
	}
	f.data[key] = value
}

// Data returns the value stored under key.
func (f *File) Data(key string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	value, ok := f.data[key]
	return value, ok
}

// Warn attaches a message to the file.
func (f *File) Warn(source, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.messages = append(f.messages, Message{Source: source, Reason: reason})
}

// Messages returns a copy of the messages attached so far.
func (f *File) Messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.messages) == 0 {
		return nil
	}
	out := make([]Message, len(f.messages))
	copy(out, f.messages)
	return out
}
