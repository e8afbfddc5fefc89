// Package plugins has the built-in processors: the Utility and SimpleEq
// effects and the SoundFont instrument.
package plugins

import (
	"fmt"
	"slices"
	"strings"

	"github.com/vsariola/lumix"
)

// Options configure a processor created with New.
type Options map[string]string

type constructor func(sampleRate int, opts Options) (lumix.Processor, error)

var registry = map[string]constructor{
	"utility": func(int, Options) (lumix.Processor, error) { return NewUtility(), nil },
	"simpleeq": func(sampleRate int, _ Options) (lumix.Processor, error) {
		return NewSimpleEq(sampleRate), nil
	},
	"soundfont": func(sampleRate int, opts Options) (lumix.Processor, error) {
		path, ok := opts["path"]
		if !ok {
			return nil, fmt.Errorf("soundfont needs the path option")
		}
		return LoadSoundFont(path, sampleRate)
	},
}

// New creates the built-in processor with the given name, case-insensitive.
func New(name string, sampleRate int, opts Options) (lumix.Processor, error) {
	c, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", lumix.ErrUnknownPlugin, name)
	}
	return c(sampleRate, opts)
}

// Names returns the names of the built-in processors, sorted.
func Names() []string {
	ret := make([]string, 0, len(registry))
	for k := range registry {
		ret = append(ret, k)
	}
	slices.Sort(ret)
	return ret
}
