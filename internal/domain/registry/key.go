// Package registry resolves fidelity selections to dataset keys and keeps
// loaded datasets cached until they are explicitly cleared.
package registry

import (
	"fmt"
	"strings"

	"github.com/okian/crimemap/internal/domain/model"
)

// Kind tells what a key points at.
type Kind string

// Key kinds.
const (
	KindIndex     Kind = "index"     // the list of constabularies
	KindIncidents Kind = "incidents" // an incident dataset
)

// FilenameStyle selects how per-constabulary file names are spelled upstream.
type FilenameStyle string

// Supported filename styles.
const (
	// StylePlain names files "{slug}.csv".
	StylePlain FilenameStyle = "plain"
	// StyleTuple names files "('{slug}'%2C).csv", a stringified one-element tuple.
	StyleTuple FilenameStyle = "tuple"
)

// NationwideSlug is the slug of the low fidelity dataset.
const NationwideSlug = "nationwide"

// Key identifies one loadable resource.
type Key struct {
	Kind         Kind           `json:"kind"`
	Fidelity     model.Fidelity `json:"fidelity,omitempty"`
	Constabulary string         `json:"constabulary,omitempty"`
	Slug         string         `json:"slug"`
	Location     string         `json:"location"`
}

// String returns the cache identity of the key.
func (k Key) String() string {
	return string(k.Kind) + ":" + k.Location
}

// Normalize turns a constabulary name into the fragment used in file names
// by replacing spaces with underscores. Every key is built through it.
func Normalize(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

// Filename returns the per-constabulary file name for slug.
func (s FilenameStyle) Filename(slug string) (string, error) {
	switch s {
	case StylePlain:
		return slug + ".csv", nil
	case StyleTuple:
		return "('" + slug + "'%2C).csv", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrFilenameStyle, string(s))
	}
}

// KeyBuilder builds keys from a base location and fixed path templates.
type KeyBuilder struct {
	base      string
	indexPath string
	highDir   string
	lowPath   string
	style     FilenameStyle
}

// NewKeyBuilder creates a KeyBuilder. base is a URL or directory prefix.
func NewKeyBuilder(base string, opts ...KeyOption) (*KeyBuilder, error) {
	b := &KeyBuilder{
		base:      base,
		indexPath: defaultIndexPath,
		highDir:   defaultHighDir,
		lowPath:   defaultLowPath,
		style:     StyleTuple,
	}
	for _, opt := range opts {
		opt(b)
	}
	if _, err := b.style.Filename("x"); err != nil {
		return nil, err
	}
	return b, nil
}

// Index returns the key of the constabulary list.
func (b *KeyBuilder) Index() Key {
	return Key{Kind: KindIndex, Slug: "constabularies", Location: join(b.base, b.indexPath)}
}

// Resolve returns the dataset key for a fidelity tier. High fidelity needs a
// constabulary; low fidelity ignores it.
func (b *KeyBuilder) Resolve(fidelity model.Fidelity, constabulary string) (Key, error) {
	switch fidelity {
	case model.FidelityHigh:
		if constabulary == "" {
			return Key{}, fmt.Errorf("%w: constabulary is required for high fidelity", model.ErrIncompleteSelection)
		}
		slug := Normalize(constabulary)
		name, err := b.style.Filename(slug)
		if err != nil {
			return Key{}, err
		}
		return Key{
			Kind:         KindIncidents,
			Fidelity:     model.FidelityHigh,
			Constabulary: constabulary,
			Slug:         slug,
			Location:     join(b.base, join(b.highDir, name)),
		}, nil
	case model.FidelityLow:
		return Key{
			Kind:     KindIncidents,
			Fidelity: model.FidelityLow,
			Slug:     NationwideSlug,
			Location: join(b.base, b.lowPath),
		}, nil
	default:
		return Key{}, fmt.Errorf("%w: %q", model.ErrUnknownFidelity, fidelity)
	}
}

func join(prefix, path string) string {
	if prefix == "" {
		return path
	}
	if path == "" {
		return prefix
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(path, "/")
}
