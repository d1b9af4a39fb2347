package content

import (
	"fmt"
	"io/fs"
	"path"

	"github.com/pelletier/go-toml/v2"
)

// MessageTemplate is one loaded variant of a message id.
type MessageTemplate struct {
	ID    string
	Scope Scope
	Text  string
	Vars  []string
	Style string
}

// RenderedMessage is what a transport actually displays: text plus an
// optional styling hint. Transports that understand structured replies
// (buttons, embeds) key off Style; plain transports just print Text.
type RenderedMessage struct {
	Text  string
	Style string
}

type messageEntryRaw struct {
	Text     string   `toml:"text"`
	Vars     []string `toml:"vars"`
	Surface  string   `toml:"surface"`
	Provider string   `toml:"provider"`
	Style    string   `toml:"style"`
}

type messageVariants struct {
	shared   *MessageTemplate
	surface  map[string]*MessageTemplate
	provider map[string]*MessageTemplate
}

func newMessageVariants() *messageVariants {
	return &messageVariants{surface: map[string]*MessageTemplate{}, provider: map[string]*MessageTemplate{}}
}

func (r *Registry) loadMessages() error {
	return fs.WalkDir(messagesFS, messagesRoot, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: walk %s: %v", ErrInvalid, full, err)
		}
		if d.IsDir() || path.Ext(d.Name()) != ".toml" {
			return nil
		}
		return r.loadMessageFile(full)
	})
}

func (r *Registry) loadMessageFile(fullPath string) error {
	data, err := messagesFS.ReadFile(fullPath)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrInvalid, fullPath, err)
	}
	return r.loadMessageBytes(data, fullPath, false)
}

// loadMessageBytes parses one message TOML file's bytes and registers its
// entries. When override is true, a colliding (id, scope) replaces the
// existing variant instead of raising ErrDuplicate — operator-supplied
// content is meant to shadow the bundled defaults.
func (r *Registry) loadMessageBytes(data []byte, displayPath string, override bool) error {
	var table map[string]messageEntryRaw
	if err := toml.Unmarshal(data, &table); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalid, displayPath, err)
	}

	for id, raw := range table {
		scope, err := scopeFromRaw(id, raw.Surface, raw.Provider)
		if err != nil {
			return err
		}
		used := usedVars(raw.Text)
		if err := validateVars(id, raw.Vars, used); err != nil {
			return err
		}
		tmpl := &MessageTemplate{ID: id, Scope: scope, Text: raw.Text, Vars: raw.Vars, Style: raw.Style}
		variants, ok := r.messages[id]
		if !ok {
			variants = newMessageVariants()
			r.messages[id] = variants
		}
		if override {
			setMessageVariant(variants, tmpl)
			continue
		}
		if err := insertMessageVariant(variants, tmpl); err != nil {
			return err
		}
	}
	return nil
}

func setMessageVariant(v *messageVariants, tmpl *MessageTemplate) {
	switch tmpl.Scope.Kind {
	case ScopeShared:
		v.shared = tmpl
	case ScopeSurface:
		v.surface[tmpl.Scope.Name] = tmpl
	case ScopeProvider:
		v.provider[tmpl.Scope.Name] = tmpl
	}
}

func scopeFromRaw(id, surface, provider string) (Scope, error) {
	if surface != "" && provider != "" {
		return Scope{}, fmt.Errorf("%w: %s declares both surface and provider", ErrInvalid, id)
	}
	if surface != "" {
		return Scope{Kind: ScopeSurface, Name: surface}, nil
	}
	if provider != "" {
		return Scope{Kind: ScopeProvider, Name: provider}, nil
	}
	return Scope{Kind: ScopeShared}, nil
}

func insertMessageVariant(v *messageVariants, tmpl *MessageTemplate) error {
	switch tmpl.Scope.Kind {
	case ScopeShared:
		if v.shared != nil {
			return fmt.Errorf("%w: %s (shared)", ErrDuplicate, tmpl.ID)
		}
		v.shared = tmpl
	case ScopeSurface:
		if _, ok := v.surface[tmpl.Scope.Name]; ok {
			return fmt.Errorf("%w: %s@%s", ErrDuplicate, tmpl.ID, tmpl.Scope.Name)
		}
		v.surface[tmpl.Scope.Name] = tmpl
	case ScopeProvider:
		if _, ok := v.provider[tmpl.Scope.Name]; ok {
			return fmt.Errorf("%w: %s@%s", ErrDuplicate, tmpl.ID, tmpl.Scope.Name)
		}
		v.provider[tmpl.Scope.Name] = tmpl
	}
	return nil
}

// resolve picks the surface-specific variant if one exists, else the
// provider-specific variant, else the shared fallback.
func (v *messageVariants) resolve(surface, provider string) (*MessageTemplate, bool) {
	if surface != "" {
		if t, ok := v.surface[surface]; ok {
			return t, true
		}
	}
	if provider != "" {
		if t, ok := v.provider[provider]; ok {
			return t, true
		}
	}
	if v.shared != nil {
		return v.shared, true
	}
	return nil, false
}
