package content

import (
	"fmt"
	"path"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// PromptTemplate is one loaded variant of a system-prompt fragment, with any
// {{ include }} directives already expanded into Body.
type PromptTemplate struct {
	ID    string
	Scope Scope
	Vars  []string
	Body  string
}

type promptFrontMatter struct {
	ID    string   `toml:"id"`
	Scope string   `toml:"scope"` // "shared", "surface", "provider"
	Name  string   `toml:"name"`  // required when Scope != "shared"
	Vars  []string `toml:"vars"`
}

type promptVariants struct {
	shared   *PromptTemplate
	surface  map[string]*PromptTemplate
	provider map[string]*PromptTemplate
}

func newPromptVariants() *promptVariants {
	return &promptVariants{surface: map[string]*PromptTemplate{}, provider: map[string]*PromptTemplate{}}
}

func (r *Registry) loadPrompts() error {
	entries, err := promptsFS.ReadDir(promptsRoot)
	if err != nil {
		return fmt.Errorf("%w: read prompts bundle: %v", ErrInvalid, err)
	}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".md" {
			continue
		}
		if err := r.loadPromptFile(promptsRoot + "/" + e.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) loadPromptFile(fullPath string) error {
	data, err := promptsFS.ReadFile(fullPath)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrInvalid, fullPath, err)
	}
	return r.loadPromptBytes(data, fullPath, false)
}

// loadPromptBytes parses one prompt markdown file's bytes and registers its
// variant. When override is true, a colliding (id, scope) replaces the
// existing variant instead of raising ErrDuplicate.
func (r *Registry) loadPromptBytes(data []byte, fullPath string, override bool) error {
	stem := strings.TrimSuffix(path.Base(fullPath), ".md")
	filenameID, suffix, err := parseFilename(stem)
	if err != nil {
		return err
	}

	frontRaw, body, err := splitFrontMatter(string(data))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, fullPath, err)
	}
	var front promptFrontMatter
	if err := toml.Unmarshal([]byte(frontRaw), &front); err != nil {
		return fmt.Errorf("%w: front matter in %s: %v", ErrInvalid, fullPath, err)
	}

	scope, err := scopeFromFrontMatter(front)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, fullPath, err)
	}
	if err := validateFilenameIdentity(front.ID, filenameID, scope, suffix); err != nil {
		return err
	}

	expanded, err := resolveIncludes(body, readEmbeddedPrompt)
	if err != nil {
		return err
	}
	used := usedVars(expanded)
	if err := validateVars(front.ID, front.Vars, used); err != nil {
		return err
	}

	tmpl := &PromptTemplate{ID: front.ID, Scope: scope, Vars: front.Vars, Body: strings.TrimSpace(expanded)}
	variants, ok := r.prompts[front.ID]
	if !ok {
		variants = newPromptVariants()
		r.prompts[front.ID] = variants
	}
	if override {
		setPromptVariant(variants, tmpl)
		return nil
	}
	return insertPromptVariant(variants, tmpl)
}

func setPromptVariant(v *promptVariants, tmpl *PromptTemplate) {
	switch tmpl.Scope.Kind {
	case ScopeShared:
		v.shared = tmpl
	case ScopeSurface:
		v.surface[tmpl.Scope.Name] = tmpl
	case ScopeProvider:
		v.provider[tmpl.Scope.Name] = tmpl
	}
}

func scopeFromFrontMatter(f promptFrontMatter) (Scope, error) {
	switch f.Scope {
	case "", "shared":
		return Scope{Kind: ScopeShared}, nil
	case "surface":
		if f.Name == "" {
			return Scope{}, fmt.Errorf("surface scope requires name")
		}
		return Scope{Kind: ScopeSurface, Name: f.Name}, nil
	case "provider":
		if f.Name == "" {
			return Scope{}, fmt.Errorf("provider scope requires name")
		}
		return Scope{Kind: ScopeProvider, Name: f.Name}, nil
	default:
		return Scope{}, fmt.Errorf("unknown scope %q", f.Scope)
	}
}

// parseFilename splits a "id@suffix" stem into its id and optional suffix.
func parseFilename(stem string) (id string, suffix string, err error) {
	parts := strings.Split(stem, "@")
	switch len(parts) {
	case 1:
		return parts[0], "", nil
	case 2:
		return parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf("%w: multiple '@' in filename %q", ErrInvalid, stem)
	}
}

// validateFilenameIdentity enforces that the front matter id matches the
// filename stem, and that a scoped file's filename suffix matches its
// declared scope name.
func validateFilenameIdentity(templateID, filenameID string, scope Scope, suffix string) error {
	if templateID != filenameID {
		return fmt.Errorf("%w: template id %q does not match filename %q", ErrInvalid, templateID, filenameID)
	}
	switch scope.Kind {
	case ScopeShared:
		if suffix != "" {
			return fmt.Errorf("%w: shared scope requires no filename suffix for %s", ErrInvalid, templateID)
		}
	case ScopeSurface, ScopeProvider:
		if suffix != scope.Name {
			return fmt.Errorf("%w: scope name %q does not match filename suffix %q for %s", ErrInvalid, scope.Name, suffix, templateID)
		}
	}
	return nil
}

// splitFrontMatter separates a "+++\n...toml...\n+++\nbody" document.
func splitFrontMatter(text string) (front, body string, err error) {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "+++" {
		return "", "", fmt.Errorf("missing front matter delimiter")
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "+++" {
			return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n"), nil
		}
	}
	return "", "", fmt.Errorf("unterminated front matter")
}

func insertPromptVariant(v *promptVariants, tmpl *PromptTemplate) error {
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

func (v *promptVariants) resolve(provider string) (*PromptTemplate, bool) {
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
