package content

import (
	"strings"
	"testing"
)

// newLoadedRegistry loads the real embedded bundle, the same assets the
// binary ships with, so a regression in the bundled fixtures themselves (not
// just the validation logic) also fails this suite.
func newLoadedRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(Config{})
	if err := r.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return r
}

func TestLoadBundledAssetsSucceeds(t *testing.T) {
	newLoadedRegistry(t)
}

func TestPromptResolvesSharedAndProviderVariants(t *testing.T) {
	r := newLoadedRegistry(t)

	shared, err := r.PromptText("system-base", "", nil)
	if err != nil {
		t.Fatalf("PromptText shared: %v", err)
	}
	if shared == "" {
		t.Error("shared system-base prompt is empty")
	}

	anthropic, err := r.PromptText("system-base", "anthropic", nil)
	if err != nil {
		t.Fatalf("PromptText anthropic: %v", err)
	}
	if anthropic == shared {
		t.Error("anthropic variant should override the shared text, not fall back to it")
	}
}

func TestPromptUnknownProviderFallsBackToShared(t *testing.T) {
	r := newLoadedRegistry(t)

	shared, err := r.PromptText("system-base", "", nil)
	if err != nil {
		t.Fatalf("PromptText shared: %v", err)
	}
	viaUnknown, err := r.PromptText("system-base", "no-such-provider", nil)
	if err != nil {
		t.Fatalf("PromptText unknown provider: %v", err)
	}
	if viaUnknown != shared {
		t.Error("an unresolved provider selector should fall back to the shared variant")
	}
}

func TestMessageTextRendersVars(t *testing.T) {
	r := newLoadedRegistry(t)

	text, err := r.MessageText("approval-required", "", "", map[string]string{"path": "/etc/passwd"})
	if err != nil {
		t.Fatalf("MessageText: %v", err)
	}
	if want := "Approval required to leave the workspace: /etc/passwd"; text != want {
		t.Errorf("MessageText = %q, want %q", text, want)
	}
}

func TestMessageUnknownIDFails(t *testing.T) {
	r := newLoadedRegistry(t)
	if _, err := r.MessageText("no-such-message", "", "", nil); err == nil {
		t.Error("expected ErrMissing for an unregistered message id")
	}
}

// --- fail-closed load-time validation (§4.2) ---

func TestLoadMessageBytesRejectsUndeclaredVariable(t *testing.T) {
	r := NewRegistry(Config{})
	data := []byte(`
[greeting]
text = "Hello {{name}}"
vars = []
`)
	err := r.loadMessageBytes(data, "test.toml", false)
	assertIsInvalid(t, err, "undeclared variable")
}

func TestLoadMessageBytesRejectsUnusedDeclaredVariable(t *testing.T) {
	r := NewRegistry(Config{})
	data := []byte(`
[greeting]
text = "Hello there"
vars = ["name"]
`)
	err := r.loadMessageBytes(data, "test.toml", false)
	assertIsInvalid(t, err, "unused variable")
}

func TestLoadMessageBytesRejectsBothSurfaceAndProvider(t *testing.T) {
	r := NewRegistry(Config{})
	data := []byte(`
[greeting]
text = "Hello"
vars = []
surface = "cli"
provider = "anthropic"
`)
	err := r.loadMessageBytes(data, "test.toml", false)
	assertIsInvalid(t, err, "both surface and provider")
}

func TestLoadMessageBytesRejectsDuplicateSharedVariant(t *testing.T) {
	r := NewRegistry(Config{})
	data := []byte(`
[greeting]
text = "Hello"
vars = []
`)
	if err := r.loadMessageBytes(data, "first.toml", false); err != nil {
		t.Fatalf("first load: %v", err)
	}
	err := r.loadMessageBytes(data, "second.toml", false)
	if err == nil {
		t.Fatal("expected ErrDuplicate on a second shared variant of the same id")
	}
}

func TestLoadPromptBytesRejectsFilenameIDMismatch(t *testing.T) {
	r := NewRegistry(Config{})
	data := []byte("+++\nid = \"other-id\"\nscope = \"shared\"\nvars = []\n+++\nbody text\n")
	err := r.loadPromptBytes(data, "my-prompt.md", false)
	assertIsInvalid(t, err, "filename")
}

func TestLoadPromptBytesRejectsScopeSuffixMismatch(t *testing.T) {
	r := NewRegistry(Config{})
	// Declares a provider scope named "anthropic" but the filename suffix
	// says "openai" — the two must agree.
	data := []byte("+++\nid = \"my-prompt\"\nscope = \"provider\"\nname = \"anthropic\"\nvars = []\n+++\nbody text\n")
	err := r.loadPromptBytes(data, "my-prompt@openai.md", false)
	assertIsInvalid(t, err, "filename suffix")
}

func TestLoadPromptBytesRejectsSharedScopeWithSuffix(t *testing.T) {
	r := NewRegistry(Config{})
	data := []byte("+++\nid = \"my-prompt\"\nscope = \"shared\"\nvars = []\n+++\nbody text\n")
	err := r.loadPromptBytes(data, "my-prompt@anthropic.md", false)
	assertIsInvalid(t, err, "shared scope requires no filename suffix")
}

func TestLoadPromptBytesRejectsUndeclaredVariable(t *testing.T) {
	r := NewRegistry(Config{})
	data := []byte("+++\nid = \"my-prompt\"\nscope = \"shared\"\nvars = []\n+++\nHello {{name}}\n")
	err := r.loadPromptBytes(data, "my-prompt.md", false)
	assertIsInvalid(t, err, "undeclared variable")
}

func TestLoadPromptBytesRejectsUnresolvedInclude(t *testing.T) {
	r := NewRegistry(Config{})
	data := []byte("+++\nid = \"my-prompt\"\nscope = \"shared\"\nvars = []\n+++\n{{ include \"does-not-exist.md\" }}\n")
	err := r.loadPromptBytes(data, "my-prompt.md", false)
	assertIsInvalid(t, err, "include")
}

func TestLoadPromptBytesResolvesIncludeAgainstBundle(t *testing.T) {
	r := NewRegistry(Config{})
	data := []byte("+++\nid = \"my-prompt\"\nscope = \"shared\"\nvars = []\n+++\n{{ include \"coding-guidelines.md\" }}\n")
	if err := r.loadPromptBytes(data, "my-prompt.md", false); err != nil {
		t.Fatalf("loadPromptBytes: %v", err)
	}
	variants, ok := r.prompts["my-prompt"]
	if !ok || variants.shared == nil {
		t.Fatal("expected shared variant to be registered")
	}
	if variants.shared.Body == "" {
		t.Error("expected the include directive to be expanded into a non-empty body")
	}
}

func assertIsInvalid(t *testing.T, err error, wantSubstring string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error containing %q, got nil", wantSubstring)
	}
	if !strings.Contains(err.Error(), wantSubstring) {
		t.Errorf("error %q does not contain expected substring %q", err.Error(), wantSubstring)
	}
}
