package transcription

import (
	"reflect"
	"testing"

	"github.com/kbukum/scribe/errors"
)

func TestRegistry_ResolveUnknown(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Resolve("missing")
	if errors.CodeOf(err) != errors.ErrCodeProviderUnknown {
		t.Errorf("code = %s, want PROVIDER_UNKNOWN", errors.CodeOf(err))
	}
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	reg := NewRegistry()
	fake := &fakeTranscriber{name: "whisper"}
	if err := reg.Register(fake); err != nil {
		t.Fatal(err)
	}

	got, err := reg.Resolve("whisper")
	if err != nil {
		t.Fatal(err)
	}
	if got != Transcriber(fake) {
		t.Error("resolved a different backend than registered")
	}
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(&fakeTranscriber{name: "whisper"}); err != nil {
		t.Fatal(err)
	}
	err := reg.Register(&fakeTranscriber{name: "whisper"})
	if errors.CodeOf(err) != errors.ErrCodeConfigInvalid {
		t.Errorf("code = %s, want CONFIG_INVALID", errors.CodeOf(err))
	}
}

func TestRegistry_ResolveChain(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"a", "b", "c"} {
		if err := reg.Register(&fakeTranscriber{name: name}); err != nil {
			t.Fatal(err)
		}
	}

	chain, err := reg.ResolveChain("b", "c", "a")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, tr := range chain {
		names = append(names, tr.Name())
	}
	if !reflect.DeepEqual(names, []string{"b", "c", "a"}) {
		t.Errorf("chain order = %v", names)
	}

	if _, err := reg.ResolveChain("b", "nope"); errors.CodeOf(err) != errors.ErrCodeProviderUnknown {
		t.Errorf("unknown fallback: code = %s, want PROVIDER_UNKNOWN", errors.CodeOf(err))
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := reg.Register(&fakeTranscriber{name: name}); err != nil {
			t.Fatal(err)
		}
	}
	if got := reg.Names(); !reflect.DeepEqual(got, []string{"alpha", "mid", "zeta"}) {
		t.Errorf("names = %v", got)
	}
}
