package settings

import (
	"path/filepath"
	"testing"
)

func TestApplyDefaultsBoolsRespectFalse(t *testing.T) {
	// explicit values should remain untouched
	stack := true
	s := Settings{
		NPlusOneLimit: Int(3),
		SlowLimit:     Int(2),
		StackHeaders:  &stack,
		RecentLimit:   7,
	}
	out := ApplyDefaults(s)
	if IntValue(out.NPlusOneLimit) != 3 || IntValue(out.SlowLimit) != 2 || out.RecentLimit != 7 {
		t.Fatalf("unexpected defaults override on provided fields: %+v", out)
	}
	if !BoolValue(out.StackHeaders) {
		t.Fatalf("expected explicit true to persist: %+v", out)
	}
}

func TestApplyDefaultsSetsMissing(t *testing.T) {
	out := ApplyDefaults(Settings{})
	if IntValue(out.NPlusOneLimit) != 10 || IntValue(out.SlowLimit) != 5 || out.RecentLimit != 50 {
		t.Fatalf("expected numeric defaults to be set: %+v", out)
	}
	if out.StackHeaders == nil || BoolValue(out.StackHeaders) {
		t.Fatalf("expected stack headers to default off: %+v", out)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	out := Load(filepath.Join(t.TempDir(), "absent.json"))
	if IntValue(out.NPlusOneLimit) != 10 || IntValue(out.SlowLimit) != 5 {
		t.Fatalf("expected defaults: %+v", out)
	}
}

func TestStoreUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	st := NewStore(path)
	stack := true
	if _, err := st.Update(Settings{NPlusOneLimit: Int(4), StackHeaders: &stack}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := st.Current(); IntValue(got.NPlusOneLimit) != 4 || IntValue(got.SlowLimit) != 5 || !BoolValue(got.StackHeaders) {
		t.Fatalf("unexpected current settings: %+v", got)
	}
	if got := NewStore(path).Current(); IntValue(got.NPlusOneLimit) != 4 || !BoolValue(got.StackHeaders) {
		t.Fatalf("expected settings to survive reload: %+v", got)
	}
	if _, err := st.Update(Settings{SlowLimit: Int(MaxLimit + 1)}); err == nil {
		t.Fatalf("expected out-of-range limit to be rejected")
	}
	if got := st.Current(); IntValue(got.NPlusOneLimit) != 4 {
		t.Fatalf("rejected update must not apply: %+v", got)
	}
}

func TestStoreUpdateKeepsExplicitZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	st := NewStore(path)
	got, err := st.Update(Settings{NPlusOneLimit: Int(0), SlowLimit: Int(0)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.NPlusOneLimit == nil || *got.NPlusOneLimit != 0 || got.SlowLimit == nil || *got.SlowLimit != 0 {
		t.Fatalf("explicit zero limits must not fall back to defaults: %+v", got)
	}
	reloaded := NewStore(path).Current()
	if IntValue(reloaded.NPlusOneLimit) != 0 || IntValue(reloaded.SlowLimit) != 0 || reloaded.NPlusOneLimit == nil {
		t.Fatalf("expected zero limits to survive reload: %+v", reloaded)
	}
	if _, err := st.Update(Settings{NPlusOneLimit: Int(-1)}); err == nil {
		t.Fatalf("expected negative limit to be rejected")
	}
}
