package modelkit

import "testing"

func TestGetModelInfo(t *testing.T) {
	info := GetModelInfo("claude-sonnet-4-5")
	if info == nil {
		t.Fatal("expected catalog entry")
	}
	if info.Provider != "anthropic" {
		t.Errorf("expected anthropic, got %s", info.Provider)
	}
}

func TestGetModelInfoByAlias(t *testing.T) {
	info := GetModelInfo("kimi")
	if info == nil {
		t.Fatal("expected alias lookup to succeed")
	}
	if info.ID != "kimi-k2" {
		t.Errorf("expected kimi-k2, got %s", info.ID)
	}
}

func TestGetModelInfoUnknown(t *testing.T) {
	if info := GetModelInfo("no-such-model"); info != nil {
		t.Errorf("expected nil, got %+v", info)
	}
}

func TestContextWindowForFallback(t *testing.T) {
	if got := ContextWindowFor("no-such-model"); got != 128000 {
		t.Errorf("expected fallback 128000, got %d", got)
	}
}

func TestDefaultModel(t *testing.T) {
	info := DefaultModel("anthropic")
	if info == nil {
		t.Fatal("expected a default anthropic model")
	}
	if info.Provider != "anthropic" {
		t.Errorf("expected anthropic, got %s", info.Provider)
	}
}
