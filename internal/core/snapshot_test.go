package core

import "testing"

func TestCleanPath_Valid(t *testing.T) {
	cases := map[string]string{
		"src/App.tsx":      "src/App.tsx",
		"./src/App.tsx":    "src/App.tsx",
		"package.json":     "package.json",
		"src//lib/util.ts": "src/lib/util.ts",
	}
	for in, want := range cases {
		got, err := CleanPath(in)
		if err != nil {
			t.Errorf("CleanPath(%q) returned error: %s", in, err)
			continue
		}
		if got != want {
			t.Errorf("CleanPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanPath_Rejected(t *testing.T) {
	for _, in := range []string{
		"",
		"/etc/passwd",
		"../outside.txt",
		"src/../../escape.txt",
		"..",
		".",
		"src\\App.tsx",
	} {
		if got, err := CleanPath(in); err == nil {
			t.Errorf("CleanPath(%q) = %q, want error", in, got)
		}
	}
}

func TestSnapshotValidate(t *testing.T) {
	if err := (FileSnapshot{}).Validate(); err == nil {
		t.Error("empty snapshot passed validation")
	}
	fs := FileSnapshot{"package.json": "{}", "src/App.tsx": "export default null"}
	if err := fs.Validate(); err != nil {
		t.Errorf("valid snapshot rejected: %s", err)
	}
	bad := FileSnapshot{"../escape": "x"}
	if err := bad.Validate(); err == nil {
		t.Error("escaping snapshot passed validation")
	}
}

func TestSnapshotManifest(t *testing.T) {
	fs := FileSnapshot{"src/App.tsx": "x"}
	if _, ok := fs.Manifest(); ok {
		t.Error("snapshot without manifest reported one")
	}
	fs["./package.json"] = `{"name":"app"}`
	content, ok := fs.Manifest()
	if !ok {
		t.Fatal("snapshot with manifest reported none")
	}
	if content != `{"name":"app"}` {
		t.Errorf("unexpected manifest content %q", content)
	}
}
