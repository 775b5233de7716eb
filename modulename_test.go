package mlgit

import "testing"

func TestDeriveModuleName(t *testing.T) {
	for _, tt := range []struct {
		name     string
		repoRoot string
		file     FileHandle
		suffix   string
		want     ModuleName
	}{
		{
			name:     "simple",
			repoRoot: "/repo",
			file:     "/repo/pkg/sub.py",
			suffix:   ".py",
			want:     "pkg.sub",
		},
		{
			name:     "package init collapses to directory",
			repoRoot: "/repo",
			file:     "/repo/pkg/sub/__init__.py",
			suffix:   ".py",
			want:     "pkg.sub",
		},
		{
			name:     "top level file",
			repoRoot: "/repo",
			file:     "/repo/main.py",
			suffix:   ".py",
			want:     "main",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveModuleName(tt.repoRoot, tt.file, tt.suffix)
			if got != tt.want {
				t.Fatalf("DeriveModuleName(%v) = %q, want %q", tt.file, got, tt.want)
			}
		})
	}
}

func TestModuleIndexResolveLongestPrefix(t *testing.T) {
	idx := &ModuleIndex{byName: map[ModuleName]FileHandle{
		"pkg.sub":             "/repo/pkg/sub.py",
		"pkg.sub.mod.helper":  "/repo/pkg/sub/mod/helper.py",
	}}

	for _, tt := range []struct {
		name      string
		candidate ModuleName
		wantFile  FileHandle
		wantOK    bool
	}{
		{
			name:      "resolves to the deepest registered prefix",
			candidate: "pkg.sub.mod.helper.Thing",
			wantFile:  "/repo/pkg/sub/mod/helper.py",
			wantOK:    true,
		},
		{
			name:      "falls back to a shallower prefix",
			candidate: "pkg.sub.X",
			wantFile:  "/repo/pkg/sub.py",
			wantOK:    true,
		},
		{
			name:      "exact match",
			candidate: "pkg.sub",
			wantFile:  "/repo/pkg/sub.py",
			wantOK:    true,
		},
		{
			name:      "no prefix matches is external",
			candidate: "unrelated.module",
			wantOK:    false,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			gotFile, gotOK := idx.ResolveLongestPrefix(tt.candidate)
			if gotOK != tt.wantOK || (gotOK && gotFile != tt.wantFile) {
				t.Fatalf("ResolveLongestPrefix(%v) = (%v, %v), want (%v, %v)",
					tt.candidate, gotFile, gotOK, tt.wantFile, tt.wantOK)
			}
		})
	}
}
