package locate

import (
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/kbukum/fwaudio/errors"
)

func memFS(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return fs
}

func TestLocateExplicitPathsKeepOrder(t *testing.T) {
	l := New(memFS(t, map[string]string{"/a.mp3": "", "/b.wav": ""}))
	got, err := l.Locate([]string{"/b.wav", "/a.mp3", "/b.wav"}, nil, true)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if strings.Join(got, ",") != "/b.wav,/a.mp3,/b.wav" {
		t.Errorf("expected inputs kept verbatim and in order, got %v", got)
	}
}

func TestLocateDropsMissingPaths(t *testing.T) {
	fs := memFS(t, map[string]string{
		"/a.wav":    "",
		"/list.txt": "/gone.wav\n/a.wav\n",
	})
	if err := fs.MkdirAll("/folder.wav", 0o755); err != nil {
		t.Fatal(err)
	}
	l := New(fs)

	got, err := l.Locate([]string{"/missing.wav", "/folder.wav", "/a.wav"}, []string{"/list.txt"}, true)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if strings.Join(got, ",") != "/a.wav,/a.wav" {
		t.Errorf("expected only existing files, got %v", got)
	}

	tests := []struct {
		name   string
		inputs []string
		lists  []string
	}{
		{"missing input", []string{"/nope/missing.wav"}, nil},
		{"directory input", []string{"/folder.wav"}, nil},
		{"missing list entries", nil, []string{"/gone.txt"}},
	}
	if err := afero.WriteFile(fs, "/gone.txt", []byte("/gone.wav\n/also-gone.mp3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.Locate(tc.inputs, tc.lists, true)
			if !errors.IsCode(err, errors.ErrCodeNoInputs) {
				t.Fatalf("expected NO_INPUTS, got %v", err)
			}
		})
	}
}

func TestLocateGlob(t *testing.T) {
	fs := memFS(t, map[string]string{
		"/audio/2.wav":     "",
		"/audio/1.wav":     "",
		"/audio/notes.txt": "",
		"/audio/sub/3.wav": "",
	})
	if err := fs.MkdirAll("/audio/dir.wav", 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := New(fs).Locate([]string{"/audio/*.wav"}, nil, true)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if strings.Join(got, ",") != "/audio/1.wav,/audio/2.wav" {
		t.Errorf("expected sorted file matches without directories, got %v", got)
	}
}

func TestLocateInputListFiles(t *testing.T) {
	fs := memFS(t, map[string]string{
		"/lists/one.txt": "/x.wav\n\n  /y.mp3  \n/clips/*.wav\n",
		"/lists/two.txt": "/z.wav",
		"/clips/b.wav":   "",
		"/clips/a.wav":   "",
		"/first.wav":     "",
		"/x.wav":         "",
		"/y.mp3":         "",
		"/z.wav":         "",
	})

	got, err := New(fs).Locate([]string{"/first.wav"}, []string{"/lists/one.txt", "/lists/two.txt"}, true)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	want := "/first.wav,/x.wav,/y.mp3,/clips/a.wav,/clips/b.wav,/z.wav"
	if strings.Join(got, ",") != want {
		t.Errorf("got %v, want %s", got, want)
	}
}

func TestLocateFailIfEmpty(t *testing.T) {
	l := New(memFS(t, map[string]string{"/empty.txt": "\n\n"}))

	_, err := l.Locate(nil, nil, true)
	if !errors.IsCode(err, errors.ErrCodeNoInputs) {
		t.Fatalf("expected NO_INPUTS, got %v", err)
	}

	_, err = l.Locate([]string{"/nothing/*.wav"}, []string{"/empty.txt"}, true)
	if !errors.IsCode(err, errors.ErrCodeNoInputs) {
		t.Fatalf("expected NO_INPUTS for unmatched glob and empty list, got %v", err)
	}
	appErr, _ := errors.AsAppError(err)
	if errors.ExitCode(appErr) != errors.ExitNoInputs {
		t.Errorf("expected exit code %d, got %d", errors.ExitNoInputs, errors.ExitCode(appErr))
	}

	got, err := l.Locate(nil, nil, false)
	if err != nil || len(got) != 0 {
		t.Errorf("expected empty result without failIfEmpty, got %v %v", got, err)
	}
}

func TestLocateMissingListFile(t *testing.T) {
	l := New(memFS(t, map[string]string{"/a.wav": ""}))
	_, err := l.Locate([]string{"/a.wav"}, []string{"/missing.txt", "/also-missing.txt"}, true)
	if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing.txt") || !strings.Contains(err.Error(), "also-missing.txt") {
		t.Errorf("expected both list errors reported, got %v", err)
	}
}

func TestLocateBadPattern(t *testing.T) {
	_, err := New(memFS(t, nil)).Locate([]string{"/audio/[.wav"}, nil, true)
	if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for malformed pattern, got %v", err)
	}
}

func TestFilesUsesOSFilesystem(t *testing.T) {
	dir := t.TempDir()
	fs := afero.NewOsFs()
	for _, name := range []string{"b.wav", "a.wav"} {
		if err := afero.WriteFile(fs, dir+"/"+name, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := Files([]string{dir + "/*.wav"}, nil, true)
	if err != nil {
		t.Fatalf("Files failed: %v", err)
	}
	if len(got) != 2 || !strings.HasSuffix(got[0], "a.wav") {
		t.Errorf("unexpected files %v", got)
	}
}

func TestHasMeta(t *testing.T) {
	for in, want := range map[string]bool{
		"a.wav":      false,
		"*.wav":      true,
		"take?.mp3":  true,
		"[ab].wav":   true,
		"/dir/x.mp3": false,
	} {
		if got := hasMeta(in); got != want {
			t.Errorf("hasMeta(%q) = %v, want %v", in, got, want)
		}
	}
}
