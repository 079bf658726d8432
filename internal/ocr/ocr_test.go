package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/common"
)

// stubRunner answers external commands from a table keyed by binary name.
type stubRunner struct {
	mu    sync.Mutex
	calls []string
	// handlers receive the args and return stdout or an error.
	handlers map[string]func(args []string) ([]byte, error)
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, name+" "+strings.Join(args, " "))
	s.mu.Unlock()
	h, ok := s.handlers[name]
	if !ok {
		return nil, []byte("not found"), fmt.Errorf("exec: %q: executable file not found", name)
	}
	out, err := h(args)
	if err != nil {
		return nil, []byte(err.Error()), err
	}
	return out, nil, nil
}

func (s *stubRunner) called(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if strings.HasPrefix(c, name+" ") {
			n++
		}
	}
	return n
}

func newTestExtractor(r Runner, cfg Config) *Extractor {
	e := NewExtractor(cfg, nil)
	e.runner = r
	return e
}

func touch(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// renderPages emulates pdftoppm by writing n page images next to the prefix.
func renderPages(n int) func(args []string) ([]byte, error) {
	return func(args []string) ([]byte, error) {
		prefix := args[len(args)-1]
		for i := 1; i <= n; i++ {
			if err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i), []byte("png"), 0o644); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
}

// ocrByPage returns "page N" for page-N.png inputs.
func ocrByPage(args []string) ([]byte, error) {
	base := strings.TrimSuffix(filepath.Base(args[0]), ".png")
	return []byte("page " + base[strings.LastIndexByte(base, '-')+1:]), nil
}

func TestExtractPDFTextLayer(t *testing.T) {
	pdf := touch(t, t.TempDir(), "doc.pdf", "%PDF")
	r := &stubRunner{handlers: map[string]func([]string) ([]byte, error){
		"pdftotext": func([]string) ([]byte, error) {
			return []byte("INVOICE   No 42\r\nACME Corp billing department\f"), nil
		},
	}}
	res, err := newTestExtractor(r, Config{}).Extract(context.Background(), pdf)
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != constants.MethodText {
		t.Errorf("method = %q, want text", res.Method)
	}
	if res.Text != "INVOICE No 42\nACME Corp billing department" {
		t.Errorf("text = %q", res.Text)
	}
	if r.called("tesseract") != 0 {
		t.Error("tesseract should not run when the text layer is sufficient")
	}
}

func TestExtractPDFFallsBackToOCR(t *testing.T) {
	pdf := touch(t, t.TempDir(), "scan.pdf", "%PDF")
	r := &stubRunner{handlers: map[string]func([]string) ([]byte, error){
		"pdftotext": func([]string) ([]byte, error) { return []byte("  short  "), nil },
		"pdftoppm":  renderPages(3),
		"tesseract": ocrByPage,
	}}
	res, err := newTestExtractor(r, Config{}).Extract(context.Background(), pdf)
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != constants.MethodOCR {
		t.Errorf("method = %q, want ocr", res.Method)
	}
	if res.Text != "page 1\npage 2\npage 3" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Pages != 3 {
		t.Errorf("pages = %d, want 3", res.Pages)
	}
}

func TestExtractPDFTextLayerFailureIsSwallowed(t *testing.T) {
	// not a real PDF: pdftotext is missing and the built-in reader fails too
	pdf := touch(t, t.TempDir(), "broken.pdf", "garbage")
	r := &stubRunner{handlers: map[string]func([]string) ([]byte, error){
		"pdftoppm":  renderPages(1),
		"tesseract": ocrByPage,
	}}
	res, err := newTestExtractor(r, Config{}).Extract(context.Background(), pdf)
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != constants.MethodOCR || res.Text != "page 1" {
		t.Errorf("got (%q, %q)", res.Method, res.Text)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected text-layer warnings")
	}
}

func TestExtractPDFRecognitionFailure(t *testing.T) {
	pdf := touch(t, t.TempDir(), "scan.pdf", "%PDF")
	r := &stubRunner{handlers: map[string]func([]string) ([]byte, error){
		"pdftotext": func([]string) ([]byte, error) { return nil, nil },
		"pdftoppm":  renderPages(2),
		"tesseract": func([]string) ([]byte, error) { return nil, errors.New("tesseract crashed") },
	}}
	_, err := newTestExtractor(r, Config{}).Extract(context.Background(), pdf)
	var xe *common.ExtractionError
	if !errors.As(err, &xe) {
		t.Fatalf("err = %v, want *ExtractionError", err)
	}
	if xe.Stage != "tesseract" || xe.Path != pdf {
		t.Errorf("stage/path = %q/%q", xe.Stage, xe.Path)
	}
}

func TestExtractImage(t *testing.T) {
	img := touch(t, t.TempDir(), "photo.JPG", "jpg")
	var gotArgs []string
	r := &stubRunner{handlers: map[string]func([]string) ([]byte, error){
		"tesseract": func(args []string) ([]byte, error) {
			gotArgs = args
			return []byte("Rechnung\n-----\nNr 7"), nil
		},
	}}
	e := newTestExtractor(r, Config{Live: func() Tunables { return Tunables{TesseractLang: "deu"} }})
	res, err := e.Extract(context.Background(), img)
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != constants.MethodOCR || res.Text != "Rechnung\n\nNr 7" {
		t.Errorf("got (%q, %q)", res.Method, res.Text)
	}
	if strings.Join(gotArgs, " ") != img+" stdout -l deu" {
		t.Errorf("args = %v", gotArgs)
	}
	if res.Language != "deu" {
		t.Errorf("language = %q", res.Language)
	}
}

func TestExtractImageFailure(t *testing.T) {
	img := touch(t, t.TempDir(), "photo.png", "png")
	_, err := newTestExtractor(&stubRunner{}, Config{}).Extract(context.Background(), img)
	var xe *common.ExtractionError
	if !errors.As(err, &xe) {
		t.Fatalf("err = %v, want *ExtractionError", err)
	}
}

func TestExtractHEIC(t *testing.T) {
	img := touch(t, t.TempDir(), "photo.heic", "heic")
	r := &stubRunner{handlers: map[string]func([]string) ([]byte, error){
		"magick": func(args []string) ([]byte, error) {
			return nil, os.WriteFile(args[1], []byte("png"), 0o644)
		},
		"tesseract": func([]string) ([]byte, error) { return []byte("converted"), nil },
	}}
	res, err := newTestExtractor(r, Config{HeicConverter: "magick"}).Extract(context.Background(), img)
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "converted" {
		t.Errorf("text = %q", res.Text)
	}
}

func TestExtractDirect(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name       string
		file       string
		content    string
		wantMethod string
		wantText   string
	}{
		{"plain text", "note.txt", "  hello\tworld  ", constants.MethodText, "hello world"},
		{"empty text", "blank.txt", "   \n  ", constants.MethodNone, ""},
		{"binary", "blob.bin", "ab\x00cd", constants.MethodNone, ""},
		{"unknown ext text", "data.xyz", "Invoice 12", constants.MethodText, "Invoice 12"},
		{"html", "page.html", "<html><body><script>evil()</script><p>Invoice <b>42</b></p></body></html>", constants.MethodText, "Invoice **42**"},
	}
	e := newTestExtractor(&stubRunner{}, Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := touch(t, dir, tt.file, tt.content)
			res, err := e.Extract(context.Background(), p)
			if err != nil {
				t.Fatal(err)
			}
			if res.Method != tt.wantMethod || res.Text != tt.wantText {
				t.Errorf("got (%q, %q), want (%q, %q)", res.Method, res.Text, tt.wantMethod, tt.wantText)
			}
		})
	}
}

func TestExtractDirectMissingFile(t *testing.T) {
	res, err := newTestExtractor(&stubRunner{}, Config{}).Extract(context.Background(), filepath.Join(t.TempDir(), "gone.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != constants.MethodNone || len(res.Warnings) == 0 {
		t.Errorf("got method %q warnings %v", res.Method, res.Warnings)
	}
}

func TestTextFromContentStream(t *testing.T) {
	stream := []byte("BT\n/F1 12 Tf\n72 712 Td\n(Invoice No: 42) Tj\n0 -14 Td\n[(ACME) -250 (Corp)] TJ\nT*\n(Caf\\351 \\(Paris\\)) Tj\nET\n")
	got := textFromContentStream(stream)
	want := "Invoice No: 42\nACMECorp\nCaf\xe9 (Paris)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalize(t *testing.T) {
	in := "a\r\nb\t\tc   d\n\n\n\ne   \fpage2"
	want := "a\nb c d\n\ne\npage2"
	if got := Normalize(in); got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}
