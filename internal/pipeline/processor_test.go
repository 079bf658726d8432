package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/common"
	"github.com/joseph-ayodele/docrouter/internal/entity"
	"github.com/joseph-ayodele/docrouter/internal/extract"
	"github.com/joseph-ayodele/docrouter/internal/repository"
	"github.com/joseph-ayodele/docrouter/internal/storage"
)

type fakeTemplates struct {
	list []*entity.Template
	err  error
}

func (f *fakeTemplates) ListEnabled(context.Context) ([]*entity.Template, error) {
	return f.list, f.err
}
func (f *fakeTemplates) GetByID(context.Context, uuid.UUID) (*entity.Template, error) {
	return nil, common.ErrNotFound
}
func (f *fakeTemplates) GetByName(context.Context, string) (*entity.Template, error) {
	return nil, common.ErrNotFound
}
func (f *fakeTemplates) Create(_ context.Context, t *entity.Template) (*entity.Template, error) {
	return t, nil
}
func (f *fakeTemplates) Count(context.Context) (int, error) { return len(f.list), nil }

type fakeJobs struct {
	jobs []*entity.Job
	err  error
}

func (f *fakeJobs) Insert(_ context.Context, j *entity.Job) (*entity.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	cp := *j
	cp.ID = uuid.New()
	f.jobs = append(f.jobs, &cp)
	return &cp, nil
}
func (f *fakeJobs) ListRecent(context.Context, int) ([]*entity.Job, error) { return f.jobs, nil }
func (f *fakeJobs) Count(context.Context) (int, error)                     { return len(f.jobs), nil }

type fakeDocs struct {
	saved []*entity.Document
}

func (f *fakeDocs) Save(_ context.Context, d *entity.Document) (*entity.Document, error) {
	f.saved = append(f.saved, d)
	return d, nil
}
func (f *fakeDocs) UpsertStat(context.Context, entity.FileStat) (repository.UpsertResult, error) {
	return repository.UpsertUnchanged, nil
}
func (f *fakeDocs) GetByKey(context.Context, constants.Location, string) (*entity.Document, error) {
	return nil, common.ErrNotFound
}
func (f *fakeDocs) List(context.Context, constants.Location) ([]*entity.Document, error) {
	return f.saved, nil
}
func (f *fakeDocs) Count(context.Context) (int, error) { return len(f.saved), nil }

type fakeExtractor struct {
	res       extract.TextExtractionResult
	err       error
	panicWith any
	calls     int
}

func (f *fakeExtractor) Extract(context.Context, string) (extract.TextExtractionResult, error) {
	f.calls++
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.res, f.err
}

type staticConfig struct{ cfg *common.Config }

func (s staticConfig) Current() *common.Config { return s.cfg }

type failingMover struct{}

func (failingMover) Move(src, dest string) (string, error) {
	return "", &common.RelocationError{Src: src, Dest: dest, Cause: errors.New("disk full")}
}

type fixture struct {
	proc      *Processor
	templates *fakeTemplates
	jobs      *fakeJobs
	docs      *fakeDocs
	extractor *fakeExtractor
	cfg       *common.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	cfg := common.DefaultConfig()
	cfg.Paths.IngestDir = filepath.Join(root, "ingest")
	cfg.Paths.LibraryDir = filepath.Join(root, "library")
	cfg.Paths.FailedDir = filepath.Join(root, "failed")
	for _, d := range []string{cfg.Paths.IngestDir, cfg.Paths.LibraryDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	f := &fixture{
		templates: &fakeTemplates{list: []*entity.Template{invoiceTemplate()}},
		jobs:      &fakeJobs{},
		docs:      &fakeDocs{},
		extractor: &fakeExtractor{res: extract.TextExtractionResult{
			Text:   "ACME Co\nINVOICE\nInvoice No: INV-42\nDate: 05/03/2024",
			Method: constants.MethodText,
		}},
		cfg: cfg,
	}
	f.proc = NewProcessor(f.templates, f.jobs, f.docs, f.extractor, storage.NewRelocator(nil), staticConfig{cfg}, nil)
	return f
}

func invoiceTemplate() *entity.Template {
	return &entity.Template{
		ID:                 uuid.New(),
		Name:               "invoice",
		Enabled:            true,
		DocType:            "Invoice",
		DocFolder:          "Invoices",
		Tags:               entity.NewTagSet("Finance"),
		MatchMode:          constants.MatchAny,
		MatchPatterns:      entity.StringList{`\binvoice\b`},
		CompanyRegex:       `^(ACME[^\n]*)`,
		InvoiceNumberRegex: `Invoice No:\s*(\S+)`,
		DateRegex:          `Date:\s*([0-9/]+)`,
		OutputPathTemplate: entity.DefaultOutputPathTemplate,
		FilenameTemplate:   entity.DefaultFilenameTemplate,
	}
}

func (f *fixture) drop(t *testing.T, rel string) string {
	t.Helper()
	p := filepath.Join(f.cfg.Paths.IngestDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("%PDF-1.4 test"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestProcessRoutesMatchedFile(t *testing.T) {
	f := newFixture(t)
	src := f.drop(t, "a.pdf")

	job, err := f.proc.Process(context.Background(), src, constants.SourceIngest)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != constants.JobStatusOK {
		t.Fatalf("status = %q (%s)", job.Status, job.Message)
	}
	want := filepath.Join(f.cfg.Paths.LibraryDir, "Invoices", "ACME-Co", "2024", "ACME-Co_INV-42_2024-03-05.pdf")
	if job.DestPath != want {
		t.Errorf("dest = %q, want %q", job.DestPath, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("routed file missing: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source still present: %v", err)
	}
	if job.ExtractedCompany != "ACME Co" || job.ExtractedInvoiceNumber != "INV-42" || job.ExtractedDate != "2024-03-05" {
		t.Errorf("fields = %q %q %q", job.ExtractedCompany, job.ExtractedInvoiceNumber, job.ExtractedDate)
	}
	if job.TemplateID == nil || *job.TemplateID != f.templates.list[0].ID {
		t.Errorf("template id = %v", job.TemplateID)
	}
	if job.Method != constants.MethodText || job.DocFolder != "Invoices" {
		t.Errorf("method/doc folder = %q/%q", job.Method, job.DocFolder)
	}

	if len(f.jobs.jobs) != 1 {
		t.Fatalf("jobs recorded = %d, want 1", len(f.jobs.jobs))
	}
	if len(f.docs.saved) != 1 {
		t.Fatalf("documents saved = %d, want 1", len(f.docs.saved))
	}
	doc := f.docs.saved[0]
	if doc.Location != constants.LocationLibrary || doc.Status != constants.DocumentStatusOK {
		t.Errorf("doc location/status = %q/%q", doc.Location, doc.Status)
	}
	if doc.RelPath != "Invoices/ACME-Co/2024/ACME-Co_INV-42_2024-03-05.pdf" {
		t.Errorf("rel path = %q", doc.RelPath)
	}
	if !doc.Tags.Equal(entity.NewTagSet("invoice", "finance", "acme-co")) {
		t.Errorf("tags = %v", doc.Tags.Slice())
	}
}

func TestProcessAppendsIngestSubfolder(t *testing.T) {
	f := newFixture(t)
	src := f.drop(t, "clients/north/a.pdf")

	job, err := f.proc.Process(context.Background(), src, constants.SourceIngest)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(f.cfg.Paths.LibraryDir, "Invoices", "ACME-Co", "2024", "clients", "north", "ACME-Co_INV-42_2024-03-05.pdf")
	if job.DestPath != want {
		t.Errorf("dest = %q, want %q", job.DestPath, want)
	}
}

func TestProcessUploadIgnoresSubfolder(t *testing.T) {
	f := newFixture(t)
	src := f.drop(t, "clients/a.pdf")

	job, err := f.proc.Process(context.Background(), src, constants.SourceUpload)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(job.DestPath, "clients") {
		t.Errorf("upload dest carries ingest subfolder: %q", job.DestPath)
	}
}

func TestProcessNeverOverwrites(t *testing.T) {
	f := newFixture(t)
	first, _ := f.proc.Process(context.Background(), f.drop(t, "a.pdf"), constants.SourceIngest)
	second, _ := f.proc.Process(context.Background(), f.drop(t, "b.pdf"), constants.SourceIngest)
	if first.DestPath == second.DestPath {
		t.Fatalf("both files routed to %q", first.DestPath)
	}
	if !strings.HasSuffix(second.DestPath, "ACME-Co_INV-42_2024-03-05_1.pdf") {
		t.Errorf("second dest = %q", second.DestPath)
	}
}

func TestProcessOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		setup       func(f *fixture)
		wantStatus  constants.JobStatus
		wantMessage string
		wantInPlace bool
		wantExtract int
	}{
		{
			name:        "unsupported extension",
			file:        "notes.docx",
			wantStatus:  constants.JobStatusSkipped,
			wantMessage: common.ErrUnsupportedType.Error(),
			wantInPlace: true,
		},
		{
			name: "no template matches",
			file: "a.pdf",
			setup: func(f *fixture) {
				f.extractor.res = extract.TextExtractionResult{Text: "holiday photo", Method: constants.MethodOCR}
			},
			wantStatus:  constants.JobStatusSkipped,
			wantMessage: "no matching template (method=ocr)",
			wantInPlace: true,
			wantExtract: 1,
		},
		{
			name: "template without patterns never matches",
			file: "a.pdf",
			setup: func(f *fixture) {
				f.templates.list[0].MatchPatterns = nil
			},
			wantStatus:  constants.JobStatusSkipped,
			wantMessage: "no matching template",
			wantInPlace: true,
			wantExtract: 1,
		},
		{
			name: "extraction failure",
			file: "scan.png",
			setup: func(f *fixture) {
				f.extractor.err = &common.ExtractionError{Path: "scan.png", Stage: "tesseract", Cause: errors.New("boom")}
			},
			wantStatus:  constants.JobStatusFailed,
			wantMessage: "boom",
			wantInPlace: true,
			wantExtract: 1,
		},
		{
			name: "template load failure",
			file: "a.pdf",
			setup: func(f *fixture) {
				f.templates.err = common.ErrDatabase
			},
			wantStatus:  constants.JobStatusFailed,
			wantMessage: "load templates",
			wantInPlace: true,
			wantExtract: 1,
		},
		{
			name: "relocation failure",
			file: "a.pdf",
			setup: func(f *fixture) {
				f.proc.Mover = failingMover{}
			},
			wantStatus:  constants.JobStatusFailed,
			wantMessage: "disk full",
			wantInPlace: true,
			wantExtract: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			src := f.drop(t, tt.file)

			job, err := f.proc.Process(context.Background(), src, constants.SourceIngest)
			if err != nil {
				t.Fatal(err)
			}
			if job.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", job.Status, tt.wantStatus)
			}
			if !strings.Contains(job.Message, tt.wantMessage) {
				t.Errorf("message = %q, want it to contain %q", job.Message, tt.wantMessage)
			}
			if len(f.jobs.jobs) != 1 {
				t.Errorf("jobs recorded = %d, want exactly 1", len(f.jobs.jobs))
			}
			if len(f.docs.saved) != 0 {
				t.Errorf("documents saved = %d, want 0", len(f.docs.saved))
			}
			if f.extractor.calls != tt.wantExtract {
				t.Errorf("extract calls = %d, want %d", f.extractor.calls, tt.wantExtract)
			}
			if _, err := os.Stat(src); (err == nil) != tt.wantInPlace {
				t.Errorf("source in place = %v, want %v", err == nil, tt.wantInPlace)
			}
		})
	}
}

func TestProcessJobWriteFailure(t *testing.T) {
	f := newFixture(t)
	f.jobs.err = errors.New("db down")
	_, err := f.proc.Process(context.Background(), f.drop(t, "x.docx"), constants.SourceIngest)
	if err == nil {
		t.Fatal("expected an error when the job row cannot be written")
	}
}

func TestProcessRecordsPanicAsFailedJob(t *testing.T) {
	f := newFixture(t)
	f.extractor.panicWith = "corrupt xref table"
	src := f.drop(t, "broken.pdf")

	job, err := f.proc.Process(context.Background(), src, constants.SourceIngest)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if job.Status != constants.JobStatusFailed || job.Message != "panic: corrupt xref table" {
		t.Errorf("job = %q %q", job.Status, job.Message)
	}
	if job.ID == uuid.Nil {
		t.Error("returned job was not the recorded row")
	}
	if len(f.jobs.jobs) != 1 {
		t.Fatalf("jobs recorded = %d, want 1", len(f.jobs.jobs))
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source should stay in place: %v", err)
	}
}

func TestProcessRoutesTextFiles(t *testing.T) {
	f := newFixture(t)
	job, err := f.proc.Process(context.Background(), f.drop(t, "mail.html"), constants.SourceIngest)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != constants.JobStatusOK || !strings.HasSuffix(job.DestPath, ".html") || f.extractor.calls != 1 {
		t.Errorf("job = %q %q, extract calls = %d", job.Status, job.DestPath, f.extractor.calls)
	}
}

func TestIngestSubdir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ingest")
	tests := []struct {
		path, want string
	}{
		{filepath.Join(root, "a.pdf"), ""},
		{filepath.Join(root, "x", "y", "a.pdf"), "x/y"},
		{filepath.Join(filepath.Dir(root), "other", "a.pdf"), ""},
	}
	for _, tt := range tests {
		if got := IngestSubdir(root, tt.path); got != tt.want {
			t.Errorf("IngestSubdir(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
