package server

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/async"
	"github.com/joseph-ayodele/docrouter/internal/entity"
	"github.com/joseph-ayodele/docrouter/internal/ingest"
	"github.com/joseph-ayodele/docrouter/internal/repository"
)

type recordingSubmitter struct {
	path    string
	source  constants.Source
	content []byte
	err     error
	// routeTo, when set, moves the upload there like a matched template would
	routeTo string
}

func (r *recordingSubmitter) Submit(_ context.Context, path string, source constants.Source) (*entity.Job, error) {
	r.path, r.source = path, source
	r.content, _ = os.ReadFile(path)
	if r.err != nil {
		return nil, r.err
	}
	if r.routeTo != "" {
		if err := os.Rename(path, r.routeTo); err != nil {
			return nil, err
		}
	}
	return &entity.Job{
		ID:           uuid.New(),
		Source:       source,
		InputPath:    path,
		OriginalName: filepath.Base(path),
		Status:       constants.JobStatusSkipped,
		Message:      "no matching template (method=text)",
		CreatedAt:    time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC),
	}, nil
}

type fakeJobs struct {
	repository.JobRepository
	jobs     []*entity.Job
	gotLimit int
}

func (f *fakeJobs) ListRecent(_ context.Context, limit int) ([]*entity.Job, error) {
	f.gotLimit = limit
	if limit < len(f.jobs) {
		return f.jobs[:limit], nil
	}
	return f.jobs, nil
}

func newTestService(t *testing.T, sub ingest.Submitter, jobs *fakeJobs) (*IngestionService, string) {
	t.Helper()
	tmp := filepath.Join(t.TempDir(), "tmp")
	s := NewIngestionService(sub, jobs, tmp, nil)
	s.now = func() time.Time { return time.Unix(0, 42) }
	return s, tmp
}

func withName(name string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(FilenameMetadataKey, name))
}

func TestUploadWritesTempFileAndSubmits(t *testing.T) {
	sub := &recordingSubmitter{}
	s, tmp := newTestService(t, sub, &fakeJobs{})

	out, err := s.Upload(withName(`C:\scans\my:scan?.txt`), wrapperspb.Bytes([]byte("hello")))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	want := filepath.Join(tmp, "upload_42", "myscan.txt")
	if sub.path != want {
		t.Errorf("path = %q, want %q", sub.path, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("unrouted upload should stay under tmp: %v", err)
	}
	if sub.source != constants.SourceUpload || string(sub.content) != "hello" {
		t.Errorf("source=%q content=%q", sub.source, sub.content)
	}
	fields := out.GetFields()
	if fields["status"].GetStringValue() != "skipped" || fields["source"].GetStringValue() != "upload" {
		t.Errorf("job = %v", out)
	}
	if fields["created_at"].GetStringValue() != "2024-03-05T12:00:00Z" {
		t.Errorf("created_at = %v", fields["created_at"])
	}
	if fields["original_name"].GetStringValue() != "myscan.txt" {
		t.Errorf("original_name = %v", fields["original_name"])
	}
}

func TestUploadRemovesFolderOnceRouted(t *testing.T) {
	sub := &recordingSubmitter{routeTo: filepath.Join(t.TempDir(), "routed.pdf")}
	s, tmp := newTestService(t, sub, &fakeJobs{})

	if _, err := s.Upload(withName("bill.pdf"), wrapperspb.Bytes([]byte("%PDF"))); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmp, "upload_42")); !os.IsNotExist(err) {
		t.Errorf("upload folder left behind: %v", err)
	}
}

func TestUploadRejects(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		body []byte
		err  error
		code codes.Code
	}{
		{"no metadata", context.Background(), []byte("x"), nil, codes.InvalidArgument},
		{"blank name", withName("  "), []byte("x"), nil, codes.InvalidArgument},
		{"empty body", withName("a.pdf"), nil, nil, codes.InvalidArgument},
		{"queue closed", withName("a.pdf"), []byte("x"), async.ErrQueueClosed, codes.Unavailable},
		{"processing error", withName("a.pdf"), []byte("x"), errors.New("db down"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestService(t, &recordingSubmitter{err: tt.err}, &fakeJobs{})
			_, err := s.Upload(tt.ctx, wrapperspb.Bytes(tt.body))
			if got := status.Code(err); got != tt.code {
				t.Fatalf("code = %v, want %v (err %v)", got, tt.code, err)
			}
		})
	}
}

func TestRecentJobsLimits(t *testing.T) {
	jobs := &fakeJobs{}
	s, _ := newTestService(t, &recordingSubmitter{}, jobs)
	for _, tt := range []struct{ in, want int }{{0, 50}, {-3, 50}, {7, 7}, {5000, 1000}} {
		if _, err := s.RecentJobs(context.Background(), wrapperspb.Int32(int32(tt.in))); err != nil {
			t.Fatalf("recent: %v", err)
		}
		if jobs.gotLimit != tt.want {
			t.Errorf("limit(%d) = %d, want %d", tt.in, jobs.gotLimit, tt.want)
		}
	}
}

func TestGRPCRoundTrip(t *testing.T) {
	jobs := &fakeJobs{jobs: []*entity.Job{
		{ID: uuid.New(), Source: constants.SourceIngest, Status: constants.JobStatusOK, DestPath: "/lib/a.pdf"},
		{ID: uuid.New(), Source: constants.SourceUpload, Status: constants.JobStatusFailed},
	}}
	svc, _ := newTestService(t, &recordingSubmitter{}, jobs)
	gs, _ := NewGRPCServer(svc, nil)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := new(structpb.ListValue)
	if err := conn.Invoke(ctx, RecentJobsMethod, wrapperspb.Int32(1), out); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if len(out.GetValues()) != 1 {
		t.Fatalf("got %d jobs, want 1", len(out.GetValues()))
	}
	if dest := out.GetValues()[0].GetStructValue().GetFields()["dest_path"].GetStringValue(); dest != "/lib/a.pdf" {
		t.Errorf("dest_path = %q", dest)
	}

	up := new(structpb.Struct)
	uctx := metadata.AppendToOutgoingContext(ctx, FilenameMetadataKey, "invoice.pdf")
	if err := conn.Invoke(uctx, UploadMethod, wrapperspb.Bytes([]byte("%PDF")), up); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if name := up.GetFields()["original_name"].GetStringValue(); name != "invoice.pdf" {
		t.Errorf("original_name = %q", name)
	}

	hc := healthpb.NewHealthClient(conn)
	resp, err := hc.Check(ctx, &healthpb.HealthCheckRequest{Service: IngestionServiceName})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("health = %v", resp.GetStatus())
	}
}
