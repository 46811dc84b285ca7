package publish_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ferry/internal/config"
	"ferry/internal/logging"
	"ferry/internal/publish"
	"ferry/internal/services"
	"ferry/internal/staging"
	"ferry/internal/testsupport"
)

func TestPublishDirectoryMode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Publish.Prefix = "datasets/71357"
	layout := staging.Layout{Root: cfg.Paths.StagingDir}
	for _, name := range []string{"part1/images/a.webp", "part1/labels/a.json"} {
		testsupport.WriteFile(t, filepath.Join(layout.TransformDir("9"), name), 64)
	}

	result := publish.New(cfg, layout, logging.NewNop()).Operation()(context.Background(), "9")
	if !result.OK || result.Counts == nil || result.Counts.Expected != 2 || result.Counts.Actual != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	target := filepath.Join(cfg.Paths.PublishDir, "datasets", "71357", "9", "part1", "images", "a.webp")
	info, err := os.Stat(target)
	if err != nil || info.Size() != 64 {
		t.Fatalf("expected published file at %s: %v", target, err)
	}
}

func TestPublishCommandMode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Publish.Mode = config.PublishModeCommand
	cfg.Publish.Command = "uploader"
	cfg.Publish.Args = []string{"cp", "{file}", "bucket/{object}"}
	layout := staging.Layout{Root: cfg.Paths.StagingDir}
	testsupport.WriteFile(t, filepath.Join(layout.TransformDir("9"), "a.webp"), 8)
	testsupport.WriteFile(t, filepath.Join(layout.TransformDir("9"), "b.webp"), 8)

	var objects []string
	runner := services.RunnerFunc(func(_ context.Context, _ string, name string, args ...string) ([]byte, error) {
		if name != "uploader" {
			t.Errorf("unexpected command %q", name)
		}
		objects = append(objects, args[2])
		if strings.HasSuffix(args[1], "b.webp") {
			return nil, errors.New("403 forbidden")
		}
		return nil, nil
	})

	counts, err := publish.New(cfg, layout, logging.NewNop(), publish.WithRunner(runner)).Publish(context.Background(), "9")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if counts.Expected != 2 || counts.Actual != 1 {
		t.Fatalf("unexpected counts %+v", counts)
	}
	if len(objects) != 2 || objects[0] != "bucket/9/a.webp" {
		t.Fatalf("unexpected objects %v", objects)
	}
}

func TestPublishMissingTransformOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	layout := staging.Layout{Root: cfg.Paths.StagingDir}
	_, err := publish.New(cfg, layout, logging.NewNop()).Publish(context.Background(), "absent")
	if !errors.Is(err, services.ErrFileSystem) {
		t.Fatalf("expected filesystem error, got %v", err)
	}
}
