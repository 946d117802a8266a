//go:build integration

package testutils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const nginxConf = `server {
    listen 80;
    root /srv;
    location / {
        autoindex on;
    }
}
`

// MirrorEnv is a containerized nginx autoindex mirror for end-to-end tests.
type MirrorEnv struct {
	Container testcontainers.Container
	BaseURL   string
}

// Close terminates the container.
func (e *MirrorEnv) Close(ctx context.Context) error {
	if e.Container != nil {
		return e.Container.Terminate(ctx)
	}
	return nil
}

// StartNginxMirror starts an nginx container serving tree under /fastdl/
// with autoindex listings, the same layout a real FastDL mirror exposes.
func StartNginxMirror(t *testing.T, ctx context.Context, tree Tree) *MirrorEnv {
	t.Helper()

	stage := t.TempDir()
	root := filepath.Join(stage, "fastdl")
	for path, data := range tree {
		full := filepath.Join(root, filepath.FromSlash(path))
		if path == "" || path[len(path)-1] == '/' {
			if err := os.MkdirAll(full, 0o755); err != nil {
				t.Fatalf("stage dir %s: %v", full, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("stage dir for %s: %v", full, err)
		}
		if err := os.WriteFile(full, data, 0o644); err != nil {
			t.Fatalf("stage file %s: %v", full, err)
		}
	}

	confPath := filepath.Join(stage, "default.conf")
	if err := os.WriteFile(confPath, []byte(nginxConf), 0o644); err != nil {
		t.Fatalf("write nginx conf: %v", err)
	}

	req := testcontainers.ContainerRequest{
		Image:        "nginx:1.27-alpine",
		ExposedPorts: []string{"80/tcp"},
		Files: []testcontainers.ContainerFile{
			{HostFilePath: confPath, ContainerFilePath: "/etc/nginx/conf.d/default.conf", FileMode: 0o644},
			{HostFilePath: root, ContainerFilePath: "/srv/fastdl", FileMode: 0o755},
		},
		WaitingFor: wait.ForListeningPort("80/tcp"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start nginx container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "80")
	if err != nil {
		t.Fatalf("get container port: %v", err)
	}

	return &MirrorEnv{
		Container: container,
		BaseURL:   fmt.Sprintf("http://%s:%s/fastdl/", host, port.Port()),
	}
}
