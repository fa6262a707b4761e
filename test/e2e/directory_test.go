package e2e

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/marmos91/dittodir/pkg/files"
	"github.com/marmos91/dittodir/pkg/service"
	"github.com/marmos91/dittodir/pkg/store/blob"
)

// TestWriteAndRead stores a file and reads it back through the redirect.
func TestWriteAndRead(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		tc.CreateUser("alice", "pw-alice")
		content := []byte("hello from alice")

		info, err := tc.Directory.WriteFile(tc.Context(), "hello.txt", content, "alice", "pw-alice")
		if err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		if info.Owner != "alice" || info.Filename != "hello.txt" {
			t.Errorf("Unexpected file info: %+v", info)
		}
		if tc.BackendFor(info.FileURL) < 0 {
			t.Errorf("FileURL %q does not point at a cluster backend", info.FileURL)
		}

		data, err := tc.Directory.GetFile(tc.Context(), "hello.txt", "alice", "alice", "pw-alice")
		if err != nil {
			t.Fatalf("GetFile failed: %v", err)
		}
		if !bytes.Equal(data, content) {
			t.Errorf("Expected %q, got %q", content, data)
		}
	})
}

// TestReplicasPlaced checks that every write lands on the configured
// number of distinct backends.
func TestReplicasPlaced(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		tc.CreateUser("alice", "pw-alice")
		if _, err := tc.Directory.WriteFile(tc.Context(), "r.bin", []byte("replicated"), "alice", "pw-alice"); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		key, err := files.Key(service.FileID("alice", "r.bin"))
		if err != nil {
			t.Fatalf("Key failed: %v", err)
		}
		holders := 0
		for _, b := range tc.Backends {
			if _, err := b.Store.Get(tc.Context(), key); err == nil {
				holders++
			}
		}
		if holders != tc.Config.Replicas {
			t.Errorf("Expected %d replicas, found %d", tc.Config.Replicas, holders)
		}
	})
}

// TestOverwrite replaces the content of an existing file.
func TestOverwrite(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		tc.CreateUser("alice", "pw-alice")
		for _, v := range []string{"v1", "v2"} {
			if _, err := tc.Directory.WriteFile(tc.Context(), "doc.txt", []byte(v), "alice", "pw-alice"); err != nil {
				t.Fatalf("WriteFile(%s) failed: %v", v, err)
			}
		}

		data, err := tc.Directory.GetFile(tc.Context(), "doc.txt", "alice", "alice", "pw-alice")
		if err != nil {
			t.Fatalf("GetFile failed: %v", err)
		}
		if string(data) != "v2" {
			t.Errorf("Expected latest content v2, got %q", data)
		}

		list, err := tc.Directory.LsFile(tc.Context(), "alice", "pw-alice")
		if err != nil {
			t.Fatalf("LsFile failed: %v", err)
		}
		if len(list) != 1 {
			t.Errorf("Expected one listed file after overwrite, got %d", len(list))
		}
	})
}

// TestShareLifecycle grants and revokes read access.
func TestShareLifecycle(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		tc.CreateUser("alice", "pw-alice")
		tc.CreateUser("bob", "pw-bob")

		if _, err := tc.Directory.WriteFile(tc.Context(), "plan.md", []byte("secret plan"), "alice", "pw-alice"); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		if _, err := tc.Directory.GetFile(tc.Context(), "plan.md", "alice", "bob", "pw-bob"); !service.IsForbidden(err) {
			t.Fatalf("Expected FORBIDDEN before sharing, got %v", err)
		}

		if err := tc.Directory.ShareFile(tc.Context(), "plan.md", "alice", "bob", "pw-alice"); err != nil {
			t.Fatalf("ShareFile failed: %v", err)
		}
		data, err := tc.Directory.GetFile(tc.Context(), "plan.md", "alice", "bob", "pw-bob")
		if err != nil {
			t.Fatalf("GetFile as grantee failed: %v", err)
		}
		if string(data) != "secret plan" {
			t.Errorf("Unexpected content %q", data)
		}

		list, err := tc.Directory.LsFile(tc.Context(), "bob", "pw-bob")
		if err != nil {
			t.Fatalf("LsFile failed: %v", err)
		}
		if len(list) != 1 || list[0].Owner != "alice" || len(list[0].SharedWith) != 1 || list[0].SharedWith[0] != "bob" {
			t.Errorf("Unexpected listing for bob: %+v", list)
		}

		if err := tc.Directory.UnshareFile(tc.Context(), "plan.md", "alice", "bob", "pw-alice"); err != nil {
			t.Fatalf("UnshareFile failed: %v", err)
		}
		if _, err := tc.Directory.GetFile(tc.Context(), "plan.md", "alice", "bob", "pw-bob"); !service.IsForbidden(err) {
			t.Errorf("Expected FORBIDDEN after unsharing, got %v", err)
		}
	})
}

// TestReadSurvivesBackendFailure stops the backend of the primary replica
// and reads the file from the next one.
func TestReadSurvivesBackendFailure(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		tc.CreateUser("alice", "pw-alice")
		info, err := tc.Directory.WriteFile(tc.Context(), "ha.txt", []byte("still here"), "alice", "pw-alice")
		if err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		primary := tc.BackendFor(info.FileURL)
		if primary < 0 {
			t.Fatalf("FileURL %q does not point at a cluster backend", info.FileURL)
		}
		tc.StopBackend(primary)

		data, err := tc.Directory.GetFile(tc.Context(), "ha.txt", "alice", "alice", "pw-alice")
		if err != nil {
			t.Fatalf("GetFile after backend failure failed: %v", err)
		}
		if string(data) != "still here" {
			t.Errorf("Unexpected content %q", data)
		}
	})
}

// TestDeleteFile removes the file and, asynchronously, its replicas.
func TestDeleteFile(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		tc.CreateUser("alice", "pw-alice")
		if _, err := tc.Directory.WriteFile(tc.Context(), "tmp.txt", []byte("scratch"), "alice", "pw-alice"); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		if err := tc.Directory.DeleteFile(tc.Context(), "tmp.txt", "alice", "pw-alice"); err != nil {
			t.Fatalf("DeleteFile failed: %v", err)
		}

		if _, err := tc.Directory.GetFile(tc.Context(), "tmp.txt", "alice", "alice", "pw-alice"); !service.IsNotFound(err) {
			t.Errorf("Expected NOT_FOUND after delete, got %v", err)
		}
		tc.expectNoReplicas(t, service.FileID("alice", "tmp.txt"))
	})
}

// TestDeleteUserCascades deletes an account on the Users backend and
// expects the Directory and the Files backends to forget its files.
func TestDeleteUserCascades(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		tc.CreateUser("alice", "pw-alice")
		tc.CreateUser("bob", "pw-bob")

		if _, err := tc.Directory.WriteFile(tc.Context(), "a.txt", []byte("a"), "alice", "pw-alice"); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		if err := tc.Directory.ShareFile(tc.Context(), "a.txt", "alice", "bob", "pw-alice"); err != nil {
			t.Fatalf("ShareFile failed: %v", err)
		}

		if _, err := tc.Users.DeleteUser(tc.Context(), "alice", "pw-alice"); err != nil {
			t.Fatalf("DeleteUser failed: %v", err)
		}

		eventually(t, 5*time.Second, func() bool {
			list, err := tc.Directory.LsFile(tc.Context(), "bob", "pw-bob")
			return err == nil && len(list) == 0
		}, "bob still lists alice's file")
		tc.expectNoReplicas(t, service.FileID("alice", "a.txt"))
	})
}

func (tc *TestContext) expectNoReplicas(t *testing.T, fileID string) {
	t.Helper()
	key, err := files.Key(fileID)
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	eventually(t, 5*time.Second, func() bool {
		for _, b := range tc.Backends {
			if _, err := b.Store.Get(tc.Context(), key); !errors.Is(err, blob.ErrNotFound) {
				return false
			}
		}
		return true
	}, "replicas of "+fileID+" still stored")
}
