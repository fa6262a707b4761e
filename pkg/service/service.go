// Package service defines the contracts shared by the Directory, Files and
// Users services: the entities exchanged between them, the typed error
// taxonomy, and the identifiers that link a logical file to its replicas.
package service

import (
	"context"
	"net/url"
	"strings"
)

// Delimiter separates the owner and the filename inside a FileID. Neither
// component may contain it.
const Delimiter = "$$$"

// FilesPath is the path segment between a backend base URL and a fileId in
// a replica location.
const FilesPath = "/files/"

// User is an account known to the Users backend.
type User struct {
	UserID   string `json:"userId"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

// FileInfo is the public view of a logical file.
type FileInfo struct {
	Owner      string   `json:"owner"`
	Filename   string   `json:"filename"`
	FileURL    string   `json:"fileURL"`
	SharedWith []string `json:"sharedWith"`
}

// Files is the content store contract implemented by every Files backend
// variant. Each call carries a token scoped to the fileId or userId it acts on.
type Files interface {
	WriteFile(ctx context.Context, fileID string, data []byte, token string) error
	GetFile(ctx context.Context, fileID, token string) ([]byte, error)
	DeleteFile(ctx context.Context, fileID, token string) error
	DeleteUserFiles(ctx context.Context, userID, token string) error
}

// Users is the identity store contract.
type Users interface {
	CreateUser(ctx context.Context, user *User) (string, error)
	GetUser(ctx context.Context, userID, password string) (*User, error)
	UpdateUser(ctx context.Context, userID, password string, user *User) (*User, error)
	DeleteUser(ctx context.Context, userID, password string) (*User, error)
	SearchUsers(ctx context.Context, pattern string) ([]User, error)
}

// ValidName reports whether s can be used as a userId or filename.
//
// Besides the delimiter itself, a name may not start or end with a
// delimiter character: "x$"+Delimiter+"y" and "x"+Delimiter+"$y" would
// otherwise compose the same FileID.
func ValidName(s string) bool {
	if s == "" || strings.Contains(s, Delimiter) {
		return false
	}
	edge := Delimiter[:1]
	return !strings.HasPrefix(s, edge) && !strings.HasSuffix(s, edge)
}

// FileID composes the identity of a logical file.
func FileID(userID, filename string) string {
	return userID + Delimiter + filename
}

// SplitFileID is the inverse of FileID.
func SplitFileID(fileID string) (userID, filename string, ok bool) {
	userID, filename, ok = strings.Cut(fileID, Delimiter)
	if !ok || !ValidName(userID) || !ValidName(filename) {
		return "", "", false
	}
	return userID, filename, true
}

// Location returns the replica URL of fileID on the backend at base.
func Location(base, fileID string) string {
	return strings.TrimSuffix(base, "/") + FilesPath + url.PathEscape(fileID)
}

// ParseLocation splits a replica URL into its backend address and fileId.
func ParseLocation(loc string) (base, fileID string, ok bool) {
	i := strings.LastIndex(loc, FilesPath)
	if i <= 0 {
		return "", "", false
	}
	id, err := url.PathUnescape(loc[i+len(FilesPath):])
	if err != nil || id == "" {
		return "", "", false
	}
	return loc[:i], id, true
}

// BackendOf returns the backend address of a replica URL, or loc itself if
// it is not a replica URL.
func BackendOf(loc string) string {
	if base, _, ok := ParseLocation(loc); ok {
		return base
	}
	return loc
}
