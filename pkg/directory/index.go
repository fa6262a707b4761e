package directory

import (
	"sort"
	"sync"

	"github.com/marmos91/dittodir/pkg/service"
)

// fileRecord is the Directory's view of one logical file.
//
// The owner's user lock serializes creation, rewrite and removal of a
// record; mu protects the fields against share updates made under grantees'
// locks and against readers.
type fileRecord struct {
	id       string
	owner    string
	filename string

	mu         sync.RWMutex
	locations  []string
	fileURL    string
	sharedWith map[string]struct{}
}

func newFileRecord(id, owner, filename string) *fileRecord {
	return &fileRecord{
		id:         id,
		owner:      owner,
		filename:   filename,
		sharedWith: make(map[string]struct{}),
	}
}

// Locations returns a copy of the replica queue.
func (r *fileRecord) Locations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.locations))
	copy(out, r.locations)
	return out
}

func (r *fileRecord) setLocations(locs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations = locs
	if len(locs) > 0 {
		r.fileURL = locs[0]
	}
}

func (r *fileRecord) share(userID string) {
	r.mu.Lock()
	r.sharedWith[userID] = struct{}{}
	r.mu.Unlock()
}

func (r *fileRecord) unshare(userID string) {
	r.mu.Lock()
	delete(r.sharedWith, userID)
	r.mu.Unlock()
}

func (r *fileRecord) isSharedWith(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sharedWith[userID]
	return ok
}

func (r *fileRecord) canRead(userID string) bool {
	return userID == r.owner || r.isSharedWith(userID)
}

func (r *fileRecord) sharees() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sharedWith))
	for u := range r.sharedWith {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Info returns a snapshot of the public metadata.
func (r *fileRecord) Info() service.FileInfo {
	shared := r.sharees()

	r.mu.RLock()
	defer r.mu.RUnlock()
	return service.FileInfo{
		Owner:      r.owner,
		Filename:   r.filename,
		FileURL:    r.fileURL,
		SharedWith: shared,
	}
}

// userIndex is the per-user bookkeeping entry. Its mutex is the user lock.
type userIndex struct {
	mu      sync.Mutex
	owned   map[string]struct{}
	shared  map[string]struct{}
	retired bool
}

func newUserIndex() *userIndex {
	return &userIndex{
		owned:  make(map[string]struct{}),
		shared: make(map[string]struct{}),
	}
}

// lockUser returns the locked index entry of userID, creating it on first
// use. An entry retired by a concurrent user deletion is never returned.
func (d *Directory) lockUser(userID string) *userIndex {
	for {
		v, _ := d.index.LoadOrStore(userID, newUserIndex())
		idx := v.(*userIndex)

		idx.mu.Lock()
		if !idx.retired {
			return idx
		}
		idx.mu.Unlock()
	}
}

// lockExistingUser is lockUser without creation. It returns nil if userID
// has no entry.
func (d *Directory) lockExistingUser(userID string) *userIndex {
	for {
		v, ok := d.index.Load(userID)
		if !ok {
			return nil
		}
		idx := v.(*userIndex)

		idx.mu.Lock()
		if !idx.retired {
			return idx
		}
		idx.mu.Unlock()
	}
}

func (d *Directory) record(fileID string) (*fileRecord, bool) {
	v, ok := d.files.Load(fileID)
	if !ok {
		return nil, false
	}
	return v.(*fileRecord), true
}

// ownedRecord returns the record of fileID if the locked entry idx owns it.
// A record still present after its owner's entry was retired belongs to the
// user deletion in progress and must not be reused.
func (d *Directory) ownedRecord(idx *userIndex, fileID string) (*fileRecord, bool) {
	if _, ok := idx.owned[fileID]; !ok {
		return nil, false
	}
	return d.record(fileID)
}
