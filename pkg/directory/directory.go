// Package directory implements the metadata and placement service that sits
// in front of the Files backends.
//
// The Directory owns no bytes. It decides where a logical file is stored,
// replicates writes to up to Config.Replicas backends, tracks ownership and
// sharing, and answers reads with the queue of replica locations. All state
// lives in memory.
//
// Concurrency model:
//   - The file map and the per-user index map are sync.Maps.
//   - Each user's index entry carries a mutex (the user lock). Mutations of a
//     user's owned/shared sets, together with the file records they reference,
//     happen while holding that lock. Unrelated users never contend.
//   - WriteFile holds the owner's lock across its backend calls because what
//     gets recorded depends on which writes succeeded.
//   - Content deletion and share-set pruning after a delete run on a
//     background pool; their failures are logged and dropped.
package directory

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/dittodir/internal/logger"
	"github.com/marmos91/dittodir/pkg/cleanup"
	"github.com/marmos91/dittodir/pkg/service"
	"github.com/marmos91/dittodir/pkg/token"
)

// DefaultReplicas is the number of successful writes a WriteFile aims for.
const DefaultReplicas = 2

// Authenticator resolves credentials, normally through the user cache.
type Authenticator interface {
	Authenticate(ctx context.Context, userID, password string) (*service.User, error)
	Invalidate(userID, password string)
}

// Backends resolves Files backend addresses to clients.
type Backends interface {
	Files(address string) (service.Files, error)
}

// Selector orders write candidates and tracks backend load.
type Selector interface {
	Candidates(existing []string) []string
	RecordPlacement(address string)
	RecordRemoval(address string)
}

// Cleaner runs best-effort background jobs.
type Cleaner interface {
	Submit(job cleanup.Job) bool
}

// Metrics observes Directory operations. A nil Metrics disables reporting.
type Metrics interface {
	ObserveOperation(operation string, duration time.Duration, err error)
	RecordReplicas(count int)
}

// Config holds Directory tuning.
type Config struct {
	// Replicas is the target replica count per write. Default: 2
	Replicas int
}

// Options bundles the collaborators of a Directory.
type Options struct {
	Users    Authenticator
	Backends Backends
	Selector Selector
	Tokens   *token.Signer
	Cleaner  Cleaner
	Metrics  Metrics
}

// Directory is the placement and bookkeeping orchestrator.
type Directory struct {
	replicas int

	auth     Authenticator
	backends Backends
	selector Selector
	tokens   *token.Signer
	cleaner  Cleaner
	metrics  Metrics

	files sync.Map // fileId -> *fileRecord
	index sync.Map // userId -> *userIndex
}

// New returns a Directory. Every collaborator except Metrics is required.
func New(config Config, opts Options) *Directory {
	if opts.Users == nil {
		panic("directory: users authenticator cannot be nil")
	}
	if opts.Backends == nil {
		panic("directory: backends cannot be nil")
	}
	if opts.Selector == nil {
		panic("directory: selector cannot be nil")
	}
	if opts.Tokens == nil {
		panic("directory: token signer cannot be nil")
	}
	if opts.Cleaner == nil {
		panic("directory: cleaner cannot be nil")
	}
	if config.Replicas <= 0 {
		config.Replicas = DefaultReplicas
	}

	return &Directory{
		replicas: config.Replicas,
		auth:     opts.Users,
		backends: opts.Backends,
		selector: opts.Selector,
		tokens:   opts.Tokens,
		cleaner:  opts.Cleaner,
		metrics:  opts.Metrics,
	}
}

func badRequest(msg string) error {
	return service.Errorf(service.ErrBadRequest, "%s", msg)
}

func (d *Directory) observe(operation string, start time.Time, err *error) {
	if d.metrics != nil {
		d.metrics.ObserveOperation(operation, time.Since(start), *err)
	}
}

// WriteFile stores data as filename owned by userID.
//
// Candidates are tried in Selector order (existing replicas first) until
// Config.Replicas writes succeed. The file exists afterwards if at least one
// write succeeded; partial replication is not reported. If no backend
// accepts the write, the result is ErrBadRequest and any previous version
// of the file is left untouched.
func (d *Directory) WriteFile(ctx context.Context, filename string, data []byte, userID, password string) (_ *service.FileInfo, err error) {
	defer d.observe("write", time.Now(), &err)

	if !service.ValidName(filename) || !service.ValidName(userID) {
		return nil, badRequest("invalid filename or user id")
	}
	if _, err := d.auth.Authenticate(ctx, userID, password); err != nil {
		return nil, err
	}

	idx := d.lockUser(userID)
	defer idx.mu.Unlock()

	fileID := service.FileID(userID, filename)
	prev, _ := d.ownedRecord(idx, fileID)

	var prevLocs []string
	if prev != nil {
		prevLocs = prev.Locations()
	}
	prevBackends := make(map[string]struct{}, len(prevLocs))
	existing := make([]string, 0, len(prevLocs))
	for _, loc := range prevLocs {
		addr := service.BackendOf(loc)
		prevBackends[addr] = struct{}{}
		existing = append(existing, addr)
	}

	var written []string
	writtenBackends := make(map[string]struct{}, d.replicas)
	for _, addr := range d.selector.Candidates(existing) {
		if len(written) == d.replicas {
			break
		}

		files, err := d.backends.Files(addr)
		if err != nil {
			logger.Warn("Directory: no client for %s: %v", addr, err)
			continue
		}
		if err := files.WriteFile(ctx, fileID, data, d.tokens.IssueNow(fileID)); err != nil {
			logger.Warn("Directory: write %s to %s failed: %v", fileID, addr, err)
			continue
		}

		written = append(written, service.Location(addr, fileID))
		writtenBackends[addr] = struct{}{}
		if _, had := prevBackends[addr]; !had {
			d.selector.RecordPlacement(addr)
		}
	}

	if len(written) == 0 {
		return nil, service.Errorf(service.ErrBadRequest, "no files backend accepted %s", fileID)
	}
	if len(written) < d.replicas {
		logger.Warn("Directory: %s stored on %d of %d replica(s)", fileID, len(written), d.replicas)
	}
	if d.metrics != nil {
		d.metrics.RecordReplicas(len(written))
	}

	// The most recent success leads the queue.
	slices.Reverse(written)

	rec := prev
	if rec == nil {
		rec = newFileRecord(fileID, userID, filename)
	}
	rec.setLocations(written)
	if prev == nil {
		d.files.Store(fileID, rec)
	}
	idx.owned[fileID] = struct{}{}

	// Replicas of the previous version that were not rewritten now hold
	// stale bytes.
	var stale []string
	for _, loc := range prevLocs {
		addr := service.BackendOf(loc)
		if _, ok := writtenBackends[addr]; ok {
			continue
		}
		d.selector.RecordRemoval(addr)
		stale = append(stale, loc)
	}
	if len(stale) > 0 {
		d.scheduleContentDelete(fileID, stale)
	}

	logger.Debug("Directory: wrote %s to %d replica(s)", fileID, len(written))
	info := rec.Info()
	return &info, nil
}

// DeleteFile removes filename owned by userID.
//
// Bookkeeping and load counters are updated before returning; replica
// content and other users' share entries are cleaned up in the background.
func (d *Directory) DeleteFile(ctx context.Context, filename, userID, password string) (err error) {
	defer d.observe("delete", time.Now(), &err)

	if !service.ValidName(filename) || !service.ValidName(userID) {
		return badRequest("invalid filename or user id")
	}
	if _, err := d.auth.Authenticate(ctx, userID, password); err != nil {
		return err
	}

	fileID := service.FileID(userID, filename)

	idx := d.lockUser(userID)
	rec, ok := d.ownedRecord(idx, fileID)
	if !ok {
		idx.mu.Unlock()
		return service.Errorf(service.ErrNotFound, "file %s", fileID)
	}
	d.files.CompareAndDelete(fileID, rec)
	delete(idx.owned, fileID)
	idx.mu.Unlock()

	locs := rec.Locations()
	for _, loc := range locs {
		d.selector.RecordRemoval(service.BackendOf(loc))
	}

	d.schedulePruneShares(rec)
	d.scheduleContentDelete(fileID, locs)
	return nil
}

// ShareFile grants granteeID read access to filename owned by userID.
// Sharing an already shared file is a no-op.
func (d *Directory) ShareFile(ctx context.Context, filename, userID, granteeID, password string) (err error) {
	defer d.observe("share", time.Now(), &err)
	return d.updateShare(ctx, filename, userID, granteeID, password, true)
}

// UnshareFile revokes granteeID's access to filename owned by userID.
// Unsharing a file that is not shared is a no-op.
func (d *Directory) UnshareFile(ctx context.Context, filename, userID, granteeID, password string) (err error) {
	defer d.observe("unshare", time.Now(), &err)
	return d.updateShare(ctx, filename, userID, granteeID, password, false)
}

func (d *Directory) updateShare(ctx context.Context, filename, userID, granteeID, password string, grant bool) error {
	if !service.ValidName(filename) || !service.ValidName(userID) || !service.ValidName(granteeID) {
		return badRequest("invalid filename or user id")
	}
	if _, err := d.auth.Authenticate(ctx, userID, password); err != nil {
		return err
	}

	fileID := service.FileID(userID, filename)
	if _, ok := d.record(fileID); !ok {
		return service.Errorf(service.ErrNotFound, "file %s", fileID)
	}
	// An empty password is never valid, so anything but NOT_FOUND means
	// the grantee exists.
	if _, err := d.auth.Authenticate(ctx, granteeID, ""); service.IsNotFound(err) {
		return service.Errorf(service.ErrNotFound, "user %s", granteeID)
	}

	idx := d.lockUser(granteeID)
	defer idx.mu.Unlock()

	rec, ok := d.record(fileID)
	if !ok {
		return service.Errorf(service.ErrNotFound, "file %s", fileID)
	}
	if grant {
		rec.share(granteeID)
		idx.shared[fileID] = struct{}{}
	} else {
		rec.unshare(granteeID)
		delete(idx.shared, fileID)
	}
	return nil
}

// GetFile authorizes requesterID to read filename owned by ownerID and
// returns the replica locations to read from, most recent write first.
// The returned queue is the REDIRECT result: the caller fetches the bytes.
func (d *Directory) GetFile(ctx context.Context, filename, ownerID, requesterID, password string) (_ []string, err error) {
	defer d.observe("get", time.Now(), &err)

	if !service.ValidName(filename) || !service.ValidName(ownerID) || !service.ValidName(requesterID) {
		return nil, badRequest("invalid filename or user id")
	}

	fileID := service.FileID(ownerID, filename)
	rec, ok := d.record(fileID)
	if !ok {
		return nil, service.Errorf(service.ErrNotFound, "file %s", fileID)
	}
	if _, err := d.auth.Authenticate(ctx, requesterID, password); err != nil {
		return nil, err
	}
	if !rec.canRead(requesterID) {
		return nil, service.Errorf(service.ErrForbidden, "%s cannot read %s", requesterID, fileID)
	}

	locs := rec.Locations()
	if len(locs) == 0 {
		return nil, service.Errorf(service.ErrNotFound, "file %s has no replicas", fileID)
	}
	return locs, nil
}

// LsFile lists the files owned by or shared with userID, each once,
// ordered by owner and filename.
func (d *Directory) LsFile(ctx context.Context, userID, password string) (_ []service.FileInfo, err error) {
	defer d.observe("list", time.Now(), &err)

	if !service.ValidName(userID) {
		return nil, badRequest("invalid user id")
	}
	if _, err := d.auth.Authenticate(ctx, userID, password); err != nil {
		return nil, err
	}

	infos := []service.FileInfo{}
	idx := d.lockExistingUser(userID)
	if idx == nil {
		return infos, nil
	}
	defer idx.mu.Unlock()

	seen := make(map[string]struct{}, len(idx.owned)+len(idx.shared))
	for id := range idx.owned {
		if rec, ok := d.record(id); ok {
			seen[id] = struct{}{}
			infos = append(infos, rec.Info())
		}
	}
	for id := range idx.shared {
		if _, dup := seen[id]; dup {
			continue
		}
		// A record recreated after a delete does not inherit old shares.
		rec, ok := d.record(id)
		if !ok || !rec.isSharedWith(userID) {
			// A share granted while the owner deleted the file can outlive
			// the prune job; drop it here.
			delete(idx.shared, id)
			continue
		}
		seen[id] = struct{}{}
		infos = append(infos, rec.Info())
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Owner != infos[j].Owner {
			return infos[i].Owner < infos[j].Owner
		}
		return infos[i].Filename < infos[j].Filename
	})
	return infos, nil
}

// DeleteUserFiles removes every file owned by userID and all of the user's
// bookkeeping. It is an internal call authorized by a token issued for
// userID rather than by the password; the password only selects the user
// cache entry to invalidate.
func (d *Directory) DeleteUserFiles(ctx context.Context, userID, password, tok string) (err error) {
	defer d.observe("delete_user", time.Now(), &err)

	if !d.tokens.Validate(userID, tok) {
		return service.Errorf(service.ErrForbidden, "invalid token for %s", userID)
	}
	d.auth.Invalidate(userID, password)

	v, ok := d.index.LoadAndDelete(userID)
	if !ok {
		return nil
	}
	idx := v.(*userIndex)

	// Records are resolved before the entry is released: a write that
	// retries on a fresh entry may replace them right after.
	idx.mu.Lock()
	idx.retired = true
	owned := make(map[string]*fileRecord, len(idx.owned))
	for id := range idx.owned {
		if rec, ok := d.record(id); ok {
			owned[id] = rec
		}
	}
	shared := idx.shared
	idx.owned, idx.shared = nil, nil
	idx.mu.Unlock()

	backends := make(map[string]struct{})
	for id, rec := range owned {
		d.files.CompareAndDelete(id, rec)
		for _, loc := range rec.Locations() {
			addr := service.BackendOf(loc)
			d.selector.RecordRemoval(addr)
			backends[addr] = struct{}{}
		}
		d.schedulePruneShares(rec)
	}

	for id := range shared {
		if rec, ok := d.record(id); ok {
			rec.unshare(userID)
		}
	}

	addrs := make([]string, 0, len(backends))
	for addr := range backends {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	for _, addr := range addrs {
		d.scheduleUserContentDelete(userID, addr)
	}

	logger.Info("Directory: removed user %s (%d owned, %d shared, %d backend(s))",
		userID, len(owned), len(shared), len(addrs))
	return nil
}

// schedulePruneShares removes rec from the shared set of every user it was
// shared with, unless a newer record with the same id is shared with them.
func (d *Directory) schedulePruneShares(rec *fileRecord) {
	sharees := rec.sharees()
	if len(sharees) == 0 {
		return
	}

	d.cleaner.Submit(cleanup.Job{
		Name: "prune-shares:" + rec.id,
		Run: func(ctx context.Context) error {
			for _, userID := range sharees {
				idx := d.lockExistingUser(userID)
				if idx == nil {
					continue
				}
				if cur, ok := d.record(rec.id); !ok || !cur.isSharedWith(userID) {
					delete(idx.shared, rec.id)
				}
				idx.mu.Unlock()
			}
			return nil
		},
	})
}

// scheduleContentDelete removes fileID from every location. A replica that
// is already gone counts as deleted.
func (d *Directory) scheduleContentDelete(fileID string, locations []string) {
	if len(locations) == 0 {
		return
	}
	locs := slices.Clone(locations)

	d.cleaner.Submit(cleanup.Job{
		Name: "delete-content:" + fileID,
		Run: func(ctx context.Context) error {
			var errs []error
			for _, loc := range locs {
				addr := service.BackendOf(loc)
				files, err := d.backends.Files(addr)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				err = files.DeleteFile(ctx, fileID, d.tokens.IssueNow(fileID))
				if err != nil && !service.IsNotFound(err) {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	})
}

// scheduleUserContentDelete removes every blob of userID from the backend
// at addr.
func (d *Directory) scheduleUserContentDelete(userID, addr string) {
	d.cleaner.Submit(cleanup.Job{
		Name: "delete-user-content:" + userID + "@" + addr,
		Run: func(ctx context.Context) error {
			files, err := d.backends.Files(addr)
			if err != nil {
				return err
			}
			err = files.DeleteUserFiles(ctx, userID, d.tokens.IssueNow(userID))
			if service.IsNotFound(err) {
				return nil
			}
			return err
		},
	})
}
