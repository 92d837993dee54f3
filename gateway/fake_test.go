package gateway

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/rosterd/console/apperr"
	"github.com/rosterd/console/directory"
	"github.com/rosterd/console/identity"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fakeDirectory is an in-memory remote provider for gateway tests. It counts
// calls so tests can assert on wire traffic, not just outcomes.
type fakeDirectory struct {
	mu sync.Mutex

	profiles       map[string]*directory.Profile
	catalog        []directory.Role
	userRoles      map[string][]directory.Role
	introspections map[string]*directory.Introspection

	getRolesCalls  int
	assignCalls    int
	replaceCalls   int
	removeCalls    int
	metadataWrites int

	failMetadataWrite bool
	linkErr           error
	unlinkErr         error

	lastReplaced []string
	lastMetadata map[string]directory.Metadata
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		profiles:       make(map[string]*directory.Profile),
		userRoles:      make(map[string][]directory.Role),
		introspections: make(map[string]*directory.Introspection),
		lastMetadata:   make(map[string]directory.Metadata),
	}
}

func (f *fakeDirectory) addProfile(p directory.Profile) {
	f.profiles[p.UserID] = &p
}

func (f *fakeDirectory) GetUser(ctx context.Context, id string) (*directory.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[id]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, apperr.Wrap(errors.New("no such user"), apperr.ErrNotFound, "no such user")
}

func (f *fakeDirectory) SearchByEmail(ctx context.Context, email string) ([]directory.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []directory.Profile
	for _, p := range f.profiles {
		if strings.EqualFold(p.Email, email) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f *fakeDirectory) GetUserByEmail(ctx context.Context, email string) (*directory.Profile, error) {
	profiles, _ := f.SearchByEmail(ctx, email)
	if len(profiles) == 0 {
		return nil, apperr.Wrap(errors.New("no profile"), apperr.ErrNotFound, "no such user")
	}
	for i := range profiles {
		if profiles[i].EmailVerified {
			return &profiles[i], nil
		}
	}
	return &profiles[0], nil
}

func (f *fakeDirectory) UpdateUser(ctx context.Context, id string, patch directory.ProfilePatch) (*directory.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if patch.Name != "" {
		p.Name = patch.Name
	}
	clone := *p
	return &clone, nil
}

func (f *fakeDirectory) UpdateUserMetadata(ctx context.Context, id string, metadata directory.Metadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMetadataWrite {
		return apperr.Remote("metadata write refused")
	}
	p, ok := f.profiles[id]
	if !ok {
		return apperr.ErrNotFound
	}
	p.UserMetadata = metadata
	f.metadataWrites++
	f.lastMetadata[id] = metadata
	return nil
}

func (f *fakeDirectory) GetRoles(ctx context.Context) ([]directory.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getRolesCalls++
	return append([]directory.Role(nil), f.catalog...), nil
}

func (f *fakeDirectory) GetUserRoles(ctx context.Context, id string) ([]directory.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.profiles[id]; !ok {
		return nil, apperr.ErrNotFound
	}
	return append([]directory.Role(nil), f.userRoles[id]...), nil
}

func (f *fakeDirectory) AssignRoles(ctx context.Context, id string, roleIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignCalls++
	for _, roleID := range roleIDs {
		for _, r := range f.catalog {
			if r.ID == roleID {
				f.userRoles[id] = append(f.userRoles[id], r)
			}
		}
	}
	return nil
}

func (f *fakeDirectory) RemoveRoles(ctx context.Context, id string, roleIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls++
	var kept []directory.Role
	for _, r := range f.userRoles[id] {
		drop := false
		for _, roleID := range roleIDs {
			if r.ID == roleID {
				drop = true
			}
		}
		if !drop {
			kept = append(kept, r)
		}
	}
	f.userRoles[id] = kept
	return nil
}

func (f *fakeDirectory) ReplaceRoles(ctx context.Context, id string, roleIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaceCalls++
	f.lastReplaced = append([]string(nil), roleIDs...)
	var next []directory.Role
	for _, roleID := range roleIDs {
		for _, r := range f.catalog {
			if r.ID == roleID {
				next = append(next, r)
			}
		}
	}
	f.userRoles[id] = next
	return nil
}

func (f *fakeDirectory) LinkIdentities(ctx context.Context, primaryID string, secondary directory.IdentityDescriptor) ([]directory.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.linkErr != nil {
		return nil, f.linkErr
	}
	p, ok := f.profiles[primaryID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	p.Identities = append(p.Identities, directory.Identity{Provider: secondary.Provider, UserID: secondary.UserID})
	return append([]directory.Identity(nil), p.Identities...), nil
}

func (f *fakeDirectory) UnlinkIdentity(ctx context.Context, id, provider, secondaryUserID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unlinkErr != nil {
		return f.unlinkErr
	}
	p, ok := f.profiles[id]
	if !ok {
		return apperr.ErrNotFound
	}
	var kept []directory.Identity
	for _, ident := range p.Identities {
		if ident.Provider == provider && ident.UserID == secondaryUserID {
			continue
		}
		kept = append(kept, ident)
	}
	p.Identities = kept
	return nil
}

func (f *fakeDirectory) SendVerificationEmail(ctx context.Context, id string) error {
	return nil
}

func (f *fakeDirectory) Introspect(ctx context.Context, bearer string) (*directory.Introspection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if info, ok := f.introspections[bearer]; ok {
		clone := *info
		return &clone, nil
	}
	return nil, apperr.ErrTokenInvalid
}

var defaultCatalog = []directory.Role{
	{ID: "rol_sudo", Name: "sudo"},
	{ID: "rol_org", Name: "organizer"},
	{ID: "rol_view", Name: "viewer"},
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(t.TempDir()+"/test.db"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&identity.Agent{}, &identity.Update{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}
