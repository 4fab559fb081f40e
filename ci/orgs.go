package ci

import (
	"sync"
	"time"

	"github.com/eolscan/eolscan/filesystem"
	"github.com/metafates/gache"
	"github.com/samber/mo"
)

// orgRecord is kept in plaintext next to the encrypted CI token.
type orgRecord struct {
	OrgID     *int      `json:"org_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrgStore remembers which organization the stored CI token belongs to.
type OrgStore struct {
	cache *gache.Cache[*orgRecord]
	mu    sync.Mutex
}

// NewOrgStore returns a store backed by the JSON file at path.
func NewOrgStore(path string) *OrgStore {
	return &OrgStore{
		cache: gache.New[*orgRecord](&gache.Options{
			Path:       path,
			FileSystem: &filesystem.GacheFs{},
		}),
	}
}

// Load returns the remembered organization id, if any.
func (s *OrgStore) Load() mo.Option[int] {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, expired, err := s.cache.Get()
	if err != nil || expired || record == nil || record.OrgID == nil {
		return mo.None[int]()
	}
	return mo.Some(*record.OrgID)
}

// Save remembers orgID.
func (s *OrgStore) Save(orgID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cache.Set(&orgRecord{OrgID: &orgID, UpdatedAt: time.Now()})
}

// Clear forgets the organization id.
func (s *OrgStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cache.Set(&orgRecord{UpdatedAt: time.Now()})
}
