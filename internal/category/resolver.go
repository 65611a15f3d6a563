package category

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Veraticus/finwiz/internal/model"
	"github.com/Veraticus/finwiz/internal/service"
	"github.com/patrickmn/go-cache"
)

// DefaultCacheTTL is how long name lookups are cached when no TTL is configured.
const DefaultCacheTTL = 10 * time.Minute

// Account types and subtypes whose transactions are classified by the account
// itself rather than by the provider's category path.
const accountTypeLoan = "loan"

var overrideSubtypes = map[string]bool{
	"cd":           true,
	"money market": true,
	"ira":          true,
	"401k":         true,
}

// Resolver maps a provider category path to a leaf of the taxonomy.
type Resolver struct {
	repo   service.TaxonomyRepository
	cache  *cache.Cache
	logger *slog.Logger
}

// NewResolver creates a resolver backed by the taxonomy repository.
// Found nodes are cached for ttl. Misses always go back to the repository, so
// categories seeded while a worker runs are picked up on the next lookup.
func NewResolver(repo service.TaxonomyRepository, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Resolver{
		repo:   repo,
		cache:  cache.New(ttl, 2*ttl),
		logger: slog.Default().With("component", "category_resolver"),
	}
}

// EffectivePath returns the path that will be walked for a transaction on the account.
// Loan accounts and retirement or deposit-certificate accounts are classified by subtype.
func EffectivePath(path []string, account *model.Account) []string {
	if account != nil && (account.Type == accountTypeLoan || overrideSubtypes[account.Subtype]) {
		return []string{account.Subtype}
	}
	return path
}

// Resolve returns the leaf the path maps to, or nil when it maps to nothing.
//
// Elements are tried left to right. The first element naming a leaf wins. When the last
// element names a group, the group's first leaf is used. Names that match nothing are skipped.
func (r *Resolver) Resolve(ctx context.Context, path []string, account *model.Account) (*model.CategoryNode, error) {
	effective := EffectivePath(path, account)

	for i, name := range effective {
		node, err := r.lookupName(ctx, name)
		if err != nil {
			return nil, err
		}
		if node == nil {
			continue
		}

		if node.IsLeaf() {
			return node, nil
		}

		if i == len(effective)-1 {
			first, err := r.firstLeaf(ctx, node.ID)
			if err != nil {
				return nil, err
			}
			if first != nil {
				return first, nil
			}
		}
	}

	r.logger.Debug("category path did not resolve", "path", effective)
	return nil, nil
}

func (r *Resolver) lookupName(ctx context.Context, name string) (*model.CategoryNode, error) {
	key := "name:" + name
	if v, ok := r.cache.Get(key); ok {
		return v.(*model.CategoryNode), nil
	}

	node, err := r.repo.GetCategoryByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up category %q: %w", name, err)
	}
	if node != nil {
		r.cache.SetDefault(key, node)
	}
	return node, nil
}

func (r *Resolver) firstLeaf(ctx context.Context, groupID int64) (*model.CategoryNode, error) {
	key := "first:" + strconv.FormatInt(groupID, 10)
	if v, ok := r.cache.Get(key); ok {
		return v.(*model.CategoryNode), nil
	}

	children, err := r.repo.GetChildCategories(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list leaves of category %d: %w", groupID, err)
	}

	if len(children) == 0 {
		return nil, nil
	}
	first := &children[0]
	r.cache.SetDefault(key, first)
	return first, nil
}
