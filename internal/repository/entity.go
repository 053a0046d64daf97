package repository

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/configstore/internal/manifest"
	"github.com/roach88/configstore/internal/model"
)

// Entity fetches the content of every item of info and assembles the
// entity variant for its type.
//
// Content problems fail with a business error scoped to this call.
func (p *Provider) Entity(ctx context.Context, info *model.EntityInfo) (model.Entity, error) {
	items, err := p.fetchItems(ctx, info.Items())
	if err != nil {
		return nil, err
	}

	switch info.Type() {
	case model.EntityPolicy:
		return p.policy(ctx, info, items)
	case model.EntityAccess:
		return &model.Access{EntityInfo: info, Items: items, Document: contentWithSuffix(items, "policy-access.json")}, nil
	case model.EntityPip:
		return &model.Pip{EntityInfo: info, Items: items, Route: contentWithSuffix(items, ".xml")}, nil
	}
	return &model.Simple{EntityInfo: info, Items: items}, nil
}

// fetchItems fetches refs concurrently, bounded by the fetch concurrency.
// Results keep the order of refs.
func (p *Provider) fetchItems(ctx context.Context, refs []model.ItemRef) ([]model.Item, error) {
	items := make([]model.Item, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.fetchConcurrency)
	for i, ref := range refs {
		g.Go(func() error {
			item, err := p.store.Item(gctx, ref)
			if err != nil {
				return err
			}
			p.logger.Debugw("fetched item", "name", ref.Name, "tag", ref.Tag)
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func contentWithSuffix(items []model.Item, suffix string) string {
	for _, item := range items {
		if strings.HasSuffix(item.Name, suffix) {
			return item.Content
		}
	}
	return ""
}

func (p *Provider) policy(ctx context.Context, info *model.EntityInfo, items []model.Item) (*model.Policy, error) {
	policy := &model.Policy{
		EntityInfo:     info,
		Items:          items,
		CompileVersion: model.DefaultCompileVersion,
		PolicyType:     model.DefaultPolicyType,
	}

	for _, item := range items {
		if model.ClassifyItem(item.Name) != model.ItemPolicyStatusSparse {
			continue
		}
		sparse, err := manifest.ParseSparse([]byte(item.Content))
		if err != nil {
			return nil, model.WrapError(model.ErrCodeBusiness, err, "policy %s", info.LogicalVersionString("/"))
		}
		policy.ActivationStatus = sparse.Status
		policy.CompileVersion = sparse.CompileVersion
		policy.PolicyType = sparse.Type
		return policy, nil
	}

	// Only the unpatched version may fall back to the legacy manifest.
	if info.PatchVersion() != 0 {
		return nil, model.NewError(model.ErrCodeBusiness, "policy %s has no policy-metadata.json", info.LogicalVersionString("/"))
	}
	status, err := p.legacyStatus(ctx, info)
	if err != nil {
		return nil, err
	}
	policy.ActivationStatus = status.ActivationStatus(p.env)
	return policy, nil
}

// legacyStatus reads the status of info's major.minor version from the
// metadata.json one directory above the version folder.
func (p *Provider) legacyStatus(ctx context.Context, info *model.EntityInfo) (model.PolicyStatus, error) {
	version := info.MinorVersionString()
	key, ok := manifest.LegacyKey(info.LocationPrefix(), version)
	if !ok {
		return "", model.NewError(model.ErrCodeBusiness, "policy %s: cannot locate legacy manifest from %q", info.ID(), info.LocationPrefix())
	}

	ref, found, err := p.store.SingleItemRef(ctx, key)
	if err != nil {
		return "", err
	}
	if !found {
		return "", model.NewError(model.ErrCodeBusiness, "policy %s has neither policy-metadata.json nor %s", info.ID(), key)
	}
	item, err := p.store.Item(ctx, ref)
	if err != nil {
		return "", err
	}
	legacy, err := manifest.ParseLegacy([]byte(item.Content))
	if err != nil {
		return "", model.WrapError(model.ErrCodeBusiness, err, "policy %s", info.ID())
	}
	status, ok := legacy.StatusOf(version)
	if !ok {
		return "", model.NewError(model.ErrCodeBusiness, "policy %s: version %s not listed in %s", info.ID(), version, key)
	}
	return status, nil
}
