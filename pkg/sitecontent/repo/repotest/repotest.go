// Package repotest holds behaviour tests that every sitecontent.Repository
// implementation must pass.
package repotest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-site/pkg/sitecontent"
)

// Factory returns an empty repository for one subtest
type Factory func(t *testing.T) sitecontent.Repository

// Run exercises repo against the repository contract.
func Run(t *testing.T, newRepo Factory) {
	t.Run("principals", func(t *testing.T) { testPrincipals(t, newRepo(t)) })
	t.Run("websites", func(t *testing.T) { testWebsites(t, newRepo(t)) })
	t.Run("children", func(t *testing.T) { testChildren(t, newRepo(t)) })
	t.Run("ordering", func(t *testing.T) { testOrdering(t, newRepo(t)) })
	t.Run("cascade", func(t *testing.T) { testCascade(t, newRepo(t)) })
	t.Run("activity", func(t *testing.T) { testActivity(t, newRepo(t)) })
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func principal(t *testing.T, repo sitecontent.Repository, username string) *sitecontent.Principal {
	t.Helper()
	p := &sitecontent.Principal{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "digest",
		CreatedAt:    base,
	}
	require.NoError(t, repo.CreatePrincipal(context.Background(), p))
	return p
}

func website(t *testing.T, repo sitecontent.Repository, owner uuid.UUID, name string, created time.Time) *sitecontent.Website {
	t.Helper()
	w := &sitecontent.Website{
		ID:        uuid.New(),
		Name:      name,
		About:     "about " + name,
		OwnerID:   owner,
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, repo.CreateWebsite(context.Background(), w))
	return w
}

func child(t *testing.T, repo sitecontent.Repository, websiteID uuid.UUID, kind sitecontent.ChildKind, order int, active bool, created time.Time) *sitecontent.Child {
	t.Helper()
	c := &sitecontent.Child{
		ID:        uuid.New(),
		WebsiteID: websiteID,
		Kind:      kind,
		ObjectKey: string(kind) + "/" + uuid.NewString() + ".jpg",
		Width:     640,
		Height:    480,
		SizeBytes: 1234,
		MimeType:  "image/jpeg",
		Active:    active,
		Order:     order,
		CreatedAt: created,
		UpdatedAt: created,
	}
	if kind == sitecontent.ChildKindCarousel {
		c.Title = "slide"
	} else {
		c.FileName = "photo.jpg"
	}
	require.NoError(t, repo.CreateChild(context.Background(), c))
	return c
}

func ids(children []*sitecontent.Child) []uuid.UUID {
	out := make([]uuid.UUID, len(children))
	for i, c := range children {
		out[i] = c.ID
	}
	return out
}

func testPrincipals(t *testing.T, repo sitecontent.Repository) {
	ctx := context.Background()
	alice := principal(t, repo, "alice")

	got, err := repo.GetPrincipal(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "digest", got.PasswordHash)

	got, err = repo.GetPrincipalByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	_, err = repo.GetPrincipal(ctx, uuid.New())
	assert.ErrorIs(t, err, sitecontent.ErrNotFound)
	_, err = repo.GetPrincipalByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, sitecontent.ErrNotFound)

	dupEmail := &sitecontent.Principal{ID: uuid.New(), Username: "alice2", Email: alice.Email, PasswordHash: "x", CreatedAt: base}
	assert.ErrorIs(t, repo.CreatePrincipal(ctx, dupEmail), sitecontent.ErrDuplicate)
	dupName := &sitecontent.Principal{ID: uuid.New(), Username: "alice", Email: "other@example.com", PasswordHash: "x", CreatedAt: base}
	assert.ErrorIs(t, repo.CreatePrincipal(ctx, dupName), sitecontent.ErrDuplicate)
}

func testWebsites(t *testing.T, repo sitecontent.Repository) {
	ctx := context.Background()
	alice := principal(t, repo, "alice")
	bob := principal(t, repo, "bob")

	older := website(t, repo, alice.ID, "Older", base)
	newer := website(t, repo, alice.ID, "Newer", base.Add(time.Hour))
	website(t, repo, bob.ID, "Bobs", base)

	got, err := repo.GetWebsite(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "Older", got.Name)
	assert.Equal(t, alice.ID, got.OwnerID)

	list, err := repo.ListWebsitesByOwner(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	dup := &sitecontent.Website{ID: uuid.New(), Name: "Older", About: "x", OwnerID: bob.ID, CreatedAt: base, UpdatedAt: base}
	assert.ErrorIs(t, repo.CreateWebsite(ctx, dup), sitecontent.ErrDuplicate)

	got.Name = "Bobs"
	assert.ErrorIs(t, repo.UpdateWebsite(ctx, got), sitecontent.ErrDuplicate)

	got.Name = "Renamed"
	got.About = "new about"
	require.NoError(t, repo.UpdateWebsite(ctx, got))
	got, err = repo.GetWebsite(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "new about", got.About)

	missing := &sitecontent.Website{ID: uuid.New(), Name: "Ghost", About: "x", OwnerID: alice.ID}
	assert.ErrorIs(t, repo.UpdateWebsite(ctx, missing), sitecontent.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteWebsite(ctx, uuid.New()), sitecontent.ErrNotFound)
	_, err = repo.GetWebsite(ctx, uuid.New())
	assert.ErrorIs(t, err, sitecontent.ErrNotFound)
}

func testChildren(t *testing.T, repo sitecontent.Repository) {
	ctx := context.Background()
	alice := principal(t, repo, "alice")
	site := website(t, repo, alice.ID, "Site", base)

	slide := child(t, repo, site.ID, sitecontent.ChildKindCarousel, 1, true, base)
	media := child(t, repo, site.ID, sitecontent.ChildKindMedia, 0, true, base)

	got, err := repo.GetChild(ctx, slide.ID)
	require.NoError(t, err)
	assert.Equal(t, sitecontent.ChildKindCarousel, got.Kind)
	assert.Equal(t, slide.ObjectKey, got.ObjectKey)
	assert.Equal(t, "slide", got.Title)
	assert.Nil(t, got.Subtitle)
	assert.True(t, got.Active)
	assert.Equal(t, 1, got.Order)

	subtitle := "fresh"
	got.Subtitle = &subtitle
	got.Active = false
	got.ObjectKey = "carousel/replaced.jpg"
	require.NoError(t, repo.UpdateChild(ctx, got))
	got, err = repo.GetChild(ctx, slide.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Subtitle)
	assert.Equal(t, "fresh", *got.Subtitle)
	assert.False(t, got.Active)
	assert.Equal(t, "carousel/replaced.jpg", got.ObjectKey)

	count, err := repo.CountChildren(ctx, site.ID, sitecontent.ChildKindMedia)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	keys, err := repo.ListObjectKeys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"carousel/replaced.jpg", media.ObjectKey}, keys)

	orphan := &sitecontent.Child{ID: uuid.New(), WebsiteID: uuid.New(), Kind: sitecontent.ChildKindMedia, ObjectKey: "k", CreatedAt: base, UpdatedAt: base}
	assert.Error(t, repo.CreateChild(ctx, orphan))

	require.NoError(t, repo.DeleteChild(ctx, media.ID))
	_, err = repo.GetChild(ctx, media.ID)
	assert.ErrorIs(t, err, sitecontent.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteChild(ctx, media.ID), sitecontent.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateChild(ctx, media), sitecontent.ErrNotFound)
}

func testOrdering(t *testing.T, repo sitecontent.Repository) {
	ctx := context.Background()
	alice := principal(t, repo, "alice")
	site := website(t, repo, alice.ID, "Site", base)
	other := website(t, repo, alice.ID, "Other", base)

	maxOrder, err := repo.MaxChildOrder(ctx, site.ID, sitecontent.ChildKindCarousel)
	require.NoError(t, err)
	assert.Zero(t, maxOrder)

	third := child(t, repo, site.ID, sitecontent.ChildKindCarousel, 3, true, base)
	first := child(t, repo, site.ID, sitecontent.ChildKindCarousel, 1, true, base.Add(time.Minute))
	hidden := child(t, repo, site.ID, sitecontent.ChildKindCarousel, 2, false, base)
	oldMedia := child(t, repo, site.ID, sitecontent.ChildKindMedia, 0, true, base)
	newMedia := child(t, repo, site.ID, sitecontent.ChildKindMedia, 0, true, base.Add(time.Hour))
	foreign := child(t, repo, other.ID, sitecontent.ChildKindCarousel, 9, true, base)

	maxOrder, err = repo.MaxChildOrder(ctx, site.ID, sitecontent.ChildKindCarousel)
	require.NoError(t, err)
	assert.Equal(t, 3, maxOrder)

	slides, err := repo.ListChildren(ctx, sitecontent.ChildFilter{WebsiteID: site.ID, Kind: sitecontent.ChildKindCarousel})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID, hidden.ID, third.ID}, ids(slides))

	visible, err := repo.ListChildren(ctx, sitecontent.ChildFilter{WebsiteID: site.ID, Kind: sitecontent.ChildKindCarousel, ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID, third.ID}, ids(visible))

	media, err := repo.ListChildren(ctx, sitecontent.ChildFilter{WebsiteID: site.ID, Kind: sitecontent.ChildKindMedia})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{newMedia.ID, oldMedia.ID}, ids(media))

	all, err := repo.ListChildren(ctx, sitecontent.ChildFilter{WebsiteID: site.ID})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	reordered := base.Add(48 * time.Hour)
	ok, err := repo.SetChildOrder(ctx, site.ID, third.ID, 0, reordered)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.SetChildOrder(ctx, site.ID, foreign.ID, 0, reordered)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = repo.SetChildOrder(ctx, site.ID, oldMedia.ID, 0, reordered)
	require.NoError(t, err)
	assert.False(t, ok)

	slides, err = repo.ListChildren(ctx, sitecontent.ChildFilter{WebsiteID: site.ID, Kind: sitecontent.ChildKindCarousel})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{third.ID, first.ID, hidden.ID}, ids(slides))

	got, err := repo.GetChild(ctx, third.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, reordered, got.UpdatedAt, time.Second)

	got, err = repo.GetChild(ctx, foreign.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Order)
	assert.WithinDuration(t, base, got.UpdatedAt, time.Second)
}

func testCascade(t *testing.T, repo sitecontent.Repository) {
	ctx := context.Background()
	alice := principal(t, repo, "alice")
	site := website(t, repo, alice.ID, "Site", base)
	keep := website(t, repo, alice.ID, "Keep", base)
	gone := child(t, repo, site.ID, sitecontent.ChildKindMedia, 0, true, base)
	kept := child(t, repo, keep.ID, sitecontent.ChildKindMedia, 0, true, base)

	require.NoError(t, repo.DeleteWebsite(ctx, site.ID))

	_, err := repo.GetWebsite(ctx, site.ID)
	assert.ErrorIs(t, err, sitecontent.ErrNotFound)
	_, err = repo.GetChild(ctx, gone.ID)
	assert.ErrorIs(t, err, sitecontent.ErrNotFound)
	_, err = repo.GetChild(ctx, kept.ID)
	assert.NoError(t, err)

	// the name can be reused
	website(t, repo, alice.ID, "Site", base)
}

func testActivity(t *testing.T, repo sitecontent.Repository) {
	ctx := context.Background()
	alice := principal(t, repo, "alice")
	bob := principal(t, repo, "bob")

	for i, action := range []sitecontent.ActivityAction{sitecontent.ActionRegister, sitecontent.ActionLogin, sitecontent.ActionCreateWebsite} {
		details, err := json.Marshal(map[string]int{"step": i})
		require.NoError(t, err)
		require.NoError(t, repo.AppendActivity(ctx, &sitecontent.ActivityEntry{
			ID:          uuid.New(),
			PrincipalID: alice.ID,
			Action:      action,
			Details:     details,
			IPAddress:   "203.0.113.1",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.AppendActivity(ctx, &sitecontent.ActivityEntry{
		ID: uuid.New(), PrincipalID: bob.ID, Action: sitecontent.ActionLogin, CreatedAt: base,
	}))

	entries, err := repo.ListActivity(ctx, alice.ID, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, sitecontent.ActionCreateWebsite, entries[0].Action)
	assert.Equal(t, sitecontent.ActionLogin, entries[1].Action)
	assert.JSONEq(t, `{"step":2}`, string(entries[0].Details))
	assert.Equal(t, "203.0.113.1", entries[0].IPAddress)

	entries, err = repo.ListActivity(ctx, bob.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Details)

	require.NoError(t, repo.Ping(ctx))
}
