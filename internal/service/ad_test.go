package service

import (
	"context"
	"strings"
	"testing"

	"adgrid/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) own(t *testing.T, userID string, box int) {
	t.Helper()
	_, err := f.tracker.MarkCompleted(context.Background(), userID, box, "order_"+userID+"_"+string(rune('a'+box)), "pay")
	require.NoError(t, err)
}

func TestAdSubmit_RequiresCompletedPurchase(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	in := SubmitAdInput{BoxIndex: intPtr(2), Heading: "Fresh bread", Description: "Every morning"}

	_, err := f.ads.Submit(ctx, "user-a", in)
	assert.ErrorIs(t, err, ErrUnauthorized)

	f.pending(t, "order_1", "user-a", 2)
	_, err = f.ads.Submit(ctx, "user-a", in)
	assert.ErrorIs(t, err, ErrUnauthorized, "pending purchase does not authorize")

	_, err = f.tracker.MarkCompleted(ctx, "user-a", 2, "order_1", "pay_1")
	require.NoError(t, err)

	ad, err := f.ads.Submit(ctx, "user-a", in)
	require.NoError(t, err)
	assert.NotEmpty(t, ad.ID)
	assert.Equal(t, 2, ad.BoxIndex)
	assert.Equal(t, "user-a", ad.UserID)
}

func TestAdSubmit_OtherUserCannotOverwrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.own(t, "user-a", 5)

	ad, err := f.ads.Submit(ctx, "user-a", SubmitAdInput{BoxIndex: intPtr(5), Heading: "Mine"})
	require.NoError(t, err)

	_, err = f.ads.Submit(ctx, "user-b", SubmitAdInput{ID: ad.ID, BoxIndex: intPtr(5), Heading: "Stolen"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	ads, err := f.ads.List(ctx, "user-a", "")
	require.NoError(t, err)
	require.Len(t, ads, 1)
	assert.Equal(t, "Mine", ads[0].Heading)
}

func TestAdSubmit_UpdatesExistingAd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.own(t, "user-a", 1)

	ad, err := f.ads.Submit(ctx, "user-a", SubmitAdInput{BoxIndex: intPtr(1), Heading: "v1", ImageURL: "http://img/1.png"})
	require.NoError(t, err)

	updated, err := f.ads.Submit(ctx, "user-a", SubmitAdInput{ID: ad.ID, BoxIndex: intPtr(1), Heading: "  v2  ", Description: "new"})
	require.NoError(t, err)
	assert.Equal(t, ad.ID, updated.ID)
	assert.Equal(t, "v2", updated.Heading)
	assert.Equal(t, "http://img/1.png", updated.ImageURL, "image kept when none uploaded")

	// submitting without an id edits the box's ad as well
	again, err := f.ads.Submit(ctx, "user-a", SubmitAdInput{BoxIndex: intPtr(1), Heading: "v3"})
	require.NoError(t, err)
	assert.Equal(t, ad.ID, again.ID)

	assert.Equal(t, []string{events.TypePurchaseCompleted, events.TypeAdCreated, events.TypeAdUpdated, events.TypeAdUpdated}, f.publisher.types())
}

func TestAdSubmit_IDMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.own(t, "user-a", 1)
	f.own(t, "user-a", 2)

	first, err := f.ads.Submit(ctx, "user-a", SubmitAdInput{BoxIndex: intPtr(1), Heading: "one"})
	require.NoError(t, err)

	_, err = f.ads.Submit(ctx, "user-a", SubmitAdInput{ID: first.ID, BoxIndex: intPtr(2), Heading: "two"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.ads.Submit(ctx, "user-a", SubmitAdInput{BoxIndex: intPtr(2), Heading: "two"})
	require.NoError(t, err)
	_, err = f.ads.Submit(ctx, "user-a", SubmitAdInput{ID: first.ID, BoxIndex: intPtr(2), Heading: "two"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAdSubmit_Validation(t *testing.T) {
	f := newFixture(t)
	cases := []SubmitAdInput{
		{Heading: "no box"},
		{BoxIndex: intPtr(12), Heading: "out of range"},
		{BoxIndex: intPtr(0), Heading: "   "},
		{BoxIndex: intPtr(0), Heading: strings.Repeat("h", maxHeadingLen+1)},
		{BoxIndex: intPtr(0), Heading: "ok", Description: strings.Repeat("d", maxDescriptionLen+1)},
	}
	for _, in := range cases {
		_, err := f.ads.Submit(context.Background(), "user-a", in)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestAdDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.own(t, "user-a", 0)

	ad, err := f.ads.Submit(ctx, "user-a", SubmitAdInput{BoxIndex: intPtr(0), Heading: "bye"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.ads.Delete(ctx, "user-b", ad.ID), ErrUnauthorized)
	require.NoError(t, f.ads.Delete(ctx, "user-a", ad.ID))
	assert.ErrorIs(t, f.ads.Delete(ctx, "user-a", ad.ID), ErrNotFound)
}

func TestAdList_Search(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.own(t, "user-a", 0)
	f.own(t, "user-a", 1)

	_, err := f.ads.Submit(ctx, "user-a", SubmitAdInput{BoxIndex: intPtr(0), Heading: "Yoga classes", Description: "Mornings"})
	require.NoError(t, err)
	_, err = f.ads.Submit(ctx, "user-a", SubmitAdInput{BoxIndex: intPtr(1), Heading: "Guitar", Description: "Evening YOGA-free lessons"})
	require.NoError(t, err)

	ads, err := f.ads.List(ctx, "user-a", "yoga")
	require.NoError(t, err)
	assert.Len(t, ads, 2)

	ads, err = f.ads.List(ctx, "user-a", "guitar")
	require.NoError(t, err)
	assert.Len(t, ads, 1)

	ads, err = f.ads.List(ctx, "user-b", "")
	require.NoError(t, err)
	assert.Empty(t, ads)
}

func TestAdGrid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.own(t, "user-a", 3)
	f.own(t, "user-b", 7)

	_, err := f.ads.Submit(ctx, "user-a", SubmitAdInput{BoxIndex: intPtr(3), Heading: "Box three"})
	require.NoError(t, err)

	grid, err := f.ads.Grid(ctx)
	require.NoError(t, err)
	require.Len(t, grid, 12)

	assert.True(t, grid[3].Purchased)
	require.NotNil(t, grid[3].Ad)
	assert.Equal(t, "Box three", grid[3].Ad.Heading)
	assert.True(t, grid[7].Purchased)
	assert.Nil(t, grid[7].Ad)
	assert.False(t, grid[0].Purchased)
}
