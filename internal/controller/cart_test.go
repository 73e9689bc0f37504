package controller

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/sagesync/internal/apperr"
	"github.com/d60-Lab/sagesync/internal/gateway"
	"github.com/d60-Lab/sagesync/internal/gateway/gatewaytest"
	"github.com/d60-Lab/sagesync/internal/model"
	"github.com/d60-Lab/sagesync/internal/report"
)

// serverCart is a tiny in-memory cart behind a Fake.
type serverCart struct {
	lines []model.CartLine
}

func (s *serverCart) fake(products map[int64]model.Product) *gatewaytest.Fake {
	fake := gatewaytest.New()
	fake.GetFunc = func(context.Context, string, string) (json.RawMessage, error) {
		return gatewaytest.JSON(model.NewCart(s.lines)), nil
	}
	fake.CreateFunc = func(_ context.Context, resource string, payload any) (json.RawMessage, error) {
		switch resource {
		case gateway.ResourceCart:
			in := payload.(addLine)
			s.lines = append(s.lines, model.NewCartLine(products[in.ProductID], in.Quantity))
			return json.RawMessage("null"), nil
		case gateway.ResourceOrders:
			order := model.Order{ID: 77, Amount: model.TotalOf(s.lines)}
			s.lines = nil
			return gatewaytest.JSON(order), nil
		}
		return nil, gatewaytest.Fail(404, "")
	}
	fake.DeleteFunc = func(_ context.Context, _ string, id string) error {
		for i, l := range s.lines {
			if gateway.ID(l.Product.ID) == id {
				s.lines = append(s.lines[:i], s.lines[i+1:]...)
			}
		}
		return nil
	}
	return fake
}

var crystal = model.Product{ID: 5, Name: "Amethyst", Price: model.Cents(1250), RequiredTier: model.TierFree}

func newCart(fake *gatewaytest.Fake, viewer ViewerSource) (*Cart, *report.Recorder) {
	rec := report.NewRecorder()
	return NewCart(Deps{Gateway: fake, Viewer: viewer, Reporter: rec}), rec
}

func TestCart_SetQuantityZeroRemovesLine(t *testing.T) {
	srv := &serverCart{lines: []model.CartLine{model.NewCartLine(crystal, 2)}}
	fake := srv.fake(nil)
	c, rec := newCart(fake, viewerOf(model.TierFree))
	ctx := context.Background()

	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, 2, c.AggregateCount())
	assert.Equal(t, "25.00", c.Total().String())

	require.NoError(t, c.SetLineQuantity(ctx, crystal.ID, 0))
	assert.Empty(t, c.Lines().Snapshot().Items)
	assert.Equal(t, 0, c.AggregateCount())
	assert.Equal(t, 1, fake.Count("DELETE", gateway.ResourceCart))
	assert.Equal(t, 0, fake.Count("UPDATE", ""))
	assert.Empty(t, rec.Entries())
}

func TestCart_QuantityFailureRestoresLines(t *testing.T) {
	srv := &serverCart{lines: []model.CartLine{model.NewCartLine(crystal, 2)}}
	fake := srv.fake(nil)
	c, rec := newCart(fake, viewerOf(model.TierFree))
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))
	before := c.Lines().Snapshot()

	var during []model.CartLine
	fake.UpdateFunc = func(context.Context, string, string, any) (json.RawMessage, error) {
		during = c.Lines().Snapshot().Items
		return nil, gatewaytest.Fail(409, "Insufficient stock")
	}
	err := c.SetLineQuantity(ctx, crystal.ID, 3)
	require.Error(t, err)

	require.Len(t, during, 1)
	assert.Equal(t, 3, during[0].Quantity)
	assert.Equal(t, "37.50", during[0].ItemTotal.String())
	assert.Equal(t, before, c.Lines().Snapshot())
	assert.Equal(t, 2, c.AggregateCount())
	require.Len(t, rec.Entries(), 1)
	assert.Equal(t, "Insufficient stock", rec.Entries()[0].Message)
}

func TestCart_RemoveFailureRestoresLines(t *testing.T) {
	other := model.Product{ID: 6, Name: "Sage Bundle", Price: model.Cents(800), RequiredTier: model.TierFree}
	srv := &serverCart{lines: []model.CartLine{model.NewCartLine(crystal, 2), model.NewCartLine(other, 1)}}
	fake := srv.fake(nil)
	c, rec := newCart(fake, viewerOf(model.TierFree))
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))
	before := c.Lines().Snapshot()

	var during []model.CartLine
	fake.DeleteFunc = func(context.Context, string, string) error {
		during = c.Lines().Snapshot().Items
		return gatewaytest.Fail(500, "cart locked")
	}
	err := c.SetLineQuantity(ctx, crystal.ID, 0)
	require.Error(t, err)

	require.Len(t, during, 1)
	assert.Equal(t, other.ID, during[0].Product.ID)
	assert.Equal(t, before, c.Lines().Snapshot())
	assert.Equal(t, 3, c.AggregateCount())
	assert.Equal(t, 1, fake.Count("DELETE", gateway.ResourceCart))
	require.Len(t, rec.Entries(), 1)
	assert.Equal(t, "cart locked", rec.Entries()[0].Message)
}

func TestCart_AnonymousNeverCallsGateway(t *testing.T) {
	fake := gatewaytest.New()
	c, _ := newCart(fake, nil)
	ctx := context.Background()

	assert.Equal(t, 0, c.AggregateCount())
	require.NoError(t, c.Refresh(ctx))
	assert.ErrorIs(t, c.AddLine(ctx, crystal, 1), apperr.ErrNotAuthenticated)
	_, err := c.Checkout(ctx)
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
	assert.Empty(t, fake.Calls())
}

func TestCart_AddLineGatingAndValidation(t *testing.T) {
	srv := &serverCart{}
	fake := srv.fake(map[int64]model.Product{crystal.ID: crystal})
	c, _ := newCart(fake, viewerOf(model.TierSeeker))
	ctx := context.Background()

	oracleOnly := model.Product{ID: 9, RequiredTier: model.TierOracle, Price: model.Cents(9900)}
	assert.ErrorIs(t, c.AddLine(ctx, oracleOnly, 1), apperr.ErrActionDisabled)
	assert.True(t, apperr.IsValidation(c.AddLine(ctx, crystal, 0)))
	assert.Empty(t, fake.Calls())

	require.NoError(t, c.AddLine(ctx, crystal, 3))
	assert.Equal(t, 3, c.AggregateCount())
	assert.Equal(t, 1, fake.Count("GET", gateway.ResourceCart))
}

func TestCart_CheckoutOnce(t *testing.T) {
	srv := &serverCart{lines: []model.CartLine{model.NewCartLine(crystal, 2)}}
	fake := srv.fake(nil)
	c, rec := newCart(fake, viewerOf(model.TierFree))
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	order, err := c.Checkout(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 77, order.ID)
	assert.Equal(t, "25.00", order.Amount.String())
	assert.Equal(t, 0, c.AggregateCount())

	_, err = c.Checkout(ctx)
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, 1, fake.Count("CREATE", gateway.ResourceOrders))
	assert.Len(t, rec.Entries(), 1)
}

func TestCart_CheckoutFailureIsNotRetried(t *testing.T) {
	srv := &serverCart{lines: []model.CartLine{model.NewCartLine(crystal, 1)}}
	fake := srv.fake(nil)
	c, rec := newCart(fake, viewerOf(model.TierFree))
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	fake.CreateFunc = func(context.Context, string, any) (json.RawMessage, error) {
		return nil, gatewaytest.Fail(502, "")
	}
	_, err := c.Checkout(ctx)
	require.Error(t, err)
	assert.Equal(t, 502, apperr.StatusOf(err))
	assert.Equal(t, 1, fake.Count("CREATE", gateway.ResourceOrders))
	assert.Len(t, rec.Entries(), 1)
	assert.Equal(t, 1, c.AggregateCount())
}
