// Package controller holds the client-side controllers. Each owns its
// collections, issues intents through the gateway and exposes read-only
// views for rendering.
package controller

import (
	"context"

	"github.com/d60-Lab/sagesync/internal/access"
	"github.com/d60-Lab/sagesync/internal/gateway"
	"github.com/d60-Lab/sagesync/internal/model"
	"github.com/d60-Lab/sagesync/internal/mutation"
	"github.com/d60-Lab/sagesync/internal/report"
)

// ViewerSource supplies the current viewer; nil means signed out.
// *auth.Manager implements it.
type ViewerSource interface {
	Viewer() *model.User
}

type ViewerFunc func() *model.User

func (f ViewerFunc) Viewer() *model.User { return f() }

// Anonymous never has a viewer.
var Anonymous ViewerSource = ViewerFunc(func() *model.User { return nil })

// Deps are shared by every controller.
type Deps struct {
	Gateway   gateway.Gateway
	Viewer    ViewerSource
	Policy    access.Policy
	Reporter  report.Reporter
	Mutations *mutation.Controller
}

func (d Deps) withDefaults() Deps {
	if d.Viewer == nil {
		d.Viewer = Anonymous
	}
	if d.Reporter == nil {
		d.Reporter = report.Nop
	}
	if d.Mutations == nil {
		d.Mutations = mutation.NewController(d.Reporter)
	}
	return d
}

// fail reports err once and returns it.
func (d Deps) fail(ctx context.Context, err error, fallback string) error {
	d.Reporter.Report(ctx, err, fallback)
	return err
}
