// Package service implements the activity board controller: it fetches the
// activities collection, renders it, and runs the signup and removal flows
// against the activities API.
package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/activity-board/internal/banner"
	"github.com/Shivanand-hulikatti/activity-board/internal/model"
	"github.com/Shivanand-hulikatti/activity-board/internal/repository"
	"github.com/Shivanand-hulikatti/activity-board/internal/view"
)

// ActivitySource is the activities API as the board sees it.
type ActivitySource interface {
	List(ctx context.Context) (model.Snapshot, error)
	Signup(ctx context.Context, activity, email string) (string, error)
	Unregister(ctx context.Context, activity, email string) (string, error)
}

// Translator localizes the board's own strings.
type Translator interface {
	view.Translator
	Language() string
}

// Board is one page's worth of activity board state: the rendered list, the
// signup form and the message banner.
//
// Requests against the same board may overlap. Each render replaces the
// list wholesale, so the response that resolves last wins.
type Board struct {
	source ActivitySource
	tr     Translator
	banner *banner.Banner
	log    *zap.Logger

	mu   sync.Mutex
	list view.List
	form view.Form

	// fresh is set when a mutation has just re-rendered the list, so the
	// page load that follows it does not fetch a second time.
	fresh bool
}

// NewBoard constructs a Board showing the loading notice.
func NewBoard(source ActivitySource, tr Translator, b *banner.Banner, log *zap.Logger) *Board {
	if b == nil {
		b = banner.New(banner.DefaultTTL, nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Board{
		source: source,
		tr:     tr,
		banner: b,
		log:    log,
		list:   view.Loading(tr),
	}
}

// Translator returns the localizer the board renders with.
func (b *Board) Translator() Translator {
	return b.tr
}

// Bootstrap loads and renders the activity list when a page is opened.
// The first page load after a successful mutation reuses the list that
// mutation rendered.
func (b *Board) Bootstrap(ctx context.Context) {
	b.mu.Lock()
	fresh := b.fresh
	b.fresh = false
	b.mu.Unlock()
	if fresh {
		return
	}
	b.Refresh(ctx)
}

// Refresh fetches the activities collection and re-renders the list from it.
// A failed fetch replaces the list with a failure notice and is logged; it
// is never returned to the caller.
func (b *Board) Refresh(ctx context.Context) {
	snapshot, err := b.source.List(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.list = view.Failed(b.list, b.tr)
		b.log.Error("Error fetching activities", zap.Error(err))
		return
	}
	b.list = view.Render(snapshot, b.tr)
}

// Signup registers email for activity. Values are sent as entered; the API
// owns validation.
func (b *Board) Signup(ctx context.Context, email, activity string) {
	b.mu.Lock()
	b.form = view.Form{Email: email, Activity: activity}
	b.mu.Unlock()

	msg, err := b.source.Signup(ctx, activity, email)
	if err != nil {
		b.fail(err, "signup_failed", "signup_unreachable", "Error signing up",
			zap.String("activity", activity))
		return
	}

	b.banner.Show(msg, model.MessageSuccess)
	b.mu.Lock()
	b.form = view.Form{}
	b.mu.Unlock()
	b.refreshAfterMutation(ctx)
}

// Remove unregisters email from activity.
func (b *Board) Remove(ctx context.Context, activity, email string) {
	if activity == "" || email == "" {
		b.banner.Show(b.tr.T("remove_missing", nil), model.MessageError)
		return
	}

	msg, err := b.source.Unregister(ctx, activity, email)
	if err != nil {
		b.fail(err, "remove_failed", "remove_unreachable", "Error removing participant",
			zap.String("activity", activity))
		return
	}

	b.banner.Show(msg, model.MessageSuccess)
	b.refreshAfterMutation(ctx)
}

func (b *Board) refreshAfterMutation(ctx context.Context) {
	b.Refresh(ctx)
	b.mu.Lock()
	b.fresh = true
	b.mu.Unlock()
}

// fail reports a failed mutation. An API refusal shows the server's detail
// (or rejectedKey when it sent none); anything else shows unreachableKey and
// is logged.
func (b *Board) fail(err error, rejectedKey, unreachableKey, logMsg string, fields ...zap.Field) {
	var apiErr *repository.APIError
	if errors.As(err, &apiErr) {
		text := apiErr.Detail
		if text == "" {
			text = b.tr.T(rejectedKey, nil)
		}
		b.banner.Show(text, model.MessageError)
		return
	}

	b.banner.Show(b.tr.T(unreachableKey, nil), model.MessageError)
	b.log.Error(logMsg, append(fields, zap.Error(err))...)
}

// Page returns the current state of the board for rendering.
func (b *Board) Page() view.Page {
	b.mu.Lock()
	page := view.Page{
		Lang: b.tr.Language(),
		List: b.list,
		Form: b.form,
	}
	b.mu.Unlock()

	if msg, visible := b.banner.Current(); visible {
		page.Message = &msg
		page.MessageRemainingMS = b.banner.Remaining().Milliseconds()
	}
	return page
}

// Close releases the banner's timer.
func (b *Board) Close() {
	b.banner.Close()
}
